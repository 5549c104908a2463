// Package auditorpack seals and re-verifies auditor packs: ZIP bundles
// containing a transcript, the constitution it was judged against, and
// the GC view / judgment / insurer summary derived from it. A sealed pack
// must re-verify bit-identically; re-verification recomputes every
// derivation from the embedded transcript rather than trusting the
// bundled copies.
package auditorpack

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/constitution"
	"github.com/pact-protocol/pact-verifier/internal/gcview"
	"github.com/pact-protocol/pact-verifier/internal/insurer"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// ToolVersion is stamped into every manifest and verify report.
const ToolVersion = "pact-verifier/0.1.0"

// File paths inside the pack, fixed by the wire format.
const (
	FileChecksums        = "checksums.sha256"
	FileManifest         = "manifest.json"
	FileConstitution     = "constitution/CONSTITUTION_v1.md"
	FileTranscript       = "input/transcript.json"
	FileGcView           = "derived/gc_view.json"
	FileJudgment         = "derived/judgment.json"
	FileInsurerSummary   = "derived/insurer_summary.json"
	FilePassportSnapshot = "derived/passport_snapshot.json"
	FileContentionReport = "derived/contention_report.json"
	FileOutcomeEvents    = "derived/outcome_events.json"
	FileReadme           = "README.txt"
)

// requiredFiles are the files that must be present for a pack to re-verify.
var requiredFiles = []string{
	FileChecksums, FileManifest, FileConstitution, FileTranscript,
	FileGcView, FileJudgment, FileInsurerSummary,
}

// additiveFieldsBySchema resolves the §9 open question — "which fields
// are additive-only versus semantic must be codified by the schema
// version and not hard-coded" — by keying the additive-field set off the
// bundled artifact's own schema_version major, rather than a single
// hardcoded list that silently applies across every future schema
// revision. A major version not in this table gets no additive fields:
// re-verify then compares the artifact in full, which is the safe
// default for an unrecognized schema.
var additiveFieldsBySchema = map[string]map[int][]string{
	"gc_view":         {1: {"audit", "policy"}},
	"insurer_summary": {1: {"audit_tier", "audit_sla"}},
}

// additiveFieldsFor looks up the additive-only field set for a bundled
// artifact given its schema tag (e.g. "gc_view/1.0"). An empty or
// unparseable tag falls back to the v1 table entry for backward
// compatibility with packs sealed before schema_version was added to
// these artifacts.
func additiveFieldsFor(kind, tag string) []string {
	major := 1
	if _, versionPart, ok := strings.Cut(tag, "/"); ok {
		if v, err := semver.NewVersion(versionPart); err == nil {
			major = int(v.Major())
		}
	}
	return additiveFieldsBySchema[kind][major]
}

// Manifest is written as manifest.json inside the pack.
type Manifest struct {
	PackageVersion      string                  `json:"package_version"`
	CreatedAtMs         int64                   `json:"created_at_ms"`
	ConstitutionVersion string                  `json:"constitution_version"`
	ConstitutionHash    string                  `json:"constitution_hash"`
	NonStandard         bool                    `json:"non_standard,omitempty"`
	TranscriptID        string                  `json:"transcript_id"`
	TranscriptHash      string                  `json:"transcript_hash"`
	ToolVersion         string                  `json:"tool_version"`
	IncludedArtifacts   []string                `json:"included_artifacts"`
	Integrity           gcview.Integrity        `json:"integrity"`
	Outcome             gcview.ExecutiveSummary `json:"outcome"`
	Responsibility      gcview.Responsibility   `json:"responsibility"`
}

// derivation bundles the three canonical derivations sealed into (or
// recomputed from) a pack.
type derivation struct {
	report  *transcript.VerifyReport
	view    gcview.GcView
	j       blame.Judgment
	summary insurer.Summary
}

// derive recomputes the GC view, judgment, and insurer summary from a
// transcript and constitution — used both at seal time and re-verify time
// so the two paths can never drift apart.
func derive(t *transcript.Transcript, c *constitution.Constitution) (derivation, error) {
	report, err := transcript.Verify(t)
	if err != nil {
		return derivation{}, pacterr.Wrap(pacterr.KindIntegrity, "", err)
	}
	j := blame.Resolve(t, report)
	view := gcview.Render(t, report, j, c)
	summary := insurer.Render(t, view, j)
	return derivation{report: report, view: view, j: j, summary: summary}, nil
}

func transcriptHash(t *transcript.Transcript) (string, error) {
	b, err := canonicalize.JCS(t)
	if err != nil {
		return "", pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	return canonicalize.HashBytes(b), nil
}
