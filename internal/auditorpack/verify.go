package auditorpack

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/constitution"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// VerifyReport is the structured output of re-verifying a sealed pack.
type VerifyReport struct {
	OK           bool     `json:"ok"`
	ChecksumsOK  bool     `json:"checksums_ok"`
	RecomputeOK  bool     `json:"recompute_ok"`
	Mismatches   []string `json:"mismatches,omitempty"`
	ToolVersion  string   `json:"tool_version"`
}

// VerifyOptions configures re-verification.
type VerifyOptions struct {
	AllowNonstandard      bool
	ConstitutionOverrides *constitution.Overrides
}

// Verify re-verifies a sealed pack at zipPath: checksum every file, then
// recompute the GC view, judgment, and insurer summary from the embedded
// transcript and compare (after stripping additive-only fields) against
// the bundled copies.
func Verify(zipPath string, opts VerifyOptions) (*VerifyReport, error) {
	files, err := readZip(zipPath)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{ToolVersion: ToolVersion}

	for _, f := range requiredFiles {
		if _, ok := files[f]; !ok {
			report.Mismatches = append(report.Mismatches, "missing required file: "+f)
		}
	}
	if len(report.Mismatches) > 0 {
		return report, nil
	}

	checksumsOK, mismatches := verifyChecksums(files)
	report.ChecksumsOK = checksumsOK
	report.Mismatches = append(report.Mismatches, mismatches...)

	var manifest Manifest
	if err := json.Unmarshal(files[FileManifest], &manifest); err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(FileManifest)
	}

	constitutionText := string(files[FileConstitution])
	canonConstitution := constitution.Canonicalize(constitutionText)
	constitutionHash := canonicalize.HashBytes([]byte(canonConstitution))
	if constitutionHash != manifest.ConstitutionHash {
		report.Mismatches = append(report.Mismatches, "constitution hash does not match manifest")
	}

	version, known, cerr := constitution.Accept(constitutionText, opts.ConstitutionOverrides, opts.AllowNonstandard)
	if cerr != nil {
		report.Mismatches = append(report.Mismatches, cerr.Error())
	}
	nonStandardOK := known || opts.AllowNonstandard

	var t transcript.Transcript
	if err := json.Unmarshal(files[FileTranscript], &t); err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(FileTranscript)
	}

	c := &constitution.Constitution{Text: constitutionText, Version: version, NonStandard: !known}
	d, derr := derive(&t, c)
	if derr != nil {
		return nil, derr
	}

	recomputeOK := true
	gcViewAdditive := additiveFieldsFor("gc_view", bundledSchemaTag(files[FileGcView]))
	if mismatch := compareCanonical(files[FileGcView], d.view, gcViewAdditive); mismatch != "" {
		recomputeOK = false
		report.Mismatches = append(report.Mismatches, "gc_view: "+mismatch)
	}
	if mismatch := compareCanonical(files[FileJudgment], d.j, nil); mismatch != "" {
		recomputeOK = false
		report.Mismatches = append(report.Mismatches, "judgment: "+mismatch)
	}
	insurerAdditive := additiveFieldsFor("insurer_summary", bundledSchemaTag(files[FileInsurerSummary]))
	if mismatch := compareCanonical(files[FileInsurerSummary], d.summary, insurerAdditive); mismatch != "" {
		recomputeOK = false
		report.Mismatches = append(report.Mismatches, "insurer_summary: "+mismatch)
	}
	report.RecomputeOK = recomputeOK

	report.OK = report.ChecksumsOK && report.RecomputeOK && nonStandardOK && len(report.Mismatches) == 0
	return report, nil
}

// bundledSchemaTag extracts a bundled artifact's schema_version field
// without fully unmarshaling it into a typed struct, so additive-field
// resolution never depends on the artifact having parsed cleanly first.
func bundledSchemaTag(data []byte) string {
	var probe struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}
	return probe.SchemaVersion
}

// compareCanonical strips additive fields from the bundled JSON, strips
// the same fields from the freshly recomputed value, canonicalizes both,
// and compares hashes. Returns a non-empty description on mismatch.
func compareCanonical(bundled []byte, recomputed interface{}, additiveFields []string) string {
	var bundledGeneric map[string]interface{}
	if err := json.Unmarshal(bundled, &bundledGeneric); err != nil {
		return "unparseable bundled artifact: " + err.Error()
	}
	for _, f := range additiveFields {
		delete(bundledGeneric, f)
	}
	bundledHash, err := canonicalize.Hash(bundledGeneric)
	if err != nil {
		return "canonicalize bundled: " + err.Error()
	}

	recomputedBytes, err := canonicalize.JCS(recomputed)
	if err != nil {
		return "canonicalize recomputed: " + err.Error()
	}
	var recomputedGeneric map[string]interface{}
	if err := json.Unmarshal(recomputedBytes, &recomputedGeneric); err != nil {
		return "unparseable recomputed artifact: " + err.Error()
	}
	for _, f := range additiveFields {
		delete(recomputedGeneric, f)
	}
	recomputedHash, err := canonicalize.Hash(recomputedGeneric)
	if err != nil {
		return "canonicalize recomputed: " + err.Error()
	}

	if bundledHash != recomputedHash {
		return fmt.Sprintf("recompute mismatch (bundled=%s recomputed=%s)",
			pacterr.HashPrefix(bundledHash, 8), pacterr.HashPrefix(recomputedHash, 8))
	}
	return ""
}

func verifyChecksums(files map[string][]byte) (bool, []string) {
	var mismatches []string
	scanner := bufio.NewScanner(bytes.NewReader(files[FileChecksums]))
	listed := make(map[string]string)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			mismatches = append(mismatches, "malformed checksum line: "+line)
			continue
		}
		listed[parts[1]] = parts[0]
	}

	paths := make([]string, 0, len(listed))
	for p := range listed {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		data, ok := files[p]
		if !ok {
			mismatches = append(mismatches, "checksum lists missing file: "+p)
			continue
		}
		actual := canonicalize.HashBytes(data)
		if actual != listed[p] {
			mismatches = append(mismatches, fmt.Sprintf("checksum mismatch for %s", p))
		}
	}
	return len(mismatches) == 0, mismatches
}

func readZip(path string) (map[string][]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindPack, "", err).WithPath(path)
	}
	defer r.Close()

	files := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, pacterr.Wrap(pacterr.KindPack, "", err).WithPath(f.Name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, pacterr.Wrap(pacterr.KindPack, "", err).WithPath(f.Name)
		}
		files[f.Name] = data
	}
	return files, nil
}
