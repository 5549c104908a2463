// Package gcview renders the General Counsel View: a human-legible
// integrity, outcome, and responsibility projection of a verified
// transcript. Render is a pure function — it never re-derives integrity
// itself, it copies the already-computed verify report and judgment.
package gcview

import (
	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/constitution"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// ExecutiveSummary is the plain-language outcome projection.
type ExecutiveSummary struct {
	Status              string `json:"status"`
	WhatHappened        string `json:"what_happened"`
	MoneyMoved          bool   `json:"money_moved"`
	FinalOutcome        string `json:"final_outcome"`
	SettlementAttempted bool   `json:"settlement_attempted"`
}

// SignaturesVerified mirrors transcript.SignatureSummary's counts.
type SignaturesVerified struct {
	Verified int `json:"verified"`
	Total    int `json:"total"`
}

// Integrity is copied verbatim from the transcript verify report.
type Integrity struct {
	HashChain           transcript.IntegrityStatus `json:"hash_chain"`
	SignaturesVerified  SignaturesVerified         `json:"signatures_verified"`
	FinalHashValidation transcript.IntegrityStatus `json:"final_hash_validation"`
}

// JudgmentView is the subset of the DBL judgment surfaced in a GC view.
type JudgmentView struct {
	FaultDomain       blame.FaultDomain `json:"fault_domain"`
	RequiredNextActor blame.Actor       `json:"required_next_actor"`
	RequiredAction    string            `json:"required_action,omitempty"`
	Terminal          bool              `json:"terminal"`
	Confidence        float64           `json:"confidence"`
}

// Responsibility attributes fault and names what happens next.
type Responsibility struct {
	LastValidSignedHash string       `json:"last_valid_signed_hash"`
	BlameExplanation    string       `json:"blame_explanation"`
	Judgment            JudgmentView `json:"judgment"`
}

// ConstitutionRef cites the rulebook a GC view was rendered against.
type ConstitutionRef struct {
	Version      string   `json:"version"`
	Hash         string   `json:"hash"`
	RulesApplied []string `json:"rules_applied,omitempty"`
}

// Party is one participant named in the subject block.
type Party struct {
	Role               string `json:"role"`
	SignerPublicKeyB58 string `json:"signer_public_key_b58"`
}

// Subject identifies the transcript a GC view describes and its parties.
type Subject struct {
	TranscriptIDOrHash string  `json:"transcript_id_or_hash"`
	Parties            []Party `json:"parties"`
}

// GcView is the rendered general-counsel projection, schema gc_view/1.x.
type GcView struct {
	SchemaVersion     string           `json:"schema_version"`
	ExecutiveSummary  ExecutiveSummary `json:"executive_summary"`
	Integrity         Integrity        `json:"integrity"`
	Responsibility    Responsibility   `json:"responsibility"`
	Constitution      ConstitutionRef  `json:"constitution"`
	Subject           Subject          `json:"subject"`
	Audit             map[string]interface{} `json:"audit,omitempty"`
}

const SchemaVersion = "gc_view/1.0"

// Render builds a GC view from a transcript, its verify report, its DBL
// judgment, and the constitution it was evaluated against. All three
// inputs must already be computed — Render performs no verification.
func Render(t *transcript.Transcript, report *transcript.VerifyReport, j blame.Judgment, c *constitution.Constitution) GcView {
	view := GcView{
		SchemaVersion: SchemaVersion,
		ExecutiveSummary: ExecutiveSummary{
			Status:              normalizeStatus(j),
			WhatHappened:        whatHappened(j),
			MoneyMoved:          j.Status == "COMPLETED",
			FinalOutcome:        finalOutcome(j),
			SettlementAttempted: settlementAttempted(t),
		},
		Integrity: Integrity{
			HashChain: report.HashChain,
			SignaturesVerified: SignaturesVerified{
				Verified: report.Signatures.Verified,
				Total:    report.Signatures.Total,
			},
			FinalHashValidation: report.FinalHash,
		},
		Responsibility: Responsibility{
			LastValidSignedHash: j.LastValidSignedHash,
			BlameExplanation:    blameExplanation(j),
			Judgment: JudgmentView{
				FaultDomain:       j.FaultDomain,
				RequiredNextActor: j.RequiredNextActor,
				RequiredAction:    j.RequiredAction,
				Terminal:          j.Terminal,
				Confidence:        j.Confidence,
			},
		},
		Constitution: ConstitutionRef{
			RulesApplied: rulesApplied(j),
		},
		Subject: Subject{
			TranscriptIDOrHash: t.TranscriptID,
			Parties:            parties(t),
		},
	}
	if c != nil {
		view.Constitution.Version = c.Version.Version
		view.Constitution.Hash = c.Version.Hash
	}
	return view
}

// normalizeStatus applies the status-normalization rule: COMPLETED stays
// as-is, PACT-101 family becomes ABORTED_POLICY, PACT-420 becomes
// FAILED_PROVIDER_UNREACHABLE, everything else terminal-but-failed
// collapses to FAILED. The sentinel TAMPERED_STATUS is never produced
// here — tamper state lives only in Integrity.
func normalizeStatus(j blame.Judgment) string {
	switch j.Status {
	case "COMPLETED", "ABORTED_POLICY", "FAILED_PROVIDER_UNREACHABLE":
		return j.Status
	default:
		return "FAILED"
	}
}

func whatHappened(j blame.Judgment) string {
	switch j.Status {
	case "COMPLETED":
		return "Transaction completed: terms were accepted and settled."
	case "ABORTED_POLICY":
		return "Transaction aborted during negotiation due to a policy violation."
	case "FAILED_PROVIDER_UNREACHABLE":
		return "Provider did not respond within the required window."
	default:
		if j.FailureCode != "" {
			return "Transaction failed with code " + j.FailureCode + "."
		}
		return "Transaction did not complete."
	}
}

func finalOutcome(j blame.Judgment) string {
	if j.Status == "COMPLETED" {
		return "settled"
	}
	return "unsettled"
}

func settlementAttempted(t *transcript.Transcript) bool {
	for i := range t.Rounds {
		if t.Rounds[i].RoundType == transcript.RoundCommit {
			return true
		}
	}
	return false
}

func blameExplanation(j blame.Judgment) string {
	if j.FaultDomain == blame.NoFault {
		return "No fault: transaction completed per protocol."
	}
	if j.RequiredAction != "" {
		return j.RequiredAction
	}
	return "Fault attribution inconclusive."
}

// rulesApplied names the blame-table rule the resolver consulted. Codes
// double as rule ids here since the core carries no separate rule
// catalog beyond the blame table itself.
func rulesApplied(j blame.Judgment) []string {
	if j.FailureCode == "" {
		return []string{"DBL-COMPLETED"}
	}
	return []string{"DBL-" + j.FailureCode}
}

func parties(t *transcript.Transcript) []Party {
	out := make([]Party, 0, len(t.Signers()))
	buyer := ""
	if len(t.Rounds) > 0 {
		buyer = t.Rounds[0].SignerKey()
	}
	provider := t.ProviderOfRecord()
	for _, signer := range t.Signers() {
		role := "participant"
		switch {
		case signer == buyer:
			role = "buyer"
		case signer == provider:
			role = "provider"
		}
		out = append(out, Party{Role: role, SignerPublicKeyB58: signer})
	}
	return out
}

// GetStatusForDisplay is the pure display transform named by the
// component design: when the integrity verdict is not clean, economic
// and status fields must render as "Claimed (untrusted)", or "Not
// recorded" if the underlying value is empty. It never mutates the
// stored GcView — callers apply it only at presentation time.
func GetStatusForDisplay(status string, hashChain transcript.IntegrityStatus) string {
	if hashChain == transcript.StatusValid {
		if status == "" {
			return "Not recorded"
		}
		return status
	}
	if status == "" {
		return "Not recorded"
	}
	return "Claimed (untrusted)"
}

// OutcomeBadge is the coarse claim/trust badge a downstream viewer shows
// next to a rendered view's executive summary.
type OutcomeBadge string

const (
	BadgeClaimed     OutcomeBadge = "CLAIMED"
	BadgeUnavailable OutcomeBadge = "UNAVAILABLE"
)

// SummaryBadges bundles the badges DeriveSummaryBadges computes for a
// rendered view.
type SummaryBadges struct {
	OutcomeBadge string `json:"outcome_badge"`
}

// DeriveSummaryBadges is the outcome-gating pure function named by the
// component design, separate from GetStatusForDisplay's string-level
// transform: CLAIMED once the hash chain fails to verify (this core has
// no distinct TAMPERED verdict — a broken chain is tampered evidence
// either way), UNAVAILABLE when the chain holds but one or more
// signatures failed to verify (the closest this core comes to an
// INDETERMINATE integrity verdict), and the normalized executive-summary
// status otherwise.
func DeriveSummaryBadges(view GcView) SummaryBadges {
	switch {
	case view.Integrity.HashChain != transcript.StatusValid:
		return SummaryBadges{OutcomeBadge: string(BadgeClaimed)}
	case view.Integrity.SignaturesVerified.Verified < view.Integrity.SignaturesVerified.Total:
		return SummaryBadges{OutcomeBadge: string(BadgeUnavailable)}
	default:
		return SummaryBadges{OutcomeBadge: view.ExecutiveSummary.Status}
	}
}
