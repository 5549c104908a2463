// Package insurer derives the Insurer Summary: a coverage decision and
// supporting risk factors computed purely from a transcript, its GC view,
// and its DBL judgment. It never re-verifies or re-judges on its own.
package insurer

import (
	"fmt"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/gcview"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// Coverage is the insurer's coverage verdict.
type Coverage string

const (
	Covered  Coverage = "COVERED"
	Excluded Coverage = "EXCLUDED"
	Review   Coverage = "REVIEW"
)

// SchemaVersion is the insurer summary's wire schema tag.
const SchemaVersion = "insurer_summary/1.0"

// Summary is the rendered insurer summary.
type Summary struct {
	SchemaVersion string   `json:"schema_version"`
	Coverage      Coverage `json:"coverage"`
	RiskFactors   []string `json:"risk_factors,omitempty"`
	Surcharges    []string `json:"surcharges,omitempty"`
	AuditTier     string   `json:"audit_tier,omitempty"`
	AuditSLA      string   `json:"audit_sla,omitempty"`
}

// Render computes the insurer summary for a transcript given its
// already-rendered GC view and DBL judgment.
func Render(t *transcript.Transcript, view gcview.GcView, j blame.Judgment) Summary {
	s := Summary{
		SchemaVersion: SchemaVersion,
		Coverage:      coverage(view, j),
		RiskFactors:   riskFactors(t, view, j),
		Surcharges:    surcharges(t),
	}
	if t.Metadata != nil {
		if tier, ok := t.Metadata["audit_tier"].(string); ok {
			s.AuditTier = tier
		}
		if sla, ok := t.Metadata["audit_sla"].(string); ok {
			s.AuditSLA = sla
		}
	}
	return s
}

func coverage(view gcview.GcView, j blame.Judgment) Coverage {
	if view.Integrity.HashChain != transcript.StatusValid {
		return Excluded
	}
	if j.FaultDomain == blame.BuyerAtFault {
		return Excluded
	}
	if j.FaultDomain == blame.Inconclusive {
		return Review
	}
	return Covered
}

func riskFactors(t *transcript.Transcript, view gcview.GcView, j blame.Judgment) []string {
	var factors []string
	if j.FailureCode != "" {
		factors = append(factors, fmt.Sprintf("failure_code:%s", j.FailureCode))
	}
	if len(t.Rounds) > 8 {
		factors = append(factors, "high_round_count")
	}
	if urgency, ok := urgencyFlag(t); ok && urgency {
		factors = append(factors, "urgency_flag")
	}
	if missingCredentials(t) {
		factors = append(factors, "missing_credentials")
	}
	if view.Integrity.SignaturesVerified.Verified < view.Integrity.SignaturesVerified.Total {
		factors = append(factors, "partial_signature_failure")
	}
	return factors
}

func urgencyFlag(t *transcript.Transcript) (bool, bool) {
	if len(t.Rounds) == 0 {
		return false, false
	}
	intent := t.Rounds[0].ContentSummary
	if intent == nil {
		return false, false
	}
	urgent, ok := intent["urgent"].(bool)
	return urgent, ok
}

func missingCredentials(t *transcript.Transcript) bool {
	for i := range t.Rounds {
		if claims, ok := t.Rounds[i].ContentSummary["claims"].([]interface{}); ok {
			for _, c := range claims {
				claim, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				if _, has := claim["credential"]; !has {
					return true
				}
			}
		}
	}
	return false
}

func surcharges(t *transcript.Transcript) []string {
	var out []string
	for i := range t.Rounds {
		if t.Rounds[i].RoundType == transcript.RoundReject {
			out = append(out, "policy_violation_history")
			break
		}
	}
	return out
}
