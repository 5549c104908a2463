// Package passport folds verified transcripts into per-signer passport
// state: a running score, tier, and history. The fold is an ordered,
// deterministic reduction — the same set of transcripts always yields
// the same passport states regardless of the order they were read from
// disk.
package passport

import (
	"sort"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// SchemaVersion is the passport wire schema tag.
const SchemaVersion = "passport/1.0"

// Tier is the passport's coarse trust bucket.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Role is how a signer participated in a transcript, for history entries.
type Role string

const (
	RoleBuyer    Role = "BUYER"
	RoleProvider Role = "PROVIDER"
	RoleUnknown  Role = "UNKNOWN"
)

// Counters tallies a signer's settlement history.
type Counters struct {
	TotalSettlements      int `json:"total_settlements"`
	SuccessfulSettlements int `json:"successful_settlements"`
	DisputesLost          int `json:"disputes_lost"`
	DisputesWon           int `json:"disputes_won"`
	SLAViolations         int `json:"sla_violations"`
	PolicyAborts          int `json:"policy_aborts"`
}

// HistoryEntry records one transcript's contribution to a signer's state.
type HistoryEntry struct {
	StableID    string  `json:"stable_id"`
	Role        Role    `json:"role"`
	FailureCode string  `json:"failure_code,omitempty"`
	Delta       int     `json:"delta"`
}

// State is a signer's passport: schema passport/1.0.
type State struct {
	AgentID          string         `json:"agent_id"`
	Score            float64        `json:"score"`
	Tier             Tier           `json:"tier"`
	Counters         Counters       `json:"counters"`
	History          []HistoryEntry `json:"history,omitempty"`
	LastUpdated      int64          `json:"last_updated"`
	ConstitutionHash string         `json:"constitution_hash,omitempty"`
	StateHash        string         `json:"state_hash"`
}

// TierFor derives a tier from a score per the threshold table: A >= 0.20,
// B >= -0.10, C >= -0.50, D otherwise.
func TierFor(score float64) Tier {
	switch {
	case score >= 0.20:
		return TierA
	case score >= -0.10:
		return TierB
	case score >= -0.50:
		return TierC
	default:
		return TierD
	}
}

// StableID computes a transcript's stable identifier: SHA-256 over the
// canonical projection {intent_type, policy_hash, rounds[].signature.
// signed_payload_hash_hex}. Used both for cross-directory deduplication
// and for per-signer fold idempotency.
func StableID(t *transcript.Transcript) (string, error) {
	hashes := make([]string, len(t.Rounds))
	for i := range t.Rounds {
		hashes[i] = t.Rounds[i].Signature.SignedPayloadHashHex
	}
	projection := map[string]interface{}{
		"intent_type": t.IntentType,
		"policy_hash": t.PolicyHash,
		"rounds":      toInterfaceSlice(hashes),
	}
	return canonicalize.Hash(projection)
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RoleOf resolves a signer's history role: BUYER if they signed the
// INTENT round, otherwise PROVIDER if they signed any ASK/COUNTER/
// ACCEPT round, otherwise UNKNOWN.
func RoleOf(t *transcript.Transcript, signer string) Role {
	if len(t.Rounds) > 0 && t.Rounds[0].SignerKey() == signer {
		return RoleBuyer
	}
	for i := range t.Rounds {
		r := &t.Rounds[i]
		if r.SignerKey() != signer {
			continue
		}
		switch r.RoundType {
		case transcript.RoundAsk, transcript.RoundCounter, transcript.RoundAccept:
			return RoleProvider
		}
	}
	return RoleUnknown
}

// delta computes one transcript's contribution to a signer's counters
// and score, given its already-resolved judgment.
func delta(role Role, j blame.Judgment) (scoreDelta float64, counters Counters) {
	switch j.FaultDomain {
	case blame.NoFault:
		counters.SuccessfulSettlements = 1
		counters.TotalSettlements = 1
	case blame.ProviderAtFault:
		counters.TotalSettlements = 1
		if role == RoleProvider {
			counters.DisputesLost = 1
		} else {
			counters.DisputesWon = 1
		}
	case blame.BuyerAtFault:
		counters.TotalSettlements = 1
		if role == RoleBuyer {
			counters.DisputesLost = 1
		} else {
			counters.DisputesWon = 1
		}
	case blame.Inconclusive:
		counters.TotalSettlements = 1
	}
	if j.FailureCode == blame.CodePolicyViolation {
		counters.PolicyAborts = 1
	}
	if j.FailureCode == blame.CodeProviderUnreachable || j.FailureCode == blame.CodeCommitMissing {
		counters.SLAViolations = 1
	}
	return float64(j.PassportImpact) / 100.0, counters
}

// Engine folds transcripts into passport states. Construct with New and
// call Add for each input transcript; Finalize derives
// the final states once every transcript has been folded.
type Engine struct {
	seenStableIDs map[string]bool
	dupWarnings   []string
	byTranscript  map[string]*transcript.Transcript
	judgments     map[string]blame.Judgment
	order         []string
}

// New creates an empty fold engine.
func New() *Engine {
	return &Engine{
		seenStableIDs: make(map[string]bool),
		byTranscript:  make(map[string]*transcript.Transcript),
		judgments:     make(map[string]blame.Judgment),
	}
}

// Add folds in one transcript, deduplicating by stable id (first
// occurrence wins; later duplicates are recorded as warnings). It
// verifies and judges the transcript itself so callers only need to
// supply parsed transcripts.
func (e *Engine) Add(t *transcript.Transcript) error {
	id, err := StableID(t)
	if err != nil {
		return err
	}
	if e.seenStableIDs[id] {
		e.dupWarnings = append(e.dupWarnings, "duplicate stable_id skipped: "+id)
		return nil
	}
	e.seenStableIDs[id] = true

	report, err := transcript.Verify(t)
	if err != nil {
		return err
	}
	j := blame.Resolve(t, report)

	e.byTranscript[id] = t
	e.judgments[id] = j
	e.order = append(e.order, id)
	return nil
}

// Warnings reports every duplicate transcript skipped during folding.
func (e *Engine) Warnings() []string { return e.dupWarnings }

// Finalize computes every signer's passport state. Transcripts are
// processed in stable-id order so the result never depends on the order
// transcripts were added in.
func (e *Engine) Finalize(constitutionHash string, nowMs int64) map[string]*State {
	ids := append([]string(nil), e.order...)
	sort.Strings(ids)

	signers := make(map[string]bool)
	for _, id := range ids {
		for _, s := range e.byTranscript[id].Signers() {
			signers[s] = true
		}
	}
	signerList := make([]string, 0, len(signers))
	for s := range signers {
		signerList = append(signerList, s)
	}
	sort.Strings(signerList)

	states := make(map[string]*State, len(signerList))
	for _, signer := range signerList {
		states[signer] = foldSigner(signer, ids, e.byTranscript, e.judgments, constitutionHash, nowMs)
	}
	return states
}

func foldSigner(signer string, ids []string, byTranscript map[string]*transcript.Transcript, judgments map[string]blame.Judgment, constitutionHash string, nowMs int64) *State {
	s := &State{
		AgentID:          signer,
		ConstitutionHash: constitutionHash,
		LastUpdated:      nowMs,
	}

	var score float64
	seenPairs := make(map[string]bool)
	for _, id := range ids {
		t := byTranscript[id]
		relevant := false
		for _, signerInTranscript := range t.Signers() {
			if signerInTranscript == signer {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}
		pairKey := id + "|" + signer
		if seenPairs[pairKey] {
			continue
		}
		seenPairs[pairKey] = true

		j := judgments[id]
		role := RoleOf(t, signer)
		d, counters := delta(role, j)
		score += d
		s.Counters.TotalSettlements += counters.TotalSettlements
		s.Counters.SuccessfulSettlements += counters.SuccessfulSettlements
		s.Counters.DisputesLost += counters.DisputesLost
		s.Counters.DisputesWon += counters.DisputesWon
		s.Counters.SLAViolations += counters.SLAViolations
		s.Counters.PolicyAborts += counters.PolicyAborts
		s.History = append(s.History, HistoryEntry{
			StableID:    id,
			Role:        role,
			FailureCode: j.FailureCode,
			Delta:       j.PassportImpact,
		})
	}

	s.Score = score
	s.Tier = TierFor(score)
	hash, err := canonicalize.Hash(map[string]interface{}{
		"agent_id": s.AgentID,
		"score":    s.Score,
		"counters": map[string]interface{}{
			"total_settlements":      s.Counters.TotalSettlements,
			"successful_settlements": s.Counters.SuccessfulSettlements,
			"disputes_lost":          s.Counters.DisputesLost,
			"disputes_won":           s.Counters.DisputesWon,
			"sla_violations":         s.Counters.SLAViolations,
			"policy_aborts":          s.Counters.PolicyAborts,
		},
	})
	if err == nil {
		s.StateHash = hash
	}
	return s
}
