// Package blame implements the Deterministic Blame resolver (DBL): a pure
// state machine that walks a verified transcript round by round and
// produces a judgment attributing fault, next required actor, and the
// passport score impact of the outcome. It never reads clocks and never
// touches the network — its only inputs are a transcript and the
// integrity report already computed for it.
package blame

import (
	"math"

	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// State is a DBL state-machine state.
type State string

const (
	StateInit        State = "INIT"
	StateIntentSeen  State = "INTENT_SEEN"
	StateNegotiating State = "NEGOTIATING"
	StateAccepted    State = "ACCEPTED"
	StateLocked      State = "LOCKED"
	StateExchanging  State = "EXCHANGING"
	StateTerminalOK  State = "TERMINAL_OK"
	StateTerminalFail State = "TERMINAL_FAIL"
)

// FaultDomain identifies who the blame table assigns fault to.
type FaultDomain string

const (
	NoFault         FaultDomain = "NO_FAULT"
	BuyerAtFault    FaultDomain = "BUYER_AT_FAULT"
	ProviderAtFault FaultDomain = "PROVIDER_AT_FAULT"
	Inconclusive    FaultDomain = "INCONCLUSIVE"
)

// Actor is who must act next to resolve or finalize the transaction.
type Actor string

const (
	ActorNone     Actor = "NONE"
	ActorBuyer    Actor = "BUYER"
	ActorProvider Actor = "PROVIDER"
	ActorAuditor  Actor = "AUDITOR"
)

// Determination mirrors the judgment's coarse fault classification.
type Determination string

const (
	DetNoFault         Determination = "NO_FAULT"
	DetBuyerAtFault    Determination = "BUYER_AT_FAULT"
	DetProviderAtFault Determination = "PROVIDER_AT_FAULT"
	DetInconclusive    Determination = "INCONCLUSIVE"
)

// Failure codes from the blame table.
const (
	CodeProtocolViolation    = "PACT-109"
	CodeBuyerStoppedStream   = "PACT-201"
	CodePolicyViolation      = "PACT-101"
	CodeProviderUnreachable  = "PACT-420"
	CodeProviderAPIMismatch  = "PACT-421"
	CodeCommitMissing        = "PACT-430"
	CodeRevealHashMismatch   = "PACT-431"
	CodeSignatureFailure     = "PACT-500"
	CodeHashChainBroken      = "PACT-501"
)

// Judgment is the DBL's structured verdict.
type Judgment struct {
	Status              string        `json:"status"`
	FailureCode          string        `json:"failureCode,omitempty"`
	LastValidRound       int           `json:"lastValidRound"`
	LastValidSummary     map[string]interface{} `json:"lastValidSummary,omitempty"`
	LastValidSignedHash  string        `json:"lastValidSignedHash"`
	DblDetermination     Determination `json:"dblDetermination"`
	RequiredNextActor    Actor         `json:"requiredNextActor"`
	RequiredAction       string        `json:"requiredAction,omitempty"`
	Terminal             bool          `json:"terminal"`
	Confidence           float64       `json:"confidence"`
	PassportImpact       int           `json:"passportImpact"`
	Recommendation       string        `json:"recommendation,omitempty"`
	FaultDomain          FaultDomain   `json:"faultDomain"`
}

// legalNext enumerates the round types that keep the state machine in a
// well-formed transition from each state.
var legalNext = map[State]map[transcript.RoundType]State{
	StateInit: {
		transcript.RoundIntent: StateIntentSeen,
	},
	StateIntentSeen: {
		transcript.RoundAsk:     StateNegotiating,
		transcript.RoundBid:     StateNegotiating,
		transcript.RoundReject:  StateTerminalFail,
	},
	StateNegotiating: {
		transcript.RoundAsk:         StateNegotiating,
		transcript.RoundBid:         StateNegotiating,
		transcript.RoundCounter:     StateNegotiating,
		transcript.RoundAccept:      StateAccepted,
		transcript.RoundReject:      StateTerminalFail,
		transcript.RoundStreamStart: StateExchanging,
	},
	StateAccepted: {
		transcript.RoundCommit: StateLocked,
	},
	StateLocked: {
		transcript.RoundReveal: StateTerminalOK,
	},
	StateExchanging: {
		transcript.RoundStreamChunk: StateExchanging,
		transcript.RoundStreamStop:  StateTerminalOK,
	},
}

// Resolve walks the transcript's rounds and produces a Judgment. report
// is the already-computed verification report for the same transcript;
// Resolve uses it rather than re-verifying.
func Resolve(t *transcript.Transcript, report *transcript.VerifyReport) Judgment {
	lastValidRound, lastValidHash, lastValidSummary := lastValid(t, report)

	if t.FailureEvent != nil {
		return judgmentForFailureEvent(t, report, lastValidRound, lastValidHash, lastValidSummary)
	}

	if report.HashChain != transcript.StatusValid {
		return Judgment{
			Status:              "FAILED",
			FailureCode:         CodeHashChainBroken,
			LastValidRound:      lastValidRound,
			LastValidSummary:    lastValidSummary,
			LastValidSignedHash: lastValidHash,
			DblDetermination:    DetInconclusive,
			RequiredNextActor:   ActorAuditor,
			RequiredAction:      "escalate to audit; hash chain is broken",
			Terminal:            true,
			Confidence:          1.0,
			PassportImpact:      0,
			FaultDomain:         Inconclusive,
		}
	}

	if len(report.Signatures.Failures) > 0 {
		return Judgment{
			Status:              "FAILED",
			FailureCode:         CodeSignatureFailure,
			LastValidRound:      lastValidRound,
			LastValidSummary:    lastValidSummary,
			LastValidSignedHash: lastValidHash,
			DblDetermination:    DetInconclusive,
			RequiredNextActor:   ActorAuditor,
			RequiredAction:      "escalate to audit; one or more signatures failed",
			Terminal:            true,
			Confidence:          1.0,
			PassportImpact:      0,
			FaultDomain:         Inconclusive,
		}
	}

	state := StateInit
	for i := range t.Rounds {
		r := &t.Rounds[i]
		next, ok := legalNext[state][r.RoundType]
		if !ok {
			return Judgment{
				Status:              "FAILED",
				FailureCode:         CodeProtocolViolation,
				LastValidRound:      lastValidRound,
				LastValidSummary:    lastValidSummary,
				LastValidSignedHash: lastValidHash,
				DblDetermination:    DetInconclusive,
				RequiredNextActor:   ActorAuditor,
				RequiredAction:      "escalate to audit; illegal protocol transition",
				Terminal:            true,
				Confidence:          0.9,
				PassportImpact:      0,
				FaultDomain:         Inconclusive,
			}
		}
		state = next
	}

	switch state {
	case StateTerminalOK:
		role := providerOrBuyer(t)
		impact := 3
		if role == ActorProvider {
			impact = 5
		}
		return Judgment{
			Status:              "COMPLETED",
			LastValidRound:      lastValidRound,
			LastValidSummary:    lastValidSummary,
			LastValidSignedHash: lastValidHash,
			DblDetermination:    DetNoFault,
			RequiredNextActor:   ActorNone,
			Terminal:            true,
			Confidence:          streamConfidence(t),
			PassportImpact:      impact,
			FaultDomain:         NoFault,
		}
	case StateTerminalFail:
		return judgmentForRejection(t, lastValidRound, lastValidHash, lastValidSummary)
	default:
		// Transcript ends mid-protocol with no failure_event: incomplete
		// negotiation, nothing terminal has happened yet.
		return Judgment{
			Status:              "FAILED",
			FailureCode:         CodeCommitMissing,
			LastValidRound:      lastValidRound,
			LastValidSummary:    lastValidSummary,
			LastValidSignedHash: lastValidHash,
			DblDetermination:    DetProviderAtFault,
			RequiredNextActor:   ActorProvider,
			RequiredAction:      "commit missing by deadline",
			Terminal:            true,
			Confidence:          0.9,
			PassportImpact:      effectiveDelta(-10, 0.9),
			FaultDomain:         ProviderAtFault,
		}
	}
}

func judgmentForRejection(t *transcript.Transcript, lastValidRound int, lastValidHash string, lastValidSummary map[string]interface{}) Judgment {
	reject := lastRoundOfType(t, transcript.RoundReject)
	fault, actor := attributeRejection(t, reject)
	confidence := 0.9
	impact := 0
	if fault == BuyerAtFault {
		impact = effectiveDelta(-5, confidence)
	} else if fault == ProviderAtFault {
		impact = effectiveDelta(-10, confidence)
	}
	return Judgment{
		Status:              "ABORTED_POLICY",
		FailureCode:         CodePolicyViolation,
		LastValidRound:      lastValidRound,
		LastValidSummary:    lastValidSummary,
		LastValidSignedHash: lastValidHash,
		DblDetermination:    Determination(fault),
		RequiredNextActor:   actor,
		RequiredAction:      "counterparty may renegotiate or escalate",
		Terminal:            true,
		Confidence:          confidence,
		PassportImpact:      impact,
		FaultDomain:         fault,
	}
}

func judgmentForFailureEvent(t *transcript.Transcript, report *transcript.VerifyReport, lastValidRound int, lastValidHash string, lastValidSummary map[string]interface{}) Judgment {
	code := t.FailureEvent.Code
	switch code {
	case CodeProviderUnreachable:
		return Judgment{
			Status: "FAILED_PROVIDER_UNREACHABLE", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetProviderAtFault, RequiredNextActor: ActorProvider,
			RequiredAction: "retry delivery or escalate to audit", Terminal: true, Confidence: 0.9,
			PassportImpact: effectiveDelta(-10, 0.9), FaultDomain: ProviderAtFault,
		}
	case CodeProviderAPIMismatch:
		return Judgment{
			Status: "FAILED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetProviderAtFault, RequiredNextActor: ActorProvider,
			RequiredAction: "provider must reconcile API response with accepted terms", Terminal: true, Confidence: 0.85,
			PassportImpact: effectiveDelta(-10, 0.85), FaultDomain: ProviderAtFault,
		}
	case CodeCommitMissing:
		return Judgment{
			Status: "FAILED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetProviderAtFault, RequiredNextActor: ActorProvider,
			RequiredAction: "commit missing by deadline", Terminal: true, Confidence: 0.9,
			PassportImpact: effectiveDelta(-10, 0.9), FaultDomain: ProviderAtFault,
		}
	case CodeRevealHashMismatch:
		return Judgment{
			Status: "FAILED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetProviderAtFault, RequiredNextActor: ActorAuditor,
			RequiredAction: "reveal hash does not match committed value; escalate to audit", Terminal: true, Confidence: 1.0,
			PassportImpact: effectiveDelta(-20, 1.0), FaultDomain: ProviderAtFault,
		}
	case CodeBuyerStoppedStream:
		return Judgment{
			Status: "COMPLETED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetNoFault, RequiredNextActor: ActorNone,
			Terminal: true, Confidence: 0.9, PassportImpact: 0, FaultDomain: NoFault,
		}
	case CodePolicyViolation:
		return judgmentForRejection(t, lastValidRound, lastValidHash, lastValidSummary)
	case CodeProtocolViolation:
		return Judgment{
			Status: "FAILED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetInconclusive, RequiredNextActor: ActorAuditor,
			RequiredAction: "escalate to audit; illegal protocol transition", Terminal: true, Confidence: 0.9,
			PassportImpact: 0, FaultDomain: Inconclusive,
		}
	default:
		return Judgment{
			Status: "FAILED", FailureCode: code,
			LastValidRound: lastValidRound, LastValidSummary: lastValidSummary, LastValidSignedHash: lastValidHash,
			DblDetermination: DetInconclusive, RequiredNextActor: ActorAuditor,
			RequiredAction: "unrecognized failure code; escalate to audit", Terminal: true, Confidence: 0.5,
			PassportImpact: 0, FaultDomain: Inconclusive,
		}
	}
}

// attributeRejection assigns fault for a policy-violation rejection to
// whichever party's round triggered the REJECT: the signer of the round
// immediately preceding it is deemed to have made the offending offer,
// the opposite party is then owed the next action.
func attributeRejection(t *transcript.Transcript, reject *transcript.Round) (FaultDomain, Actor) {
	if reject == nil || reject.RoundNumber == 0 {
		return Inconclusive, ActorAuditor
	}
	offending := &t.Rounds[reject.RoundNumber-1]
	buyer := t.Rounds[0].SignerKey()
	if offending.SignerKey() == buyer {
		return BuyerAtFault, ActorProvider
	}
	return ProviderAtFault, ActorBuyer
}

func lastRoundOfType(t *transcript.Transcript, rt transcript.RoundType) *transcript.Round {
	for i := len(t.Rounds) - 1; i >= 0; i-- {
		if t.Rounds[i].RoundType == rt {
			return &t.Rounds[i]
		}
	}
	return nil
}

// providerOrBuyer reports which role the transcript's completer acted in,
// using the transcript's declared provider of record.
func providerOrBuyer(t *transcript.Transcript) Actor {
	provider := t.ProviderOfRecord()
	if provider == "" {
		return ActorBuyer
	}
	for i := range t.Rounds {
		if t.Rounds[i].RoundType == transcript.RoundReveal && t.Rounds[i].SignerKey() == provider {
			return ActorProvider
		}
	}
	return ActorBuyer
}

func streamConfidence(t *transcript.Transcript) float64 {
	for i := range t.Rounds {
		if t.Rounds[i].RoundType == transcript.RoundStreamStart {
			return 0.95
		}
	}
	return 1.0
}

// lastValid returns the greatest round index whose signature and chain
// link verify, that round's signed payload hash, and its content summary.
func lastValid(t *transcript.Transcript, report *transcript.VerifyReport) (int, string, map[string]interface{}) {
	failed := make(map[int]bool, len(report.Signatures.Failures))
	for _, f := range report.Signatures.Failures {
		failed[f.RoundNumber] = true
	}

	lastRound := 0
	lastHash := ""
	var lastSummary map[string]interface{}
	for i := range t.Rounds {
		r := &t.Rounds[i]
		if failed[r.RoundNumber] {
			break
		}
		lastRound = r.RoundNumber
		lastHash = r.Signature.SignedPayloadHashHex
		lastSummary = r.ContentSummary
	}
	return lastRound, lastHash, lastSummary
}

// effectiveDelta applies the confidence-scaled rounding rule: effective
// delta = round(impact * confidence).
func effectiveDelta(impact int, confidence float64) int {
	return int(math.Round(float64(impact) * confidence))
}
