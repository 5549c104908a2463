package transcript

import (
	"fmt"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/pactcrypto"
)

// IntegrityStatus is a verdict: VALID/INVALID for the hash chain,
// MATCH/MISMATCH/ABSENT for the final hash.
type IntegrityStatus string

const (
	StatusValid   IntegrityStatus = "VALID"
	StatusInvalid IntegrityStatus = "INVALID"
	StatusMatch   IntegrityStatus = "MATCH"
	StatusMismatch IntegrityStatus = "MISMATCH"
	StatusAbsent  IntegrityStatus = "ABSENT"
)

// SignatureFailure records why a single round's signature failed to verify.
type SignatureFailure struct {
	RoundNumber int    `json:"round_number"`
	Reason      string `json:"reason"`
}

// SignatureSummary aggregates per-round signature verification.
type SignatureSummary struct {
	Verified int                `json:"verified"`
	Total    int                `json:"total"`
	Failures []SignatureFailure `json:"failures,omitempty"`
}

// VerifyReport is the structured output of transcript verification.
type VerifyReport struct {
	RoundsVerified    int              `json:"rounds_verified"`
	HashChain         IntegrityStatus  `json:"hash_chain"`
	Signatures        SignatureSummary `json:"signatures"`
	FinalHash         IntegrityStatus  `json:"final_hash"`
	Warnings          []string         `json:"warnings,omitempty"`
}

// OK reports whether the transcript verified cleanly: a valid hash chain
// and every signature verified.
func (r *VerifyReport) OK() bool {
	return r.HashChain == StatusValid && r.Signatures.Verified == r.Signatures.Total
}

// Verify checks the round hash chain and every round's signature per the
// algorithm in the component design: recompute each round's payload hash,
// verify its signature, enforce the backward hash link, and compare the
// declared final_hash against the tip. A single chain-link or
// payload-hash failure marks hash_chain INVALID; signature failures are
// collected but do not abort the rest of the computation.
func Verify(t *Transcript) (*VerifyReport, error) {
	report := &VerifyReport{
		HashChain: StatusValid,
		FinalHash: StatusAbsent,
	}

	prevHash := ""
	for i := range t.Rounds {
		r := &t.Rounds[i]

		payload := RoundWithoutSignature(r)
		computedHash, err := canonicalize.Hash(payload)
		if err != nil {
			return nil, fmt.Errorf("transcript: canonicalize round %d: %w", i, err)
		}

		if computedHash != r.Signature.SignedPayloadHashHex {
			report.HashChain = StatusInvalid
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"round %d: signed_payload_hash_hex mismatch (expected %s, got %s)",
				r.RoundNumber, r.Signature.SignedPayloadHashHex, computedHash))
		}

		if i > 0 && r.PrevHashHex != prevHash {
			report.HashChain = StatusInvalid
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"round %d: prev_hash_hex does not match round %d's signed payload hash",
				r.RoundNumber, t.Rounds[i-1].RoundNumber))
		}
		if i == 0 && r.PrevHashHex != "" && !isZeroHash(r.PrevHashHex) {
			report.HashChain = StatusInvalid
			report.Warnings = append(report.Warnings, "round 0: prev_hash_hex must be zero")
		}

		report.Signatures.Total++
		ok, verr := pactcrypto.VerifyB58(r.Signature.SignerPublicKeyB58, r.Signature.SigB58, []byte(r.Signature.SignedPayloadHashHex))
		switch {
		case verr != nil:
			report.Signatures.Failures = append(report.Signatures.Failures, SignatureFailure{
				RoundNumber: r.RoundNumber, Reason: verr.Error(),
			})
		case !ok:
			report.Signatures.Failures = append(report.Signatures.Failures, SignatureFailure{
				RoundNumber: r.RoundNumber, Reason: "signature verification failed",
			})
		default:
			report.Signatures.Verified++
		}

		prevHash = r.Signature.SignedPayloadHashHex
		report.RoundsVerified++
	}

	if t.FinalHash != "" {
		tip := t.Rounds[len(t.Rounds)-1].Signature.SignedPayloadHashHex
		if t.FinalHash == tip {
			report.FinalHash = StatusMatch
		} else {
			report.FinalHash = StatusMismatch
		}
	}

	return report, nil
}

func isZeroHash(h string) bool {
	for _, c := range h {
		if c != '0' {
			return false
		}
	}
	return true
}
