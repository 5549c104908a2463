// Package testutil provides the signer and round builder that the core
// packages' tests use to assemble signed transcript fixtures; each test
// file builds its own scenarios (SUCCESS-001, PACT-101, PACT-420, tampered
// transcript, ...) from them.
package testutil

import (
	"crypto/ed25519"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/pactcrypto"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// Signer wraps an ed25519 keypair for building signed rounds in tests.
type Signer struct {
	Pub  ed25519.PublicKey
	Priv ed25519.PrivateKey
}

// NewSigner generates a fresh random keypair.
func NewSigner() *Signer {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &Signer{Pub: pub, Priv: priv}
}

// PubB58 is the signer's base58-encoded public key.
func (s *Signer) PubB58() string { return pactcrypto.B58Encode(s.Pub) }

// Builder accumulates signed rounds into a transcript.
type Builder struct {
	t        transcript.Transcript
	prevHash string
}

// NewBuilder starts a transcript with the given id/intent type.
func NewBuilder(transcriptID, intentType string) *Builder {
	return &Builder{
		t: transcript.Transcript{
			TranscriptID: transcriptID,
			IntentType:   intentType,
			CreatedAtMs:  1700000000000,
			PolicyHash:   "policy-hash-1",
		},
	}
}

// AddRound signs and appends a round, wiring the hash chain automatically.
func (b *Builder) AddRound(signer *Signer, roundType transcript.RoundType, timestampMs int64, content map[string]interface{}) *Builder {
	roundNumber := len(b.t.Rounds)
	r := transcript.Round{
		RoundNumber:    roundNumber,
		RoundType:      roundType,
		AgentID:        "agent-" + lowerRoundType(roundType),
		PrevHashHex:    b.prevHash,
		ContentSummary: content,
		TimestampMs:    timestampMs,
	}
	if roundNumber == 0 {
		r.PrevHashHex = ""
	}

	payload := transcript.RoundWithoutSignature(&r)
	payloadHash, err := canonicalize.Hash(payload)
	if err != nil {
		panic(err)
	}
	sig := ed25519.Sign(signer.Priv, []byte(payloadHash))

	r.Signature = transcript.Signature{
		SignerPublicKeyB58:   signer.PubB58(),
		SigB58:               pactcrypto.B58Encode(sig),
		SignedPayloadHashHex: payloadHash,
	}

	b.t.Rounds = append(b.t.Rounds, r)
	b.prevHash = payloadHash
	return b
}

// WithFailure attaches a terminal failure event.
func (b *Builder) WithFailure(code string) *Builder {
	b.t.FailureEvent = &transcript.FailureEvent{Code: code, Extra: map[string]interface{}{}}
	return b
}

// WithFinalHash sets final_hash to the current chain tip (or an explicit value).
func (b *Builder) WithFinalHash(explicit string) *Builder {
	if explicit != "" {
		b.t.FinalHash = explicit
		return b
	}
	b.t.FinalHash = b.prevHash
	return b
}

// Build returns the assembled transcript.
func (b *Builder) Build() *transcript.Transcript {
	cp := b.t
	return &cp
}

func lowerRoundType(rt transcript.RoundType) string {
	s := []byte(string(rt))
	for i, c := range s {
		if c >= 'A' && c <= 'Z' {
			s[i] = c + ('a' - 'A')
		}
	}
	return string(s)
}
