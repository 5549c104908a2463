package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/schemaver"
)

// schemaTagName/schemaMajor are the accepted schema_version tag
// components: "pact-transcript/4.x".
const schemaTagName = "pact-transcript"
const schemaMajor = 4

// Parse decodes and structurally validates raw transcript JSON bytes.
// It checks required fields and enum membership; it does not verify hashes
// or signatures — that is Verify's job.
func Parse(data []byte) (*Transcript, error) {
	if err := ValidateWireSchema(data); err != nil {
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err)
	}

	if err := validateStructure(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func validateStructure(t *Transcript) error {
	if err := schemaver.Accept(t.SchemaVersion, schemaTagName, schemaMajor); err != nil {
		return err
	}
	if t.TranscriptID == "" {
		return pacterr.New(pacterr.KindParse, "missing transcript_id")
	}
	if t.IntentType == "" {
		return pacterr.New(pacterr.KindParse, "missing intent_type")
	}
	if len(t.Rounds) == 0 {
		return pacterr.New(pacterr.KindParse, "rounds must be non-empty")
	}
	if t.Rounds[0].RoundType != RoundIntent {
		return pacterr.New(pacterr.KindParse, "round 0 must be INTENT").WithRound(0)
	}

	seenNumbers := make(map[int]bool, len(t.Rounds))
	prevNumber := -1
	for i := range t.Rounds {
		r := &t.Rounds[i]
		if !validRoundTypes[r.RoundType] {
			return pacterr.New(pacterr.KindParse, fmt.Sprintf("unknown round_type %q", r.RoundType)).WithRound(i)
		}
		if seenNumbers[r.RoundNumber] {
			return pacterr.New(pacterr.KindParse, "duplicate round_number").WithRound(i)
		}
		seenNumbers[r.RoundNumber] = true
		if r.RoundNumber <= prevNumber {
			return pacterr.New(pacterr.KindParse, "round_number must be strictly increasing").WithRound(i)
		}
		prevNumber = r.RoundNumber

		if r.SignerKey() == "" {
			return pacterr.New(pacterr.KindParse, "round has no signer key").WithRound(i)
		}
		if r.Signature.SignedPayloadHashHex == "" {
			return pacterr.New(pacterr.KindParse, "round signature missing signed_payload_hash_hex").WithRound(i)
		}
	}

	if t.FailureEvent != nil && t.FailureEvent.Code == "" {
		return pacterr.New(pacterr.KindParse, "failure_event missing code")
	}

	return nil
}
