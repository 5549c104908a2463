// Package transcript defines the Pact signed-transcript wire format,
// parses it, and verifies its hash chain and signatures. Identity in a
// transcript is always the signer's public key — agent_id is a display
// label and must never be trusted for identity or attribution.
package transcript

import "encoding/json"

// SchemaName is the wire schema tag every transcript declares.
const SchemaName = "pact-transcript/4.0"

// RoundType enumerates the Pact protocol's message kinds.
type RoundType string

const (
	RoundIntent       RoundType = "INTENT"
	RoundAsk          RoundType = "ASK"
	RoundBid          RoundType = "BID"
	RoundCounter      RoundType = "COUNTER"
	RoundAccept       RoundType = "ACCEPT"
	RoundReject       RoundType = "REJECT"
	RoundCommit       RoundType = "COMMIT"
	RoundReveal       RoundType = "REVEAL"
	RoundStreamStart  RoundType = "STREAM_START"
	RoundStreamChunk  RoundType = "STREAM_CHUNK"
	RoundStreamStop   RoundType = "STREAM_STOP"
)

// validRoundTypes is the enum membership set used during parse.
var validRoundTypes = map[RoundType]bool{
	RoundIntent: true, RoundAsk: true, RoundBid: true, RoundCounter: true,
	RoundAccept: true, RoundReject: true, RoundCommit: true, RoundReveal: true,
	RoundStreamStart: true, RoundStreamChunk: true, RoundStreamStop: true,
}

// Signature is the per-round signer attestation.
type Signature struct {
	SignerPublicKeyB58   string `json:"signer_public_key_b58"`
	SigB58               string `json:"sig_b58"`
	SignedPayloadHashHex string `json:"signed_payload_hash_hex"`
}

// Round is one signed message in the transcript.
type Round struct {
	RoundNumber     int                    `json:"round_number"`
	RoundType       RoundType              `json:"round_type"`
	AgentID         string                 `json:"agent_id,omitempty"`
	PublicKeyB58    string                 `json:"public_key_b58,omitempty"`
	Signature       Signature              `json:"signature"`
	PrevHashHex     string                 `json:"prev_hash_hex"`
	ContentSummary  map[string]interface{} `json:"content_summary,omitempty"`
	TimestampMs     int64                  `json:"timestamp_ms"`
}

// FailureEvent is the optional terminal marker recorded on the transcript.
// Extra carries any additional fields beyond code (e.g. detail, round_ref)
// without requiring every caller to know the full field set up front.
type FailureEvent struct {
	Code  string                 `json:"-"`
	Extra map[string]interface{} `json:"-"`
}

// UnmarshalJSON decodes code plus any additional fields into Extra.
func (f *FailureEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if code, ok := raw["code"].(string); ok {
		f.Code = code
	}
	delete(raw, "code")
	f.Extra = raw
	return nil
}

// MarshalJSON re-assembles code and Extra into a single flat object.
func (f FailureEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.Extra)+1)
	for k, v := range f.Extra {
		out[k] = v
	}
	out["code"] = f.Code
	return json.Marshal(out)
}

// Transcript is the full signed record of one Pact transaction.
type Transcript struct {
	SchemaVersion string                 `json:"schema_version,omitempty"`
	TranscriptID  string                 `json:"transcript_id"`
	IntentType    string                 `json:"intent_type"`
	CreatedAtMs   int64                  `json:"created_at_ms"`
	PolicyHash    string                 `json:"policy_hash"`
	Rounds        []Round                `json:"rounds"`
	FailureEvent  *FailureEvent          `json:"failure_event,omitempty"`
	FinalHash     string                 `json:"final_hash,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// SignerKey returns a round's canonical identity: the signature's signer
// key, falling back to the legacy public_key_b58 field. Never agent_id.
func (r *Round) SignerKey() string {
	if r.Signature.SignerPublicKeyB58 != "" {
		return r.Signature.SignerPublicKeyB58
	}
	return r.PublicKeyB58
}

// Signers returns the insertion-ordered, de-duplicated sequence of signer
// keys that appear anywhere in the transcript.
func (t *Transcript) Signers() []string {
	seen := make(map[string]bool, len(t.Rounds))
	out := make([]string, 0, len(t.Rounds))
	for i := range t.Rounds {
		key := t.Rounds[i].SignerKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// RoundWithoutSignature returns the subset of round fields hashed into
// signed_payload_hash_hex — every field except the signature itself.
func RoundWithoutSignature(r *Round) map[string]interface{} {
	m := map[string]interface{}{
		"round_number": r.RoundNumber,
		"round_type":   string(r.RoundType),
		"prev_hash_hex": r.PrevHashHex,
		"timestamp_ms": r.TimestampMs,
	}
	if r.AgentID != "" {
		m["agent_id"] = r.AgentID
	}
	if r.PublicKeyB58 != "" {
		m["public_key_b58"] = r.PublicKeyB58
	}
	if r.ContentSummary != nil {
		m["content_summary"] = r.ContentSummary
	}
	return m
}

// ProviderOfRecord resolves the provider identity for domain roles (e.g.
// marketplace gallery), preferring an ACCEPT round's content_summary.to,
// falling back to a parties[] entry with role "provider".
func (t *Transcript) ProviderOfRecord() string {
	for i := range t.Rounds {
		r := &t.Rounds[i]
		if r.RoundType != RoundAccept || r.ContentSummary == nil {
			continue
		}
		if to, ok := r.ContentSummary["to"].(string); ok && to != "" {
			return to
		}
	}
	if parties, ok := t.Metadata["parties"].([]interface{}); ok {
		for _, p := range parties {
			party, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if role, _ := party["role"].(string); role == "provider" {
				if key, _ := party["signer_public_key_b58"].(string); key != "" {
					return key
				}
			}
		}
	}
	return ""
}
