package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// wireSchema is the compiled JSON Schema every transcript's raw bytes are
// checked against before struct decoding, giving ParseError's "missing
// required field / out-of-range enum" failures a precise, machine-checked
// source rather than relying solely on Go's zero-value defaults.
const wireSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["transcript_id", "intent_type", "created_at_ms", "policy_hash", "rounds"],
  "properties": {
    "transcript_id": {"type": "string", "minLength": 1},
    "intent_type": {"type": "string", "minLength": 1},
    "created_at_ms": {"type": "integer"},
    "policy_hash": {"type": "string"},
    "rounds": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["round_number", "round_type", "signature", "prev_hash_hex", "timestamp_ms"],
        "properties": {
          "round_number": {"type": "integer"},
          "round_type": {
            "type": "string",
            "enum": ["INTENT", "ASK", "BID", "COUNTER", "ACCEPT", "REJECT", "COMMIT", "REVEAL", "STREAM_START", "STREAM_CHUNK", "STREAM_STOP"]
          },
          "signature": {
            "type": "object",
            "required": ["sig_b58", "signed_payload_hash_hex"],
            "properties": {
              "signer_public_key_b58": {"type": "string"},
              "sig_b58": {"type": "string", "minLength": 1},
              "signed_payload_hash_hex": {"type": "string", "minLength": 1}
            }
          },
          "prev_hash_hex": {"type": "string"},
          "timestamp_ms": {"type": "integer"}
        }
      }
    },
    "failure_event": {
      "type": "object",
      "required": ["code"],
      "properties": {"code": {"type": "string", "pattern": "^PACT-[0-9]+$"}}
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("pact-transcript.json", strings.NewReader(wireSchema)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile("pact-transcript.json")
	})
	return compiled, compileErr
}

// ValidateWireSchema checks raw transcript bytes against the compiled
// JSON Schema, independent of (and prior to) Go struct decoding.
func ValidateWireSchema(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return pacterr.Wrap(pacterr.KindParse, "", err)
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return pacterr.Wrap(pacterr.KindParse, "", err)
	}

	if err := schema.Validate(v); err != nil {
		return pacterr.Wrap(pacterr.KindParse, "", err)
	}
	return nil
}
