// Package canonicalize provides the deterministic, byte-exact JSON
// serialization used to hash every signed artifact in the protocol: round
// payloads, constitutions, GC views, judgments, insurer summaries, passport
// states, and snapshots. It follows RFC 8785 (JSON Canonicalization Scheme)
// with the number-formatting refinements the transcript format requires.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// JCS returns the canonical JSON byte representation of v.
//
//  1. Object keys are sorted lexicographically by UTF-8 code point.
//  2. Arrays preserve element order.
//  3. HTML escaping is disabled.
//  4. Integers are emitted without a fractional part; floats use the
//     shortest round-trip decimal that reparses to the same IEEE-754 value.
//  5. Negative zero is rendered as 0.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JCSString is JCS rendered as a string.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Hash returns the SHA-256 hex digest of the canonical form of v.
func Hash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes is the lowercase hex SHA-256 digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return writeNumber(buf, t)
	case string:
		return writeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canonicalize: unsupported type %T", v)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	// json.Encoder writes its own trailing newline; capture through a scratch buffer
	// so we can trim it without disturbing buf's prior contents.
	var scratch bytes.Buffer
	scratchEnc := json.NewEncoder(&scratch)
	scratchEnc.SetEscapeHTML(false)
	if err := scratchEnc.Encode(s); err != nil {
		return fmt.Errorf("canonicalize: encode string: %w", err)
	}
	buf.Write(bytes.TrimSuffix(scratch.Bytes(), []byte{'\n'}))
	return nil
}

// writeNumber applies the spec's number rules: integers without a
// fractional part, floats as the shortest round-trip decimal, -0 as 0.
func writeNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}

	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canonicalize: invalid number %q: %w", n.String(), err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canonicalize: non-finite number %q", n.String())
	}
	if f == 0 {
		buf.WriteByte('0')
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}
