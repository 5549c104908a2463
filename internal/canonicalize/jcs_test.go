package canonicalize

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/gowebpki/jcs"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_SortsObjectKeys(t *testing.T) {
	out, err := JCSString(map[string]interface{}{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, out)
}

func TestJCS_PreservesArrayOrder(t *testing.T) {
	out, err := JCSString([]interface{}{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, `[3,1,2]`, out)
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	out, err := JCSString(map[string]interface{}{"html": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>&"}`, out)
}

func TestJCS_IntegerHasNoFraction(t *testing.T) {
	out, err := JCSString(map[string]interface{}{"created_at_ms": 1700000000000})
	require.NoError(t, err)
	assert.Equal(t, `{"created_at_ms":1700000000000}`, out)
}

func TestJCS_NegativeZeroBecomesZero(t *testing.T) {
	out, err := JCSString(map[string]interface{}{"x": -0.0})
	require.NoError(t, err)
	assert.Equal(t, `{"x":0}`, out)
}

func TestJCS_CompactNoWhitespace(t *testing.T) {
	out, err := JCSString(map[string]interface{}{"a": []interface{}{1, 2}})
	require.NoError(t, err)
	assert.NotContains(t, out, " ")
	assert.NotContains(t, out, "\n")
}

// TestJCS_RoundTripProperty checks canonical(parse(canonical(x))) == canonical(x)
// for arbitrary JSON-compatible nested maps, per the universally quantified
// invariant in the spec.
func TestJCS_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	jsonValue := genJSONValue(3)

	properties.Property("round trip is stable", prop.ForAll(
		func(v interface{}) bool {
			first, err := JCS(v)
			if err != nil {
				return false
			}
			var reparsed interface{}
			dec := json.NewDecoder(bytes.NewReader(first))
			dec.UseNumber()
			if err := dec.Decode(&reparsed); err != nil {
				return false
			}
			second, err := JCS(reparsed)
			if err != nil {
				return false
			}
			return string(first) == string(second)
		},
		jsonValue,
	))

	properties.TestingRun(t)
}

// TestJCS_CrossCheckAgainstReferenceImplementation checks our hand-rolled
// canonicalizer against gowebpki/jcs, an independent RFC 8785
// implementation, over object/array/string/bool/safe-integer values —
// our number-formatting rules (bare integers, no -0) are a superset of
// plain RFC 8785 for that range, so the two must agree there even though
// gowebpki/jcs is never used on the production path.
func TestJCS_CrossCheckAgainstReferenceImplementation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("agrees with gowebpki/jcs", prop.ForAll(
		func(v interface{}) bool {
			ours, err := JCS(v)
			if err != nil {
				return false
			}

			raw, err := json.Marshal(v)
			if err != nil {
				return false
			}
			theirs, err := jcs.Transform(raw)
			if err != nil {
				return false
			}
			return string(ours) == string(theirs)
		},
		genSafeJSONValue(3),
	))

	properties.TestingRun(t)
}

// genSafeJSONValue avoids floats and large integers, where gowebpki/jcs's
// strict RFC 8785 number serialization and our bare-integer shortcut can
// legitimately diverge in representation even though both are
// spec-compliant.
func genSafeJSONValue(depth int) gopter.Gen {
	if depth <= 0 {
		return gen.OneGenOf(gen.AlphaString(), gen.Int32Range(-1000, 1000), gen.Bool())
	}
	return gen.OneGenOf(
		gen.AlphaString(),
		gen.Int32Range(-1000, 1000),
		gen.Bool(),
		gen.MapOf(gen.Identifier(), genSafeJSONValue(depth-1)),
	)
}

func genJSONValue(depth int) gopter.Gen {
	if depth <= 0 {
		return gen.OneGenOf(gen.AlphaString(), gen.Int64Range(-1000, 1000), gen.Bool())
	}
	return gen.OneGenOf(
		gen.AlphaString(),
		gen.Int64Range(-1000, 1000),
		gen.Bool(),
		gen.MapOf(gen.Identifier(), genJSONValue(depth-1)),
	)
}
