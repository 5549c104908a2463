// Package constitution loads and validates the rulebook text every GC view
// and auditor pack commits to by hash. Canonicalization rules (CRLF→LF,
// right-trim each line) live here so every caller hashes the same bytes
// regardless of how the file was checked out or edited.
package constitution

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// Version identifies a constitution's semantic version alongside its hash.
type Version struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
}

// acceptedHashes is the compiled-in set of rulebook hashes the verifier
// trusts by default. Real deployments pin this list at release time;
// Overrides (below) is the only sanctioned way to extend it at runtime.
var acceptedHashes = map[string]string{
	// hash -> version label
	"f1e2d3c4b5a697887766554433221100ffeeddccbbaa99887766554433221100": "1.0",
}

// Canonicalize normalizes constitution text: CRLF to LF, each line
// right-trimmed of trailing whitespace. The canonical form is what gets
// hashed — never the raw file bytes.
func Canonicalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// Hash returns the canonical-form SHA-256 hash of constitution text.
func Hash(text string) string {
	return canonicalize.HashBytes([]byte(Canonicalize(text)))
}

// Overrides is an optional local-only extension of the accepted hash set,
// loaded from YAML — the escape hatch non-production environments use
// instead of recompiling the binary.
type Overrides struct {
	AcceptedHashes map[string]string `yaml:"accepted_hashes"`
}

// LoadOverrides parses a YAML overrides document.
func LoadOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, pacterr.Wrap(pacterr.KindConstitution, "", err)
	}
	return &o, nil
}

// LoadOverridesFile reads and parses a YAML overrides file from disk. A
// missing file is not an error — it simply means no overrides apply.
func LoadOverridesFile(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pacterr.Wrap(pacterr.KindConstitution, "", err).WithPath(path)
	}
	return LoadOverrides(data)
}

// Constitution is a loaded, accepted rulebook ready to be cited by a GC
// view or auditor pack.
type Constitution struct {
	Text        string
	Version     Version
	NonStandard bool
}

// Load reads constitution text from path, canonicalizes it, and checks its
// hash against the accepted set (compiled-in plus overrides). When
// allowNonstandard is true an unrecognized hash is accepted anyway, with
// NonStandard set on the result so callers can flag it downstream.
func Load(path string, overrides *Overrides, allowNonstandard bool) (*Constitution, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindConstitution, "", err).WithPath(path)
	}

	text := string(raw)
	version, known, err := Accept(text, overrides, allowNonstandard)
	if err != nil {
		return nil, err.(*pacterr.Error).WithPath(path)
	}

	return &Constitution{
		Text:        text,
		Version:     version,
		NonStandard: !known,
	}, nil
}

// Accept validates constitution text's canonical hash against the
// compiled-in accepted set plus any overrides, returning the matched
// Version. If allowNonstandard is true and the hash is unknown, Accept
// still succeeds, returning a Version labelled "non-standard" with Hash
// set and known=false — callers must record that "non-standard rulebook"
// mode was used.
func Accept(text string, overrides *Overrides, allowNonstandard bool) (Version, bool, error) {
	hash := Hash(text)

	if version, ok := acceptedHashes[hash]; ok {
		return Version{Version: version, Hash: hash}, true, nil
	}
	if overrides != nil {
		if version, ok := overrides.AcceptedHashes[hash]; ok {
			return Version{Version: version, Hash: hash}, true, nil
		}
	}

	if allowNonstandard {
		return Version{Version: "non-standard", Hash: hash}, false, nil
	}

	err := pacterr.New(pacterr.KindConstitution, "constitution hash not in accepted set")
	err.Reason = pacterr.ReasonUnknownConstitution
	return Version{}, false, err
}
