package store

import (
	"encoding/json"
	"os"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/passport"
)

// SavePassportStates writes a recomputed passport state map to a single
// JSON file, sorted by agent id for a stable diff.
func SavePassportStates(path string, states map[string]*passport.State) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return pacterr.Wrap(pacterr.KindParse, "", err).WithPath(path)
	}
	return nil
}

// LoadPassportStates reads a passport state map previously written by
// SavePassportStates, for passport:v1:query.
func LoadPassportStates(path string) (map[string]*passport.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(path)
	}
	var states map[string]*passport.State
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(path)
	}
	return states, nil
}
