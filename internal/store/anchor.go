package store

import (
	"encoding/json"
	"os"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// anchorSnapshot is the on-disk shape of the filesystem anchor store:
// every attestation, keyed by subject, in issuance order.
type anchorSnapshot struct {
	BySubject map[string][]*anchor.Attestation `json:"by_subject"`
}

// SaveAnchorRegistry snapshots a registry's current contents to path.
// Each call overwrites the file with the full current state — the
// append-only guarantee lives in the in-memory Registry never discarding
// history (including revocations), not in the file's write mode.
func SaveAnchorRegistry(path string, reg *anchor.Registry) error {
	snap := anchorSnapshot{BySubject: make(map[string][]*anchor.Attestation)}
	for _, subject := range reg.AllSubjects() {
		snap.BySubject[subject] = reg.BySubject(subject)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return pacterr.Wrap(pacterr.KindRegistry, "", err).WithPath(path)
	}
	return nil
}

// LoadAnchorRegistry rebuilds a Registry from a snapshot written by
// SaveAnchorRegistry, restoring each attestation as-is so anchor_id stays
// stable across a save/load round trip.
func LoadAnchorRegistry(path string) (*anchor.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindRegistry, "", err).WithPath(path)
	}
	var snap anchorSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, pacterr.Wrap(pacterr.KindRegistry, "", err).WithPath(path)
	}

	reg := anchor.New()
	for _, attestations := range snap.BySubject {
		for _, a := range attestations {
			if err := reg.Restore(a); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
