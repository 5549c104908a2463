// Package schemaver validates the wire schema tags every major artifact
// declares ("pact-transcript/4.0", "gc_view/1.x", ...): a name prefix plus
// a semantic version the reader must accept within a major version,
// mirroring the teacher's use of Masterminds/semver for pack version
// compatibility checks in core/pkg/trust/pack_loader.go.
package schemaver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// Accept checks that tag has the form "<name>/<version>" where name
// matches wantName and version parses as semver with the given major
// version. An empty tag is accepted silently — schema_version is
// optional on the wire; absence does not imply a different schema, only
// that the producer omitted the tag.
func Accept(tag, wantName string, wantMajor uint64) error {
	if tag == "" {
		return nil
	}
	name, versionPart, ok := strings.Cut(tag, "/")
	if !ok || name != wantName {
		return pacterr.New(pacterr.KindParse, fmt.Sprintf("unexpected schema tag %q, want %q/*", tag, wantName))
	}

	v, err := semver.NewVersion(versionPart)
	if err != nil {
		return pacterr.Wrap(pacterr.KindParse, "", fmt.Errorf("schema tag %q: %w", tag, err))
	}
	if v.Major() != wantMajor {
		return pacterr.New(pacterr.KindParse, fmt.Sprintf("schema tag %q: major version %d not accepted (want %d)", tag, v.Major(), wantMajor))
	}
	return nil
}
