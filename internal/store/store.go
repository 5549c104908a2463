// Package store implements the filesystem reference persistence layer:
// transcripts as individual JSON files in a directory, passport registry
// as a single JSON file, anchor registry as append-only JSON keyed by
// subject — per the external interfaces' persisted layout. Optional
// database-backed seams live in subpackages (pgtranscripts, rdsanchor)
// and are wired only at the cmd/pactctl boundary, never imported by the
// core derivation packages themselves.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// LoadTranscriptDir parses every *.json file in dir as a transcript,
// in lexicographic filename order so callers get deterministic input
// regardless of the directory's on-disk iteration order.
func LoadTranscriptDir(dir string) ([]*transcript.Transcript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]*transcript.Transcript, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pacterr.Wrap(pacterr.KindParse, "", err).WithPath(path)
		}
		t, err := transcript.Parse(data)
		if err != nil {
			if pe, ok := err.(*pacterr.Error); ok {
				return nil, pe.WithPath(path)
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadTranscriptDirs loads every directory in order and concatenates the
// results, preserving each directory's internal ordering.
func LoadTranscriptDirs(dirs []string) ([]*transcript.Transcript, error) {
	var all []*transcript.Transcript
	for _, dir := range dirs {
		ts, err := LoadTranscriptDir(dir)
		if err != nil {
			return nil, err
		}
		all = append(all, ts...)
	}
	return all, nil
}
