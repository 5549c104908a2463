// Package pgtranscripts backs transcript loading with Postgres instead of
// flat files, for orchestrators that persist transcripts in a database.
// It is wired only from cmd/pactctl's flag handling — the core derivation
// packages never import database/sql or lib/pq directly.
package pgtranscripts

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// Store reads transcripts from a single table: transcripts(id text
// primary key, raw_json jsonb, created_at timestamptz).
type Store struct {
	db *sql.DB
}

// Open connects to a Postgres database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// LoadAll reads every transcript row ordered by id, so results are
// deterministic regardless of physical storage order.
func (s *Store) LoadAll(ctx context.Context) ([]*transcript.Transcript, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM transcripts ORDER BY id ASC`)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindParse, "", err)
	}
	defer rows.Close()

	var out []*transcript.Transcript
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, pacterr.Wrap(pacterr.KindParse, "", err)
		}
		t, err := transcript.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
