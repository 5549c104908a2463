package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pact-protocol/pact-verifier/internal/passport"
	"github.com/pact-protocol/pact-verifier/internal/store"
	"github.com/pact-protocol/pact-verifier/internal/store/pgtranscripts"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// dirList is a flag.Value collecting repeated --transcripts-dir flags
// into an ordered slice.
type dirList []string

func (d *dirList) String() string   { return strings.Join(*d, ",") }
func (d *dirList) Set(v string) error { *d = append(*d, v); return nil }

// runPassportRecomputeCmd implements `pactctl passport:v1:recompute`:
// folds every transcript under one or more --transcripts-dir directories
// into passport state, deterministically regardless of filesystem
// iteration order, and writes the result to --out (or stdout).
func runPassportRecomputeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("passport:v1:recompute", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var dirs dirList
	cmd.Var(&dirs, "transcripts-dir", "Directory of transcripts to fold (repeatable)")
	signerFilter := cmd.String("signer", "", "Restrict output to a single signer's state")
	outPath := cmd.String("out", "", "Write the recomputed state map to this file instead of stdout")
	constitutionHash := cmd.String("constitution-hash", "", "Constitution hash stamped onto each recomputed state")
	postgresDSN := cmd.String("postgres-dsn", "", "Additionally load transcripts from a Postgres transcripts table (orchestrators that archive transcripts in a database instead of flat files)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if len(dirs) == 0 && *postgresDSN == "" {
		fmt.Fprintln(stderr, "Usage: pactctl passport:v1:recompute --transcripts-dir <dir> [--transcripts-dir <dir> ...] [--postgres-dsn <dsn>] [--signer <pk>] [--out <file>]")
		return 2
	}

	return instrumented("passport:v1:recompute", func(log instrumentedLogger) int {
		transcripts, err := store.LoadTranscriptDirs([]string(dirs))
		if err != nil {
			log.Error("passport recompute: load failed", "error", err)
			fmt.Fprintln(stderr, err)
			return 2
		}

		if *postgresDSN != "" {
			pgTranscripts, err := loadPostgresTranscripts(*postgresDSN)
			if err != nil {
				log.Error("passport recompute: postgres load failed", "error", err)
				fmt.Fprintln(stderr, err)
				return 2
			}
			transcripts = append(transcripts, pgTranscripts...)
		}

		engine := passport.New()
		for _, t := range transcripts {
			if err := engine.Add(t); err != nil {
				log.Error("passport recompute: fold failed", "error", err, "transcript_id", t.TranscriptID)
				fmt.Fprintln(stderr, err)
				return 2
			}
		}
		for _, w := range engine.Warnings() {
			fmt.Fprintf(stderr, "warning: %s\n", w)
		}

		states := engine.Finalize(*constitutionHash, time.Now().UnixMilli())

		if *signerFilter != "" {
			state, ok := states[*signerFilter]
			if !ok {
				fmt.Fprintf(stderr, "no passport state for signer %s\n", *signerFilter)
				return 1
			}
			states = map[string]*passport.State{*signerFilter: state}
		}

		if *outPath != "" {
			if err := store.SavePassportStates(*outPath, states); err != nil {
				log.Error("passport recompute: write failed", "error", err, "path", *outPath)
				fmt.Fprintln(stderr, err)
				return 2
			}
			fmt.Fprintf(stdout, "wrote %d passport state(s) to %s\n", len(states), *outPath)
			return 0
		}

		if err := writeJSONIndent(stdout, states); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 0
	})
}

// loadPostgresTranscripts opens a short-lived connection to dsn, reads
// every row of its transcripts table, and closes the pool before
// returning — recompute is a one-shot CLI operation, not a long-lived
// service holding a connection pool open.
func loadPostgresTranscripts(dsn string) ([]*transcript.Transcript, error) {
	pg, err := pgtranscripts.Open(dsn)
	if err != nil {
		return nil, err
	}
	defer pg.Close()
	return pg.LoadAll(context.Background())
}
