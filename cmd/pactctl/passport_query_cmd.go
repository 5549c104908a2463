package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pact-protocol/pact-verifier/internal/passport"
	"github.com/pact-protocol/pact-verifier/internal/store"
)

// runPassportQueryCmd implements `pactctl passport:v1:query`: looks up a
// single signer's passport state from a previously recomputed registry
// file.
func runPassportQueryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("passport:v1:query", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	signer := cmd.String("signer", "", "Signer public key to query (required)")
	registryPath := cmd.String("registry", "", "Path to a passport state map written by passport:v1:recompute (required)")
	showLeaderboard := cmd.Bool("leaderboard", false, "Ignore --signer and print the full ranked leaderboard instead")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *registryPath == "" || (!*showLeaderboard && *signer == "") {
		fmt.Fprintln(stderr, "Usage: pactctl passport:v1:query --registry <file> (--signer <pk> | --leaderboard)")
		return 2
	}

	return instrumented("passport:v1:query", func(log instrumentedLogger) int {
		states, err := store.LoadPassportStates(*registryPath)
		if err != nil {
			log.Error("passport query: load failed", "error", err, "path", *registryPath)
			fmt.Fprintln(stderr, err)
			return 2
		}

		if *showLeaderboard {
			if err := writeJSONIndent(stdout, passport.Leaderboard(states)); err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
			return 0
		}

		state, ok := states[*signer]
		if !ok {
			fmt.Fprintf(stderr, "no passport state for signer %s\n", *signer)
			return 1
		}
		if err := writeJSONIndent(stdout, state); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 0
	})
}
