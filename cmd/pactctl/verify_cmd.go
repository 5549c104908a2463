package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// runVerifyTranscriptCmd implements `pactctl verify-transcript <path>`:
// exit 0 when the hash chain is VALID and every signature verifies, exit
// 2 otherwise (both for a failed verification and for a usage or parse
// error), matching the CLI's exit-code contract.
func runVerifyTranscriptCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-transcript", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOut := cmd.Bool("json", false, "Output the verify report as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: pactctl verify-transcript <path> [--json]")
		return 2
	}
	path := cmd.Arg(0)

	return instrumented("verify-transcript", func(log instrumentedLogger) int {
		t, err := readTranscript(path)
		if err != nil {
			log.Error("verify-transcript: parse failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}

		report, err := transcript.Verify(t)
		if err != nil {
			log.Error("verify-transcript: verify failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}

		if *jsonOut {
			if err := writeJSONIndent(stdout, report); err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		} else {
			fmt.Fprintf(stdout, "hash_chain: %s\n", report.HashChain)
			fmt.Fprintf(stdout, "final_hash: %s\n", report.FinalHash)
			fmt.Fprintf(stdout, "signatures: %d/%d verified\n", report.Signatures.Verified, report.Signatures.Total)
			for _, f := range report.Signatures.Failures {
				fmt.Fprintf(stdout, "  round %d: %s\n", f.RoundNumber, f.Reason)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(stdout, "warning: %s\n", w)
			}
		}

		if report.OK() {
			return 0
		}
		return 2
	})
}
