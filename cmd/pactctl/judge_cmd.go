package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// runJudgeCmd implements `pactctl judge <path>`: prints the DBL judgment
// JSON for a transcript, plus a one-line human-readable summary on
// stderr so `judge` is usable both as a pipeline stage and interactively.
func runJudgeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("judge", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: pactctl judge <path>")
		return 2
	}
	path := cmd.Arg(0)

	return instrumented("judge", func(log instrumentedLogger) int {
		t, err := readTranscript(path)
		if err != nil {
			log.Error("judge: parse failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}

		report, err := transcript.Verify(t)
		if err != nil {
			log.Error("judge: verify failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}
		j := blame.Resolve(t, report)

		if err := writeJSONIndent(stdout, j); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintf(stderr, "status=%s fault=%s next_actor=%s failure_code=%s\n",
			j.Status, j.FaultDomain, j.RequiredNextActor, j.FailureCode)
		return 0
	})
}
