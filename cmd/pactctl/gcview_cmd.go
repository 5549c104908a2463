package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/gcview"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// runGcViewCmd implements `pactctl gc-view <path>`: prints the canonical
// GC view JSON for a transcript.
func runGcViewCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("gc-view", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	constitutionPath := cmd.String("constitution", "", "Path to the constitution text the transcript is judged against")
	allowNonstandard := cmd.Bool("allow-nonstandard", false, "Accept a constitution hash not in the compiled-in accepted set")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: pactctl gc-view <path> [--constitution path] [--allow-nonstandard]")
		return 2
	}
	path := cmd.Arg(0)

	return instrumented("gc-view", func(log instrumentedLogger) int {
		t, err := readTranscript(path)
		if err != nil {
			log.Error("gc-view: parse failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}

		c, err := loadConstitution(*constitutionPath, *allowNonstandard)
		if err != nil {
			log.Error("gc-view: constitution rejected", "error", err)
			fmt.Fprintln(stderr, err)
			return 2
		}

		report, err := transcript.Verify(t)
		if err != nil {
			log.Error("gc-view: verify failed", "error", err, "path", path)
			fmt.Fprintln(stderr, err)
			return 2
		}
		j := blame.Resolve(t, report)
		view := gcview.Render(t, report, j, c)

		if err := writeJSONIndent(stdout, view); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 0
	})
}
