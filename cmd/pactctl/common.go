package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pact-protocol/pact-verifier/internal/constitution"
	"github.com/pact-protocol/pact-verifier/internal/obs"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// loadConstitution resolves the rulebook a GC view or auditor pack is
// judged against. An empty path means the caller has no rulebook file to
// hand and is explicitly accepting a non-standard constitution (e.g.
// ad-hoc local inspection), overriding allowNonstandard to true in
// that case.
func loadConstitution(path string, allowNonstandard bool) (*constitution.Constitution, error) {
	if path == "" {
		return &constitution.Constitution{NonStandard: true}, nil
	}
	return constitution.Load(path, nil, allowNonstandard)
}

// readFileText reads a file as raw text, annotating errors with path.
func readFileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", pacterr.Wrap(pacterr.KindParse, "", err).WithPath(path)
	}
	return string(data), nil
}

// readTranscript loads and structurally parses a transcript file from
// disk, annotating parse errors with the offending path.
func readTranscript(path string) (*transcript.Transcript, error) {
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
	return t, nil
}

// writeJSONIndent writes v as indented JSON to w.
func writeJSONIndent(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// instrumented wraps a subcommand body with the CLI's logger and metrics,
// mirroring the teacher's pattern of never letting core packages log
// themselves — only cmd/pactctl observes its own operations.
func instrumented(command string, fn func(logger instrumentedLogger) int) int {
	logger := obs.NewLogger()
	meter, err := obs.NewMeter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: metrics unavailable: %v\n", err)
	}

	start := time.Now()
	exitCode := fn(instrumentedLogger{logger})
	meter.RecordOperation(context.Background(), command, exitCode)
	if command == "auditor-pack" {
		meter.RecordSealDuration(context.Background(), time.Since(start))
	}
	return exitCode
}

// instrumentedLogger is a thin handle subcommands use to log structured
// failure context without importing log/slog directly in every file.
type instrumentedLogger struct {
	logger interface {
		Error(msg string, args ...any)
	}
}

func (l instrumentedLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
