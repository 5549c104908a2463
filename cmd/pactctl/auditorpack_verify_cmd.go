package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"io"

	"github.com/pact-protocol/pact-verifier/internal/auditorpack"
)

// hasPassportSnapshot reports whether the sealed pack at zipPath bundles
// a passport snapshot artifact, used only to score the grading ladder —
// a corrupt or unreadable zip is treated as "no snapshot" since Verify
// itself already reported the underlying read failure.
func hasPassportSnapshot(zipPath string) bool {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return false
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == auditorpack.FilePassportSnapshot {
			return true
		}
	}
	return false
}

// runAuditorPackVerifyCmd implements `pactctl auditor-pack-verify <zip>`:
// exit 0 iff the re-verify report comes back ok, exit 1 on a report that
// parsed but failed, exit 2 on a usage or I/O error.
func runAuditorPackVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("auditor-pack-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	allowNonstandard := cmd.Bool("allow-nonstandard", false, "Accept a bundled constitution hash not in the compiled-in accepted set")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: pactctl auditor-pack-verify <pack.zip> [--allow-nonstandard]")
		return 2
	}
	zipPath := cmd.Arg(0)

	return instrumented("auditor-pack-verify", func(log instrumentedLogger) int {
		report, err := auditorpack.Verify(zipPath, auditorpack.VerifyOptions{AllowNonstandard: *allowNonstandard})
		if err != nil {
			log.Error("auditor-pack-verify: verify failed", "error", err, "path", zipPath)
			fmt.Fprintln(stderr, err)
			return 2
		}

		grading := auditorpack.GradePack(report, hasPassportSnapshot(zipPath))

		out := struct {
			*auditorpack.VerifyReport
			Grading auditorpack.GradingReport `json:"grading"`
		}{VerifyReport: report, Grading: grading}

		if err := writeJSONIndent(stdout, out); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}

		if report.OK {
			return 0
		}
		return 1
	})
}
