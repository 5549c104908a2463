package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/auditorpack"
	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/contention"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/snapshot"
	"github.com/pact-protocol/pact-verifier/internal/store"
	"github.com/pact-protocol/pact-verifier/internal/store/rdsanchor"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// runAuditorPackCmd implements `pactctl auditor-pack`: seals a transcript
// into a ZIP auditor pack, optionally bundling a passport snapshot (fused
// against a sibling transcript archive) and a contention report.
func runAuditorPackCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("auditor-pack", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	transcriptPath := cmd.String("transcript", "", "Path to the transcript to seal (required)")
	constitutionPath := cmd.String("constitution", "", "Path to the constitution text (required)")
	outPath := cmd.String("out", "", "Output path for the sealed pack (required)")
	allowNonstandard := cmd.Bool("allow-nonstandard", false, "Accept a constitution hash not in the compiled-in accepted set")
	includePassport := cmd.Bool("include-passport", false, "Bundle a passport snapshot built from --transcripts-dir")
	transcriptsDir := cmd.String("transcripts-dir", "", "Directory of sibling transcripts to fuse into the passport snapshot")
	includeContention := cmd.Bool("include-contention", false, "Bundle a negotiation-friction contention report")
	anchorRegistryPath := cmd.String("anchor-registry", "", "Filesystem anchor registry snapshot to fuse into the bundled passport snapshot")
	anchorRedisAddr := cmd.String("anchor-redis-addr", "", "Redis-backed anchor registry to fuse into the bundled passport snapshot instead of --anchor-registry")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *transcriptPath == "" || *constitutionPath == "" || *outPath == "" {
		fmt.Fprintln(stderr, "Usage: pactctl auditor-pack --transcript <path> --constitution <path> --out <zip> [--allow-nonstandard] [--include-passport --transcripts-dir <dir> [--anchor-registry <file> | --anchor-redis-addr <host:port>]] [--include-contention]")
		return 2
	}
	if *includePassport && *transcriptsDir == "" {
		fmt.Fprintln(stderr, "--include-passport requires --transcripts-dir")
		return 2
	}

	return instrumented("auditor-pack", func(log instrumentedLogger) int {
		t, err := readTranscript(*transcriptPath)
		if err != nil {
			log.Error("auditor-pack: parse failed", "error", err, "path", *transcriptPath)
			fmt.Fprintln(stderr, err)
			return 2
		}

		constitutionText, err := readFileText(*constitutionPath)
		if err != nil {
			log.Error("auditor-pack: constitution unreadable", "error", err, "path", *constitutionPath)
			fmt.Fprintln(stderr, err)
			return 2
		}

		opts := auditorpack.SealOptions{
			Transcript:       t,
			ConstitutionText: constitutionText,
			AllowNonstandard: *allowNonstandard,
			OutPath:          *outPath,
			NowMs:            time.Now().UnixMilli(),
		}

		if *includePassport {
			reg, err := loadAnchorRegistryForSnapshot(*anchorRegistryPath, *anchorRedisAddr)
			if err != nil {
				log.Error("auditor-pack: anchor registry load failed", "error", err)
				fmt.Fprintln(stderr, err)
				return 2
			}
			snapJSON, err := buildPassportSnapshotJSON(t, *transcriptsDir, reg)
			if err != nil {
				log.Error("auditor-pack: passport snapshot build failed", "error", err)
				fmt.Fprintln(stderr, err)
				return 2
			}
			opts.PassportSnapshotJSON = snapJSON
		}

		if *includeContention {
			report := contention.Render(t)
			contentionJSON, err := canonicalize.JCS(report)
			if err != nil {
				log.Error("auditor-pack: contention report canonicalize failed", "error", err)
				fmt.Fprintln(stderr, err)
				return 2
			}
			opts.ContentionReportJSON = contentionJSON
		}

		manifest, err := auditorpack.Seal(opts)
		if err != nil {
			log.Error("auditor-pack: seal failed", "error", err)
			fmt.Fprintln(stderr, err)
			return 2
		}

		if err := writeJSONIndent(stdout, manifest); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 0
	})
}

// buildPassportSnapshotJSON fuses the sealed transcript with its sibling
// archive into a snapshot entity graph, applying reg's anchor badges
// (reg may be an empty in-memory registry when neither --anchor-registry
// nor --anchor-redis-addr was given).
func buildPassportSnapshotJSON(sealed *transcript.Transcript, transcriptsDir string, reg *anchor.Registry) ([]byte, error) {
	siblings, err := store.LoadTranscriptDir(transcriptsDir)
	if err != nil {
		return nil, err
	}
	all := append([]*transcript.Transcript{sealed}, siblings...)

	snap, err := snapshot.Build(all, reg, true)
	if err != nil {
		return nil, err
	}
	b, err := canonicalize.JCS(snap)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	return b, nil
}

// loadAnchorRegistryForSnapshot resolves the anchor registry a bundled
// passport snapshot fuses against: a Redis-backed registry when
// redisAddr is set, a filesystem snapshot when path is set, or an empty
// in-memory registry when neither is given.
func loadAnchorRegistryForSnapshot(path, redisAddr string) (*anchor.Registry, error) {
	if redisAddr != "" {
		rs := rdsanchor.New(redisAddr, "", 0)
		defer rs.Close()
		subjects, err := rs.KnownSubjects(context.Background())
		if err != nil {
			return nil, err
		}
		return rs.LoadRegistry(context.Background(), subjects)
	}
	if path != "" {
		return store.LoadAnchorRegistry(path)
	}
	return anchor.New(), nil
}
