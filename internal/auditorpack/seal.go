package auditorpack

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pact-protocol/pact-verifier/internal/canonicalize"
	"github.com/pact-protocol/pact-verifier/internal/constitution"
	"github.com/pact-protocol/pact-verifier/internal/pacterr"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

// SealOptions configures a seal operation. PassportSnapshotJSON,
// ContentionReportJSON, and OutcomeEventsJSON are optional pre-rendered
// canonical JSON blobs — auditorpack does not know how to build a
// passport snapshot or contention report itself, those are the CLI's job
// to compose before sealing.
type SealOptions struct {
	Transcript            *transcript.Transcript
	ConstitutionText      string
	ConstitutionOverrides *constitution.Overrides
	AllowNonstandard      bool
	OutPath               string
	NowMs                 int64
	PassportSnapshotJSON  []byte
	ContentionReportJSON  []byte
	OutcomeEventsJSON     []byte
}

// Seal renders the GC view, judgment, and insurer summary for opts's
// transcript, canonicalizes every artifact, and writes a sealed ZIP pack
// atomically (write to a temp file, then rename). It returns the written
// manifest.
func Seal(opts SealOptions) (*Manifest, error) {
	version, known, err := constitution.Accept(opts.ConstitutionText, opts.ConstitutionOverrides, opts.AllowNonstandard)
	if err != nil {
		return nil, err
	}

	c := &constitution.Constitution{Text: opts.ConstitutionText, Version: version, NonStandard: !known}
	d, err := derive(opts.Transcript, c)
	if err != nil {
		return nil, err
	}

	transcriptJSON, err := canonicalize.JCS(opts.Transcript)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	gcViewJSON, err := canonicalize.JCS(d.view)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	judgmentJSON, err := canonicalize.JCS(d.j)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	insurerJSON, err := canonicalize.JCS(d.summary)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}

	tHash, err := transcriptHash(opts.Transcript)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		PackageVersion:      "1.0",
		CreatedAtMs:         opts.NowMs,
		ConstitutionVersion: version.Version,
		ConstitutionHash:    version.Hash,
		NonStandard:         !known,
		TranscriptID:        opts.Transcript.TranscriptID,
		TranscriptHash:      tHash,
		ToolVersion:         ToolVersion,
		Integrity:           d.view.Integrity,
		Outcome:             d.view.ExecutiveSummary,
		Responsibility:      d.view.Responsibility,
	}

	files := map[string][]byte{
		FileConstitution:   []byte(constitution.Canonicalize(opts.ConstitutionText)),
		FileTranscript:     transcriptJSON,
		FileGcView:         gcViewJSON,
		FileJudgment:       judgmentJSON,
		FileInsurerSummary: insurerJSON,
		FileReadme:         []byte(readmeText()),
	}
	manifest.IncludedArtifacts = []string{
		FileConstitution, FileTranscript, FileGcView, FileJudgment, FileInsurerSummary, FileReadme,
	}
	if opts.PassportSnapshotJSON != nil {
		files[FilePassportSnapshot] = opts.PassportSnapshotJSON
		manifest.IncludedArtifacts = append(manifest.IncludedArtifacts, FilePassportSnapshot)
	}
	if opts.ContentionReportJSON != nil {
		files[FileContentionReport] = opts.ContentionReportJSON
		manifest.IncludedArtifacts = append(manifest.IncludedArtifacts, FileContentionReport)
	}
	if opts.OutcomeEventsJSON != nil {
		files[FileOutcomeEvents] = opts.OutcomeEventsJSON
		manifest.IncludedArtifacts = append(manifest.IncludedArtifacts, FileOutcomeEvents)
	}

	manifest.IncludedArtifacts = append(manifest.IncludedArtifacts, FileManifest)
	manifestJSON, err := canonicalize.JCS(manifest)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindDeterminism, "", err)
	}
	files[FileManifest] = manifestJSON

	files[FileChecksums] = checksumLines(files)

	if err := writeZipAtomic(opts.OutPath, files); err != nil {
		return nil, err
	}
	return manifest, nil
}

func readmeText() string {
	return "This is a sealed Pact auditor pack.\n" +
		"Re-verify with `pactctl auditor-pack-verify <path>`.\n" +
		"All derived artifacts are recomputed from input/transcript.json at re-verify time; " +
		"this bundle's copies are convenience only.\n"
}

// checksumLines builds the sorted "<64-hex>  <path>\n" lines for every
// file except checksums.sha256 itself.
func checksumLines(files map[string][]byte) []byte {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	for _, p := range paths {
		fmt.Fprintf(&buf, "%s  %s\n", canonicalize.HashBytes(files[p]), p)
	}
	return buf.Bytes()
}

func writeZipAtomic(outPath string, files map[string][]byte) error {
	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".auditorpack-*.tmp")
	if err != nil {
		return pacterr.Wrap(pacterr.KindPack, "", err).WithPath(outPath)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		w, err := zw.Create(p)
		if err != nil {
			return pacterr.Wrap(pacterr.KindPack, "", err).WithPath(p)
		}
		if _, err := w.Write(files[p]); err != nil {
			return pacterr.Wrap(pacterr.KindPack, "", err).WithPath(p)
		}
	}
	if err := zw.Close(); err != nil {
		return pacterr.Wrap(pacterr.KindPack, "", err)
	}
	if err := tmp.Close(); err != nil {
		return pacterr.Wrap(pacterr.KindPack, "", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return pacterr.Wrap(pacterr.KindPack, "", err).WithPath(outPath)
	}
	success = true
	return nil
}
