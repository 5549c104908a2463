package auditorpack_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/auditorpack"
	"github.com/pact-protocol/pact-verifier/internal/testutil"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

func completedTranscript() *transcript.Transcript {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()
	return testutil.NewBuilder("txn-pack-1", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		AddRound(buyer, transcript.RoundAccept, 1200, map[string]interface{}{"to": provider.PubB58()}).
		AddRound(buyer, transcript.RoundCommit, 1300, nil).
		AddRound(provider, transcript.RoundReveal, 1400, nil).
		WithFinalHash("").
		Build()
}

func TestSealAndVerify_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "pack.zip")

	manifest, err := auditorpack.Seal(auditorpack.SealOptions{
		Transcript:       completedTranscript(),
		ConstitutionText: "# Rules\nBe fair.\n",
		AllowNonstandard: true,
		OutPath:          outPath,
		NowMs:            1700000000000,
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", manifest.Outcome.Status)

	_, err = os.Stat(outPath)
	require.NoError(t, err)

	report, err := auditorpack.Verify(outPath, auditorpack.VerifyOptions{AllowNonstandard: true})
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.True(t, report.ChecksumsOK)
	assert.True(t, report.RecomputeOK)
	assert.Empty(t, report.Mismatches)
}

func TestVerify_RejectsUnknownConstitutionWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "pack.zip")

	_, err := auditorpack.Seal(auditorpack.SealOptions{
		Transcript:       completedTranscript(),
		ConstitutionText: "# Rules\nBe fair.\n",
		AllowNonstandard: true,
		OutPath:          outPath,
		NowMs:            1700000000000,
	})
	require.NoError(t, err)

	report, err := auditorpack.Verify(outPath, auditorpack.VerifyOptions{AllowNonstandard: false})
	require.NoError(t, err)
	assert.False(t, report.OK)
}

func TestVerify_DetectsTamperedBundledJudgment(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "pack.zip")

	_, err := auditorpack.Seal(auditorpack.SealOptions{
		Transcript:       completedTranscript(),
		ConstitutionText: "# Rules\nBe fair.\n",
		AllowNonstandard: true,
		OutPath:          outPath,
		NowMs:            1700000000000,
	})
	require.NoError(t, err)

	tamperZip(t, outPath, "derived/judgment.json", []byte(`{"status":"TOTALLY_DIFFERENT"}`))

	report, err := auditorpack.Verify(outPath, auditorpack.VerifyOptions{AllowNonstandard: true})
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.False(t, report.ChecksumsOK)
}

func TestGradePack_GoldRequiresPassportSnapshot(t *testing.T) {
	report := &auditorpack.VerifyReport{ChecksumsOK: true, RecomputeOK: true}
	g := auditorpack.GradePack(report, false)
	assert.Equal(t, auditorpack.GradeSilver, g.Grade)

	g = auditorpack.GradePack(report, true)
	assert.Equal(t, auditorpack.GradeGold, g.Grade)
}

// tamperZip rewrites one file's contents inside an existing zip, leaving
// checksums.sha256 stale (simulating corruption after the fact).
func tamperZip(t *testing.T, path, name string, newContent []byte) {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)

	contents := make(map[string][]byte, len(r.File))
	order := make([]string, 0, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = data
		order = append(order, f.Name)
	}
	require.NoError(t, r.Close())

	contents[name] = newContent

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	zw := zip.NewWriter(out)
	for _, n := range order {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write(contents[n])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
