package constitution_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/constitution"
)

func TestCanonicalize_NormalizesLineEndingsAndTrailingWhitespace(t *testing.T) {
	raw := "# Rules  \r\n\r\nBe kind.\t\r\n"
	got := constitution.Canonicalize(raw)
	assert.Equal(t, "# Rules\n\nBe kind.\n", got)
}

func TestHash_IsStableAcrossEquivalentLineEndings(t *testing.T) {
	unix := constitution.Hash("line one\nline two\n")
	windows := constitution.Hash("line one\r\nline two\r\n")
	assert.Equal(t, unix, windows)
}

func TestAccept_UnknownHashRejectedByDefault(t *testing.T) {
	_, known, err := constitution.Accept("not a real constitution", nil, false)
	require.Error(t, err)
	assert.False(t, known)
}

func TestAccept_UnknownHashAllowedWhenNonstandard(t *testing.T) {
	version, known, err := constitution.Accept("draft rulebook", nil, true)
	require.NoError(t, err)
	assert.False(t, known)
	assert.Equal(t, "non-standard", version.Version)
	assert.NotEmpty(t, version.Hash)
}

func TestAccept_OverrideHashIsAccepted(t *testing.T) {
	text := "custom house rules"
	overrides := &constitution.Overrides{
		AcceptedHashes: map[string]string{
			constitution.Hash(text): "local-1.0",
		},
	}

	version, known, err := constitution.Accept(text, overrides, false)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, "local-1.0", version.Version)
}

func TestLoad_NonstandardMarksResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CONSTITUTION.md")
	require.NoError(t, os.WriteFile(path, []byte("draft text"), 0o644))

	c, err := constitution.Load(path, nil, true)
	require.NoError(t, err)
	assert.True(t, c.NonStandard)
	assert.Equal(t, "draft text", c.Text)
}

func TestLoad_RejectsUnknownHashWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CONSTITUTION.md")
	require.NoError(t, os.WriteFile(path, []byte("draft text"), 0o644))

	_, err := constitution.Load(path, nil, false)
	require.Error(t, err)
}

func TestLoadOverridesFile_MissingFileIsNotAnError(t *testing.T) {
	overrides, err := constitution.LoadOverridesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, overrides)
}
