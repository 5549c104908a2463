package pactcrypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	assert.Equal(t, 64, len(Sha256Hex([]byte("hello"))))
	assert.Equal(t, Sha256Hex([]byte("hello")), Sha256Hex([]byte("hello")))
}

func TestB58RoundTrip(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 250, 251}
	encoded := B58Encode(raw)
	decoded, err := B58Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestB58Decode_InvalidEncoding(t *testing.T) {
	_, err := B58Decode("not-valid-base58-!!!")
	assert.Error(t, err)
}

func TestVerifyB58_ValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := []byte("round payload hash")
	sig := ed25519.Sign(priv, msg)

	ok, err := VerifyB58(B58Encode(pub), B58Encode(sig), msg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyB58_TamperedMessageFails(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, []byte("original"))

	ok, err := VerifyB58(B58Encode(pub), B58Encode(sig), []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEd25519VerifyStrict_RejectsWrongSizedKey(t *testing.T) {
	_, err := Ed25519VerifyStrict([]byte{1, 2, 3}, []byte("msg"), make([]byte, ed25519.SignatureSize))
	assert.Error(t, err)
}

func TestEd25519VerifyStrict_RejectsWrongSizedSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = Ed25519VerifyStrict(pub, []byte("msg"), []byte{1, 2, 3})
	assert.Error(t, err)
}
