// Package pactcrypto provides the cryptographic primitives the protocol's
// hash-chain and signature verification rest on: SHA-256 hashing, strict
// Ed25519 verification, and base58 decoding of the wire-format keys and
// signatures. It deliberately exposes no signing capability — this is a
// verifier, not an SDK.
package pactcrypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58"

	"github.com/pact-protocol/pact-verifier/internal/pacterr"
)

// Sha256Hex returns the lowercase hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha256HexString hashes a UTF-8 string.
func Sha256HexString(s string) string {
	return Sha256Hex([]byte(s))
}

// B58Decode decodes a base58 string to bytes, matching the wire format
// used for signer public keys and signatures. It returns a typed
// CryptoError on malformed input rather than the bare base58 error.
func B58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, pacterr.New(pacterr.KindCrypto, "empty base58 string").WithPath("")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, pacterr.Wrap(pacterr.KindCrypto, pacterr.ReasonInvalidEncoding, err)
	}
	return b, nil
}

// B58Encode encodes bytes to the base58 wire format.
func B58Encode(b []byte) string {
	return base58.Encode(b)
}

// Ed25519VerifyStrict verifies sig over msg under pubKey. It rejects any
// key or signature of the wrong length outright instead of letting the
// stdlib panic, returning false with a typed error; a well-formed
// signature that does not verify returns false with a nil error. Signature malleability (a non-canonical S component) is
// rejected by crypto/ed25519.Verify itself — per RFC 8032, Go's
// implementation requires S to already be reduced mod L, unlike
// implementations that accept any S and reduce it internally — so no
// additional check is needed here.
func Ed25519VerifyStrict(pubKey, msg, sig []byte) (bool, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return false, pacterr.New(pacterr.KindCrypto, "invalid public key size")
	}
	if len(sig) != ed25519.SignatureSize {
		return false, pacterr.Wrap(pacterr.KindCrypto, pacterr.ReasonBadSignature, errInvalidSigSize)
	}
	ok := ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
	if !ok {
		return false, nil
	}
	return true, nil
}

var errInvalidSigSize = &sigSizeError{}

type sigSizeError struct{}

func (*sigSizeError) Error() string { return "invalid signature size" }

// VerifyB58 verifies a base58-encoded signature over msg under a
// base58-encoded public key — the exact shape every round's
// signer_public_key_b58/sig_b58 pair takes on the wire.
func VerifyB58(pubKeyB58, sigB58 string, msg []byte) (bool, error) {
	pub, err := B58Decode(pubKeyB58)
	if err != nil {
		return false, err
	}
	sig, err := B58Decode(sigB58)
	if err != nil {
		return false, err
	}
	return Ed25519VerifyStrict(pub, msg, sig)
}
