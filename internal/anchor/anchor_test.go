package anchor_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
)

func TestIssue_DeduplicatesOnSubjectTypeMethodFingerprint(t *testing.T) {
	r := anchor.New()
	req := anchor.IssueRequest{
		SubjectSignerPublicKeyB58: "signer-1",
		AnchorType:                anchor.TypeKYBVerified,
		VerificationMethod:        "manual-review",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:abc123"},
		IssuedAtMs:                1000,
	}

	a1, err := r.Issue(req)
	require.NoError(t, err)
	a2, err := r.Issue(req)
	require.NoError(t, err)

	assert.Equal(t, a1.AnchorID, a2.AnchorID)
	assert.Len(t, r.BySubject("signer-1"), 1)
}

func TestIssue_DifferentFingerprintIsNotDeduplicated(t *testing.T) {
	r := anchor.New()
	base := anchor.IssueRequest{
		SubjectSignerPublicKeyB58: "signer-1",
		AnchorType:                anchor.TypeKYBVerified,
		VerificationMethod:        "manual-review",
		IssuedAtMs:                1000,
	}
	base.Payload = anchor.Payload{AccountIDFingerprint: "sha256:aaa"}
	_, err := r.Issue(base)
	require.NoError(t, err)

	base.Payload = anchor.Payload{AccountIDFingerprint: "sha256:bbb"}
	_, err = r.Issue(base)
	require.NoError(t, err)

	assert.Len(t, r.BySubject("signer-1"), 2)
}

func TestRevoke_IsIdempotent(t *testing.T) {
	r := anchor.New()
	a, err := r.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: "signer-1",
		AnchorType:                anchor.TypeDomainVerified,
		VerificationMethod:        "dns-txt",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:ccc"},
		IssuedAtMs:                1000,
	})
	require.NoError(t, err)

	require.NoError(t, r.Revoke(a.AnchorID, "compromised", 2000))
	require.NoError(t, r.Revoke(a.AnchorID, "different reason, ignored", 3000))

	got := r.BySubject("signer-1")[0]
	assert.True(t, got.Revoked)
	assert.EqualValues(t, 2000, got.RevokedAtMs)
	assert.Equal(t, "compromised", got.Reason)
}

func TestRevoke_UnknownAnchorIDErrors(t *testing.T) {
	r := anchor.New()
	err := r.Revoke("does-not-exist", "", 0)
	assert.Error(t, err)
}

func TestRestore_PreservesAnchorIDAndRevocationState(t *testing.T) {
	src := anchor.New()
	a, err := src.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: "signer-1",
		AnchorType:                anchor.TypeKYBVerified,
		VerificationMethod:        "manual-review",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:abc123"},
		IssuedAtMs:                1000,
	})
	require.NoError(t, err)
	require.NoError(t, src.Revoke(a.AnchorID, "compromised", 2000))

	dst := anchor.New()
	for _, restored := range src.BySubject("signer-1") {
		require.NoError(t, dst.Restore(restored))
	}

	got := dst.BySubject("signer-1")
	require.Len(t, got, 1)
	assert.Equal(t, a.AnchorID, got[0].AnchorID)
	assert.True(t, got[0].Revoked)
	assert.EqualValues(t, 2000, got[0].RevokedAtMs)
}

func TestRestore_WithoutAnchorIDErrors(t *testing.T) {
	r := anchor.New()
	err := r.Restore(&anchor.Attestation{SubjectSignerPublicKeyB58: "signer-1"})
	assert.Error(t, err)
}

func TestIssue_ConcurrentDuplicateIssuanceForOneSubjectDeduplicates(t *testing.T) {
	r := anchor.New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			subject := "signer-concurrent"
			_, err := r.Issue(anchor.IssueRequest{
				SubjectSignerPublicKeyB58: subject,
				AnchorType:                anchor.TypeOIDCVerified,
				VerificationMethod:        "oidc",
				Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:shared"},
				IssuedAtMs:                int64(1000 + i),
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, r.BySubject("signer-concurrent"), 1)
}
