package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/anchor"
	"github.com/pact-protocol/pact-verifier/internal/snapshot"
	"github.com/pact-protocol/pact-verifier/internal/testutil"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

func TestEntityID_IsStableForSameSigner(t *testing.T) {
	a, err := snapshot.EntityID("signer-abc")
	require.NoError(t, err)
	b, err := snapshot.EntityID("signer-abc")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "entity-")
}

func TestConfidenceToReliability_ScalesAndRounds(t *testing.T) {
	assert.Equal(t, 80, snapshot.ConfidenceToReliability(0.80))
	assert.Equal(t, 100, snapshot.ConfidenceToReliability(1.0))
	assert.Equal(t, 0, snapshot.ConfidenceToReliability(0.0))
}

func TestBuild_ComputesDomainReliabilityFromClaims(t *testing.T) {
	appraiser := testutil.NewSigner()
	tr := testutil.NewBuilder("txn-snap-1", "art.acquisition").
		AddRound(appraiser, transcript.RoundIntent, 1000, map[string]interface{}{
			"claims": []interface{}{
				map[string]interface{}{"subject": "art:authenticity:item-1", "conf": 0.92},
			},
		}).
		WithFinalHash("").
		Build()

	snap, err := snapshot.Build([]*transcript.Transcript{tr}, nil, false)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	require.Len(t, snap.Entities[0].Domains, 1)
	assert.Equal(t, "art:authenticity", snap.Entities[0].Domains[0].DomainID)
	assert.Equal(t, 92, snap.Entities[0].Domains[0].Metrics.ReliabilityScore)
}

func TestBuild_RevokedAnchorLowersReliabilityAndWarns(t *testing.T) {
	signer := testutil.NewSigner()
	tr := testutil.NewBuilder("txn-snap-2", "art.acquisition").
		AddRound(signer, transcript.RoundIntent, 1000, map[string]interface{}{
			"claims": []interface{}{
				map[string]interface{}{"subject": "art:provenance:item-2", "conf": 0.7},
			},
		}).
		WithFinalHash("").
		Build()

	reg := anchor.New()
	a, err := reg.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: signer.PubB58(),
		AnchorType:                anchor.TypeDomainVerified,
		VerificationMethod:        "dns-txt",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:xyz"},
		IssuedAtMs:                1000,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(a.AnchorID, "compromised", 2000))

	snap, err := snapshot.Build([]*transcript.Transcript{tr}, reg, false)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, 60, snap.Entities[0].Domains[0].Metrics.ReliabilityScore) // 70 - 10
	assert.Contains(t, snap.Recommendations, "avoid_revoked_identity")
	assert.Contains(t, snap.Recommendations, "revocation_warning")
}

func TestBuild_EntitiesSortedByEntityID(t *testing.T) {
	s1 := testutil.NewSigner()
	s2 := testutil.NewSigner()
	tr := testutil.NewBuilder("txn-snap-3", "api.procurement").
		AddRound(s1, transcript.RoundIntent, 1000, nil).
		AddRound(s2, transcript.RoundAsk, 1100, nil).
		WithFinalHash("").
		Build()

	snap, err := snapshot.Build([]*transcript.Transcript{tr}, nil, false)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 2)
	assert.True(t, snap.Entities[0].EntityID < snap.Entities[1].EntityID)
}

func TestBuild_AnchorOnlySignerGetsIdentityDomainBaseline(t *testing.T) {
	signer := testutil.NewSigner()
	tr := testutil.NewBuilder("txn-snap-5", "api.procurement").
		AddRound(signer, transcript.RoundIntent, 1000, nil).
		WithFinalHash("").
		Build()

	reg := anchor.New()
	_, err := reg.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: signer.PubB58(),
		AnchorType:                anchor.TypePlatformVerified,
		VerificationMethod:        "oauth",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:aaa"},
		IssuedAtMs:                1000,
	})
	require.NoError(t, err)
	a2, err := reg.Issue(anchor.IssueRequest{
		SubjectSignerPublicKeyB58: signer.PubB58(),
		AnchorType:                anchor.TypeDomainVerified,
		VerificationMethod:        "dns-txt",
		Payload:                   anchor.Payload{AccountIDFingerprint: "sha256:bbb"},
		IssuedAtMs:                1000,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Revoke(a2.AnchorID, "compromised", 2000))

	snap, err := snapshot.Build([]*transcript.Transcript{tr}, reg, false)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)
	require.Len(t, snap.Entities[0].Domains, 1)
	assert.Equal(t, "identity", snap.Entities[0].Domains[0].DomainID)
	assert.Equal(t, 45, snap.Entities[0].Domains[0].Metrics.ReliabilityScore) // 50 base + 5 trust anchor - 10 for the one revoked anchor
}

func TestBuild_SnapshotIDIsDeterministic(t *testing.T) {
	signer := testutil.NewSigner()
	tr := testutil.NewBuilder("txn-snap-4", "api.procurement").
		AddRound(signer, transcript.RoundIntent, 1000, nil).
		WithFinalHash("").
		Build()

	s1, err := snapshot.Build([]*transcript.Transcript{tr}, nil, false)
	require.NoError(t, err)
	s2, err := snapshot.Build([]*transcript.Transcript{tr}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, s1.SnapshotID, s2.SnapshotID)
}
