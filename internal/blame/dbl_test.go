package blame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/testutil"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

func verifiedJudgment(t *testing.T, tr *transcript.Transcript) blame.Judgment {
	t.Helper()
	report, err := transcript.Verify(tr)
	require.NoError(t, err)
	return blame.Resolve(tr, report)
}

func TestResolve_CompletedSimplePath(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-1", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, map[string]interface{}{"price": "100.00"}).
		AddRound(buyer, transcript.RoundAccept, 1200, map[string]interface{}{"to": provider.PubB58()}).
		AddRound(buyer, transcript.RoundCommit, 1300, nil).
		AddRound(provider, transcript.RoundReveal, 1400, nil).
		WithFinalHash("").
		Build()

	j := verifiedJudgment(t, tr)
	assert.Equal(t, "COMPLETED", j.Status)
	assert.Equal(t, blame.NoFault, j.FaultDomain)
	assert.Equal(t, blame.ActorNone, j.RequiredNextActor)
	assert.True(t, j.Terminal)
	assert.Equal(t, 1.0, j.Confidence)
	assert.Equal(t, 5, j.PassportImpact) // provider completed cleanly
}

func TestResolve_ProviderUnreachableFromFailureEvent(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-2", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		WithFailure(blame.CodeProviderUnreachable).
		WithFinalHash("").
		Build()

	j := verifiedJudgment(t, tr)
	assert.Equal(t, "FAILED_PROVIDER_UNREACHABLE", j.Status)
	assert.Equal(t, blame.CodeProviderUnreachable, j.FailureCode)
	assert.Equal(t, blame.ProviderAtFault, j.FaultDomain)
	assert.Equal(t, blame.ActorProvider, j.RequiredNextActor)
	assert.Equal(t, -9, j.PassportImpact) // round(-10 * 0.9)
}

func TestResolve_RevealHashMismatchEscalatesToAuditor(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-3", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		AddRound(buyer, transcript.RoundAccept, 1200, map[string]interface{}{"to": provider.PubB58()}).
		AddRound(buyer, transcript.RoundCommit, 1300, nil).
		WithFailure(blame.CodeRevealHashMismatch).
		WithFinalHash("").
		Build()

	j := verifiedJudgment(t, tr)
	assert.Equal(t, blame.CodeRevealHashMismatch, j.FailureCode)
	assert.Equal(t, blame.ActorAuditor, j.RequiredNextActor)
	assert.Equal(t, 1.0, j.Confidence)
	assert.Equal(t, -20, j.PassportImpact)
}

func TestResolve_PolicyViolationFromFailureEventAttributesOffendingSigner(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-policy", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, map[string]interface{}{"price": "100.00"}).
		AddRound(buyer, transcript.RoundReject, 1200, nil).
		WithFailure(blame.CodePolicyViolation).
		WithFinalHash("").
		Build()

	j := verifiedJudgment(t, tr)
	assert.Equal(t, "ABORTED_POLICY", j.Status)
	assert.Equal(t, blame.CodePolicyViolation, j.FailureCode)
	assert.Equal(t, blame.ProviderAtFault, j.FaultDomain) // provider signed the offending ASK
	assert.Equal(t, blame.ActorBuyer, j.RequiredNextActor)
	assert.True(t, j.Terminal)
}

func TestResolve_IllegalTransitionYieldsProtocolViolation(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-4", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundReveal, 1100, nil). // illegal: reveal before commit
		WithFinalHash("").
		Build()

	j := verifiedJudgment(t, tr)
	assert.Equal(t, blame.CodeProtocolViolation, j.FailureCode)
	assert.Equal(t, blame.DetInconclusive, j.DblDetermination)
	assert.True(t, j.Terminal)
}

func TestResolve_SignatureFailureYieldsPact500(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-5", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		WithFinalHash("").
		Build()
	tr.Rounds[1].Signature.SigB58 = tr.Rounds[0].Signature.SigB58

	j := verifiedJudgment(t, tr)
	assert.Equal(t, blame.CodeSignatureFailure, j.FailureCode)
	assert.Equal(t, blame.ActorAuditor, j.RequiredNextActor)
}

func TestResolve_HashChainBrokenYieldsPact501(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-6", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		WithFinalHash("").
		Build()
	tr.Rounds[1].ContentSummary = map[string]interface{}{"tampered": true}

	j := verifiedJudgment(t, tr)
	assert.Equal(t, blame.CodeHashChainBroken, j.FailureCode)
	assert.Equal(t, blame.DetInconclusive, j.DblDetermination)
}
