package insurer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-protocol/pact-verifier/internal/blame"
	"github.com/pact-protocol/pact-verifier/internal/gcview"
	"github.com/pact-protocol/pact-verifier/internal/insurer"
	"github.com/pact-protocol/pact-verifier/internal/testutil"
	"github.com/pact-protocol/pact-verifier/internal/transcript"
)

func renderAll(t *testing.T, tr *transcript.Transcript) (gcview.GcView, blame.Judgment) {
	t.Helper()
	report, err := transcript.Verify(tr)
	require.NoError(t, err)
	j := blame.Resolve(tr, report)
	view := gcview.Render(tr, report, j, nil)
	return view, j
}

func TestRender_CompletedTranscriptIsCovered(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-ins-1", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		AddRound(buyer, transcript.RoundAccept, 1200, map[string]interface{}{"to": provider.PubB58()}).
		AddRound(buyer, transcript.RoundCommit, 1300, nil).
		AddRound(provider, transcript.RoundReveal, 1400, nil).
		WithFinalHash("").
		Build()

	view, j := renderAll(t, tr)
	summary := insurer.Render(tr, view, j)
	assert.Equal(t, insurer.Covered, summary.Coverage)
}

func TestRender_TamperedTranscriptIsExcluded(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-ins-2", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		WithFinalHash("").
		Build()
	tr.Rounds[1].ContentSummary = map[string]interface{}{"tampered": true}

	view, j := renderAll(t, tr)
	summary := insurer.Render(tr, view, j)
	assert.Equal(t, insurer.Excluded, summary.Coverage)
	assert.Contains(t, summary.RiskFactors, "failure_code:"+j.FailureCode)
}

func TestRender_InconclusiveIsReview(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-ins-3", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundReveal, 1100, nil). // illegal transition
		WithFinalHash("").
		Build()

	view, j := renderAll(t, tr)
	summary := insurer.Render(tr, view, j)
	assert.Equal(t, insurer.Review, summary.Coverage)
}

func TestRender_AuditTierPassedThroughFromMetadata(t *testing.T) {
	buyer := testutil.NewSigner()
	provider := testutil.NewSigner()

	tr := testutil.NewBuilder("txn-ins-4", "api.procurement").
		AddRound(buyer, transcript.RoundIntent, 1000, nil).
		AddRound(provider, transcript.RoundAsk, 1100, nil).
		AddRound(buyer, transcript.RoundAccept, 1200, map[string]interface{}{"to": provider.PubB58()}).
		AddRound(buyer, transcript.RoundCommit, 1300, nil).
		AddRound(provider, transcript.RoundReveal, 1400, nil).
		WithFinalHash("").
		Build()
	tr.Metadata = map[string]interface{}{"audit_tier": "gold", "audit_sla": "24h"}

	view, j := renderAll(t, tr)
	summary := insurer.Render(tr, view, j)
	assert.Equal(t, "gold", summary.AuditTier)
	assert.Equal(t, "24h", summary.AuditSLA)
}
