package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Exhaustive truth table for ClassifyPair's four verdicts.
func TestClassifyPair_TruthTable(t *testing.T) {
	tick := decimal.NewFromFloat(0.01)
	cases := []struct {
		name       string
		sizeA      decimal.Decimal
		sizeL      decimal.Decimal
		want       PairClassification
	}{
		{"opposite signs A+ L-", d(5), d(-5), PairHedge},
		{"opposite signs A- L+", d(-5), d(5), PairHedge},
		{"same sign both positive", d(5), d(5), PairInvalid},
		{"same sign both negative", d(-5), d(-5), PairInvalid},
		{"only A present", d(5), d(0), PairPartial},
		{"only L present", d(0), d(5), PairPartial},
		{"neither present", d(0), d(0), PairGhost},
		{"both below tick dust", d(0.001), d(-0.001), PairGhost},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClassifyPair(c.sizeA, c.sizeL, tick, tick)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestRecovery_Reconcile_NilPositionNeverResumes(t *testing.T) {
	r := NewRecovery(&fakeGateway{}, &fakeGateway{}, noRetryGovernor(), noRetryGovernor(), DefaultConfig(), testLogger())
	outcome, err := r.Reconcile(testCtx(), nil)
	assert.NoError(t, err)
	assert.False(t, outcome.Resume)
}
