package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Ticks.WithLabelValues(LoopDecision, OutcomeSkip))
	ObserveTick(LoopDecision, OutcomeSkip)
	assert.Equal(t, before+1, testutil.ToFloat64(Ticks.WithLabelValues(LoopDecision, OutcomeSkip)))

	ObserveDenials([]string{"spacing", "spacing", "regime"})
	assert.GreaterOrEqual(t, testutil.ToFloat64(GateDenials.WithLabelValues("spacing")), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(GateDenials.WithLabelValues("regime")), 1.0)
}

func TestSetRegimeKeepsOneSeries(t *testing.T) {
	SetRegime("ranging", "normal")
	SetRegime("trending_up", "strong")
	assert.Equal(t, 1, testutil.CollectAndCount(Regime))
	assert.Equal(t, 1.0, testutil.ToFloat64(Regime.WithLabelValues("trending_up", "strong")))
}

func TestGauges(t *testing.T) {
	SetBasket(3, -12.5)
	SetEquity(980)
	assert.Equal(t, 3.0, testutil.ToFloat64(LadderStep))
	assert.Equal(t, -12.5, testutil.ToFloat64(FloatingPnL))
	assert.Equal(t, 980.0, testutil.ToFloat64(Equity))
}
