package sizing

import (
	"math"
	"testing"

	"gridbot/internal/config"
	"gridbot/internal/regime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var xauRules = LotRules{Min: 0.01, Step: 0.01, Max: 10}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  float64
		want float64
	}{
		{"floor to step", 0.037, 0.03},
		{"exact", 0.05, 0.05},
		{"below min rounds up", 0.004, 0.01},
		{"zero", 0, 0.01},
		{"negative", -3, 0.01},
		{"nan", math.NaN(), 0.01},
		{"inf", math.Inf(1), 0.01},
		{"above max", 25, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, xauRules.Normalize(tc.raw))
		})
	}

	odd := LotRules{Min: 0.1, Step: 0.2, Max: 1.1}
	assert.Equal(t, 1.0, odd.Normalize(5), "max floors to a step multiple")
	assert.Equal(t, 0.2, odd.Normalize(0.15), "min rounds up to a step multiple")
}

func TestLotKey(t *testing.T) {
	assert.Equal(t, "0.03", LotKey(0.03))
	assert.Equal(t, LotKey(0.1+0.2), LotKey(0.3))
}

func policies(t *testing.T) []Policy {
	t.Helper()
	fixed, err := New(config.SizingConfig{
		Policy:        PolicyFixedLadder,
		Ladder:        []float64{0.01, 0.01, 0.02, 0.03, 0.05, 0.08, 0.13, 0.21, 0.34},
		SpacingFloor:  1.5,
		SpacingCoeffs: map[string]float64{"trending": 1.0, "ranging": 0.8, "volatile": 1.5},
	}, xauRules)
	require.NoError(t, err)
	mart, err := New(config.SizingConfig{
		Policy:       PolicyVolMartingale,
		BaseLot:      0.01,
		EarlyGrowth:  2,
		LateGrowth:   1.4,
		RiskConstant: 100,
		MaxRiskPct:   2,
		SpacingBase:  1.5,
		SpacingStep:  0.5,
		SpacingMin:   1,
		SpacingMax:   6,
	}, xauRules)
	require.NoError(t, err)
	return []Policy{fixed, mart}
}

func TestPlan_LotAlwaysValid(t *testing.T) {
	atrs := []float64{0, 0.0001, 0.5, 3, 400, math.NaN()}
	equities := []float64{0, -50, 1, 10_000, 1e12}
	for _, p := range policies(t) {
		for step := -1; step <= 12; step++ {
			for _, atr := range atrs {
				for _, eq := range equities {
					plan, err := p.Plan(Request{Step: step, ATR: atr, ATRAverage: 0.5, Equity: eq})
					require.NoError(t, err)
					assert.True(t, xauRules.Valid(plan.Lot), "%s step=%d atr=%v eq=%v lot=%v", p.Name(), step, atr, eq, plan.Lot)
					assert.False(t, math.IsNaN(plan.MinDistance))
					assert.Greater(t, plan.MinDistance, 0.0)
				}
			}
		}
	}
}

func TestFixedLadder(t *testing.T) {
	p := policies(t)[0]
	up := regime.Classification{Regime: regime.TrendingUp, Strength: regime.Strong}
	rng := regime.Classification{Regime: regime.Ranging, Strength: regime.Weak}

	plan, err := p.Plan(Request{Step: 3, ATR: 2, Regime: up})
	require.NoError(t, err)
	assert.Equal(t, 0.03, plan.Lot)
	assert.InDelta(t, 2.0, plan.MinDistance, 1e-9)

	plan, _ = p.Plan(Request{Step: 3, ATR: 2, Regime: rng})
	assert.InDelta(t, 1.6, plan.MinDistance, 1e-9)

	plan, _ = p.Plan(Request{Step: 0, ATR: 0.5, Regime: rng})
	assert.Equal(t, 1.5, plan.MinDistance, "floor applies")

	plan, _ = p.Plan(Request{Step: 20, ATR: 1, Regime: up})
	assert.Equal(t, 0.34, plan.Lot, "step beyond ladder clamps to last rung")

	_, err = (&FixedLadder{}).Plan(Request{})
	assert.ErrorIs(t, err, ErrNoRungs)
}

func TestFixedLadder_RegimeGridStep(t *testing.T) {
	p, err := New(config.SizingConfig{
		Policy:           PolicyFixedLadder,
		Ladder:           []float64{0.01, 0.01, 0.01, 0.02, 0.02, 0.02, 0.03, 0.03, 0.04},
		SpacingFloor:     0.6,
		SpacingCoeffs:    map[string]float64{"trending": 0.20, "ranging": 0.15, "volatile": 0.25},
		FloorMultipliers: map[string]float64{"volatile": 1.5},
	}, xauRules)
	require.NoError(t, err)

	volatile := regime.Classification{Regime: regime.Volatile, Strength: regime.Extreme}
	ranging := regime.Classification{Regime: regime.Ranging, Strength: regime.Weak}
	down := regime.Classification{Regime: regime.TrendingDown, Strength: regime.Moderate}

	cases := []struct {
		name  string
		atr   float64
		class regime.Classification
		want  float64
	}{
		{"volatile floor is widened", 2, volatile, 0.9},
		{"volatile atr wins", 4, volatile, 1.0},
		{"ranging floor", 1, ranging, 0.6},
		{"ranging atr", 6, ranging, 0.9},
		{"trending atr", 5, down, 1.0},
		{"trending floor", 2, down, 0.6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := p.Plan(Request{Step: 4, ATR: tc.atr, Regime: tc.class})
			require.NoError(t, err)
			assert.InDelta(t, tc.want, plan.MinDistance, 1e-9)
			assert.Equal(t, 0.02, plan.Lot)
		})
	}
}

func TestVolMartingale(t *testing.T) {
	p := policies(t)[1]
	rich := 1e9

	lots := make([]float64, 0, 5)
	for step := 0; step < 5; step++ {
		plan, err := p.Plan(Request{Step: step, ATR: 0.5, ATRAverage: 0.5, Equity: rich})
		require.NoError(t, err)
		lots = append(lots, plan.Lot)
	}
	// 0.01, 0.02, 0.04, 0.056 -> 0.05, 0.0784 -> 0.07
	assert.Equal(t, []float64{0.01, 0.02, 0.04, 0.05, 0.07}, lots)

	t.Run("de-risks above average atr", func(t *testing.T) {
		calm, _ := p.Plan(Request{Step: 2, ATR: 0.5, ATRAverage: 0.5, Equity: rich})
		wild, _ := p.Plan(Request{Step: 2, ATR: 1.0, ATRAverage: 0.5, Equity: rich})
		assert.Equal(t, 0.04, calm.Lot)
		assert.Equal(t, 0.02, wild.Lot)
	})

	t.Run("equity cap", func(t *testing.T) {
		// budget = 1000 * 2% = 20; cap = 20 / (1 * 100) = 0.2
		plan, _ := p.Plan(Request{Step: 8, ATR: 1, ATRAverage: 1, Equity: 1000})
		assert.LessOrEqual(t, plan.Lot*1*100, 1000*0.02+1e-9)
		assert.Equal(t, 0.2, plan.Lot)
	})

	t.Run("spacing is linear and clamped", func(t *testing.T) {
		s0, _ := p.Plan(Request{Step: 0, Equity: rich})
		s3, _ := p.Plan(Request{Step: 3, Equity: rich})
		s20, _ := p.Plan(Request{Step: 20, Equity: rich})
		assert.Equal(t, 1.5, s0.MinDistance)
		assert.Equal(t, 3.0, s3.MinDistance)
		assert.Equal(t, 6.0, s20.MinDistance)
	})
}

func TestNew_UnknownPolicy(t *testing.T) {
	_, err := New(config.SizingConfig{Policy: "kelly"}, xauRules)
	assert.Error(t, err)
}
