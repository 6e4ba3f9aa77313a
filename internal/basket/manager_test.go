package basket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/config"
	"gridbot/internal/indicator"
	"gridbot/internal/regime"
)

func testSettings(mode string) Settings {
	return SettingsFromConfig(config.BasketConfig{
		TPMode:     mode,
		BaseProfit: 10,
		MinTarget:  3,
		CountTiers: []config.CountTier{
			{MaxCount: 3, Multiplier: 0.85},
			{MaxCount: 1, Multiplier: 1},
		},
		CountFloor: 0.4,
		RegimeMultipliers: map[string]float64{
			"trending_up/strong": 1.5,
			"ranging":            0.8,
		},
		Tiers: []config.BasketTier{
			{MaxCount: 4, Points: 2},
			{MaxCount: 2, Points: 3},
		},
		ATRScaleMin:    0.5,
		ATRScaleMax:    2,
		MinGainPct:     0.05,
		StopMultiplier: 3,
	}, 1)
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	agg := Summarize([]Position{
		{ID: "1", Volume: 0.01, EntryPrice: 2000, OpenTime: base, Profit: -2},
		{ID: "2", Volume: 0.03, EntryPrice: 1990, OpenTime: base.Add(time.Minute), Profit: -1},
		{ID: "3", Volume: 0, EntryPrice: 1900, OpenTime: base.Add(2 * time.Minute), Profit: 5},
	})
	assert.Equal(t, 2, agg.Count)
	assert.InDelta(t, 0.04, agg.TotalVolume, 1e-12)
	assert.InDelta(t, 1992.5, agg.VWAP, 1e-9)
	assert.InDelta(t, -3, agg.FloatingPnL, 1e-12)
	assert.Equal(t, 1990.0, agg.LastEntryPrice)
	assert.Equal(t, base.Add(time.Minute), agg.LastEntryTime)

	assert.True(t, Summarize(nil).Empty())
}

func TestSortByOpenTime(t *testing.T) {
	base := time.Now()
	in := []Position{{ID: "b", OpenTime: base.Add(time.Second)}, {ID: "a", OpenTime: base}}
	out := SortByOpenTime(in)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", in[0].ID)
}

func TestManager_ObserveTransitions(t *testing.T) {
	m := NewManager(testSettings(ModeProfit))
	assert.Equal(t, StateEmpty, m.State())
	assert.Equal(t, NoChange, m.Observe(Aggregate{}))
	assert.Equal(t, Opened, m.Observe(Aggregate{Count: 1}))
	assert.Equal(t, StateActive, m.State())
	assert.Equal(t, NoChange, m.Observe(Aggregate{Count: 2}))
	assert.Equal(t, Emptied, m.Observe(Aggregate{}))
	assert.Equal(t, StateEmpty, m.State())

	m.Observe(Aggregate{Count: 1})
	m.MarkEmpty()
	assert.Equal(t, StateEmpty, m.State())
}

func TestManager_ProfitTargets(t *testing.T) {
	m := NewManager(testSettings(ModeProfit))
	snap := indicator.Snapshot{ATR: 2, ATRAverage: 2}
	strong := regime.Classification{Regime: regime.TrendingUp, Strength: regime.Strong}
	ranging := regime.Classification{Regime: regime.Ranging, Strength: regime.Weak}
	down := regime.Classification{Regime: regime.TrendingDown, Strength: regime.Moderate}

	tg := m.Targets(Aggregate{Count: 1, TotalVolume: 0.01}, snap, strong)
	assert.Equal(t, ModeProfit, tg.Mode)
	assert.InDelta(t, 15, tg.TakeProfit, 1e-9)
	assert.True(t, tg.HasStop)
	assert.InDelta(t, -0.06, tg.StopLoss, 1e-12)

	// 3 positions: multiplier 0.85, ranging 0.8 -> 6.8
	tg = m.Targets(Aggregate{Count: 3, TotalVolume: 0.05}, snap, ranging)
	assert.InDelta(t, 6.8, tg.TakeProfit, 1e-9)

	// beyond the last tier: count floor 0.4, no regime multiplier -> 4
	tg = m.Targets(Aggregate{Count: 9, TotalVolume: 0.2}, snap, down)
	assert.InDelta(t, 4, tg.TakeProfit, 1e-9)

	// min target floor
	m.settings.BaseProfit = 1
	tg = m.Targets(Aggregate{Count: 9, TotalVolume: 0.2}, snap, down)
	assert.InDelta(t, 3, tg.TakeProfit, 1e-9)
}

func TestManager_ProfitTargetsByCountTier(t *testing.T) {
	m := NewManager(SettingsFromConfig(config.BasketConfig{
		TPMode:     ModeProfit,
		BaseProfit: 1,
		MinTarget:  0.5,
		CountTiers: []config.CountTier{
			{MaxCount: 1, Multiplier: 1},
			{MaxCount: 3, Multiplier: 0.85},
			{MaxCount: 5, Multiplier: 0.70},
		},
		CountFloor: 0.6,
		RegimeMultipliers: map[string]float64{
			"trending_up/strong": 1.3,
			"trending_up":        1.1,
			"ranging":            0.9,
			"volatile":           0.8,
			"trending_down":      0.7,
		},
		StopMultiplier: 2,
	}, 1))
	snap := indicator.Snapshot{ATR: 1.5}
	moderate := regime.Classification{Regime: regime.TrendingUp, Strength: regime.Moderate}
	strong := regime.Classification{Regime: regime.TrendingUp, Strength: regime.Strong}
	volatile := regime.Classification{Regime: regime.Volatile}
	down := regime.Classification{Regime: regime.TrendingDown, Strength: regime.Strong}

	cases := []struct {
		count int
		class regime.Classification
		want  float64
	}{
		{1, strong, 1.3},
		{2, moderate, 0.85 * 1.1},
		{4, volatile, 0.70 * 0.8},
		{5, moderate, 0.70 * 1.1},
		{6, strong, 0.60 * 1.3},
		{7, down, 0.5}, // 0.42 below the floor
	}
	for _, tc := range cases {
		tg := m.Targets(Aggregate{Count: tc.count, TotalVolume: 0.01 * float64(tc.count)}, snap, tc.class)
		assert.InDelta(t, tc.want, tg.TakeProfit, 1e-9, "count %d %s", tc.count, tc.class)
	}
	tg := m.Targets(Aggregate{Count: 3, TotalVolume: 0.04}, snap, moderate)
	assert.InDelta(t, -(1.5 * 2 * 0.04), tg.StopLoss, 1e-12)
}

func TestManager_StopLossScalesWithPointValue(t *testing.T) {
	s := testSettings(ModeProfit)
	s.PointValue = 100
	m := NewManager(s)
	tg := m.Targets(Aggregate{Count: 2, TotalVolume: 0.1}, indicator.Snapshot{ATR: 1.5}, regime.Classification{})
	assert.InDelta(t, -45, tg.StopLoss, 1e-9)

	tg = m.Targets(Aggregate{Count: 2, TotalVolume: 0.1}, indicator.Snapshot{}, regime.Classification{})
	assert.False(t, tg.HasStop)
}

func TestManager_PointsTargets(t *testing.T) {
	m := NewManager(testSettings(ModePoints))
	agg := Aggregate{Count: 2, TotalVolume: 0.1}

	tg := m.Targets(agg, indicator.Snapshot{ATR: 1, ATRAverage: 1}, regime.Classification{})
	assert.Equal(t, ModePoints, tg.Mode)
	assert.InDelta(t, 0.3, tg.TakeProfit, 1e-12)

	// ATR ratio 4 is clamped to 2
	tg = m.Targets(agg, indicator.Snapshot{ATR: 4, ATRAverage: 1}, regime.Classification{})
	assert.InDelta(t, 0.6, tg.TakeProfit, 1e-12)

	// beyond the largest tier keeps the last tier
	agg.Count = 7
	tg = m.Targets(agg, indicator.Snapshot{ATR: 0.1, ATRAverage: 1}, regime.Classification{})
	assert.InDelta(t, 2*0.5*0.1, tg.TakeProfit, 1e-12)
}

func TestManager_EvaluateTakeProfit(t *testing.T) {
	m := NewManager(testSettings(ModeProfit))
	m.Observe(Aggregate{Count: 1})
	snap := indicator.Snapshot{ATR: 2, ATRAverage: 2}
	c := regime.Classification{Regime: regime.Ranging, Strength: regime.Weak}

	exit := m.Evaluate(Aggregate{Count: 1, TotalVolume: 0.01, VWAP: 2000, FloatingPnL: 7}, snap, c, 2007)
	assert.False(t, exit.Close)

	exit = m.Evaluate(Aggregate{Count: 1, TotalVolume: 0.01, VWAP: 2000, FloatingPnL: 8}, snap, c, 2008)
	require.True(t, exit.Close)
	assert.Equal(t, ReasonTakeProfit, exit.Reason)
	assert.InDelta(t, 8, m.LastTargets().TakeProfit, 1e-9)
}

func TestManager_EvaluateStopLoss(t *testing.T) {
	m := NewManager(testSettings(ModeProfit))
	exit := m.Evaluate(Aggregate{Count: 3, TotalVolume: 1, VWAP: 2000, FloatingPnL: -6}, indicator.Snapshot{ATR: 2}, regime.Classification{}, 1994)
	require.True(t, exit.Close)
	assert.Equal(t, ReasonStopLoss, exit.Reason)

	exit = m.Evaluate(Aggregate{Count: 3, TotalVolume: 1, VWAP: 2000, FloatingPnL: -5.9}, indicator.Snapshot{ATR: 2}, regime.Classification{}, 1994)
	assert.False(t, exit.Close)
}

func TestManager_PointsMinGainGate(t *testing.T) {
	m := NewManager(testSettings(ModePoints))
	agg := Aggregate{Count: 1, TotalVolume: 1, VWAP: 2000, FloatingPnL: 5}
	snap := indicator.Snapshot{ATR: 1, ATRAverage: 1}

	// target 3, but price gain 0.025% < 0.05%
	exit := m.Evaluate(agg, snap, regime.Classification{}, 2000.5)
	assert.False(t, exit.Close)

	exit = m.Evaluate(agg, snap, regime.Classification{}, 2002)
	assert.True(t, exit.Close)
}

func TestManager_EvaluateEmptyBasket(t *testing.T) {
	m := NewManager(testSettings(ModeProfit))
	exit := m.Evaluate(Aggregate{}, indicator.Snapshot{ATR: 2}, regime.Classification{}, 2000)
	assert.False(t, exit.Close)
}
