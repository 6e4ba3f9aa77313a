package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var defaults = Thresholds{MaxVolatility: 3.0, Chop: 61.8, StrongTrend: 35, Trend: 25}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
		want Classification
	}{
		{"strong uptrend", Inputs{ATR: 0.5, ADX: 40, PlusDI: 30, MinusDI: 10, Chop: 30}, Classification{TrendingUp, Strong}},
		{"volatile overrides everything", Inputs{ATR: 4.0, ADX: 40, PlusDI: 30, MinusDI: 10, Chop: 30}, Classification{Volatile, Extreme}},
		{"volatile overrides choppy", Inputs{ATR: 4.0, Chop: 80}, Classification{Volatile, Extreme}},
		{"choppy before adx", Inputs{ATR: 1, ADX: 50, PlusDI: 30, MinusDI: 10, Chop: 70}, Classification{Ranging, Choppy}},
		{"moderate down", Inputs{ATR: 1, ADX: 30, PlusDI: 10, MinusDI: 20, Chop: 40}, Classification{TrendingDown, Moderate}},
		{"di tie resolves down", Inputs{ATR: 1, ADX: 40, PlusDI: 20, MinusDI: 20, Chop: 40}, Classification{TrendingDown, Strong}},
		{"weak range", Inputs{ATR: 1, ADX: 20, Chop: 50}, Classification{Ranging, Weak}},
		{"thresholds are strict", Inputs{ATR: 3.0, ADX: 35, PlusDI: 2, MinusDI: 1, Chop: 61.8}, Classification{TrendingUp, Moderate}},
		{"adx on trend threshold", Inputs{ATR: 1, ADX: 25, PlusDI: 2, MinusDI: 1, Chop: 10}, Classification{Ranging, Weak}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in, defaults)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, Classify(tc.in, defaults), "classification must be pure")
		})
	}
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "trending_up/strong", Classification{TrendingUp, Strong}.String())
	assert.Equal(t, "unknown", Classification{}.String())
}

func TestHysteresis(t *testing.T) {
	up := Classification{TrendingUp, Strong}
	rng := Classification{Ranging, Weak}
	vol := Classification{Volatile, Extreme}

	t.Run("disabled passes through", func(t *testing.T) {
		h := NewHysteresis(1)
		assert.Equal(t, up, h.Apply(up))
		assert.Equal(t, rng, h.Apply(rng))
	})

	t.Run("requires consecutive ticks", func(t *testing.T) {
		h := NewHysteresis(3)
		assert.Equal(t, up, h.Apply(up))
		assert.Equal(t, up, h.Apply(rng))
		assert.Equal(t, up, h.Apply(rng))
		assert.Equal(t, rng, h.Apply(rng))
	})

	t.Run("interrupted streak restarts", func(t *testing.T) {
		h := NewHysteresis(2)
		h.Apply(up)
		assert.Equal(t, up, h.Apply(rng))
		assert.Equal(t, up, h.Apply(up))
		assert.Equal(t, up, h.Apply(rng))
		assert.Equal(t, rng, h.Apply(rng))
	})

	t.Run("volatile is immediate", func(t *testing.T) {
		h := NewHysteresis(5)
		h.Apply(up)
		assert.Equal(t, vol, h.Apply(vol))
		assert.Equal(t, vol, h.Current())
	})

	t.Run("nil is a pass-through", func(t *testing.T) {
		var h *Hysteresis
		assert.Equal(t, up, h.Apply(up))
	})
}
