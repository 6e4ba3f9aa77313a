package indicator

import (
	"testing"

	"gridbot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendWindow(n int, step float64) market.Window {
	w := make(market.Window, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*step
		open := base - 0.2
		closePx := base + 0.3
		w[i] = market.Candle{
			OpenTime: int64(i+1) * 60_000,
			Open:     open,
			High:     closePx + 0.2,
			Low:      open - 0.2,
			Close:    closePx,
			Volume:   100 + float64(i%5),
		}
	}
	return w
}

func rangeWindow(n int) market.Window {
	w := make(market.Window, n)
	for i := 0; i < n; i++ {
		mid := 100.0
		if i%2 == 1 {
			mid = 101
		}
		w[i] = market.Candle{
			OpenTime: int64(i+1) * 60_000,
			Open:     mid - 0.3,
			High:     mid + 0.8,
			Low:      mid - 0.8,
			Close:    mid + 0.3,
			Volume:   100,
		}
	}
	return w
}

func TestMinBars(t *testing.T) {
	assert.Equal(t, 64, MinBars(DefaultSettings()))
	s := DefaultSettings()
	s.ADXPeriod = 40
	assert.Equal(t, 80, MinBars(s))
	assert.Equal(t, 64, MinBars(Settings{}), "zero settings fall back to defaults")
}

func TestCompute_InsufficientData(t *testing.T) {
	s := DefaultSettings()
	for _, n := range []int{0, 1, MinBars(s) - 1} {
		_, err := Compute(trendWindow(n, 0.5), s)
		assert.ErrorIs(t, err, ErrInsufficientData, "n=%d", n)
	}
}

func TestCompute_DegenerateWindow(t *testing.T) {
	w := make(market.Window, 80)
	for i := range w {
		w[i] = market.Candle{OpenTime: int64(i + 1), Open: 5, High: 5, Low: 5, Close: 5}
	}
	_, err := Compute(w, DefaultSettings())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompute_Uptrend(t *testing.T) {
	for _, mode := range []Smoothing{SmoothWilder, SmoothSMA} {
		t.Run(string(mode), func(t *testing.T) {
			s := DefaultSettings()
			s.Smoothing = mode
			w := trendWindow(120, 0.5)
			snap, err := Compute(w, s)
			require.NoError(t, err)
			assert.Greater(t, snap.PlusDI, snap.MinusDI)
			assert.Greater(t, snap.ADX, 25.0)
			assert.True(t, snap.TrendUp())
			assert.Greater(t, snap.ATR, 0.0)
			assert.Greater(t, snap.ATRAverage, 0.0)
			assert.Less(t, snap.Chop, 50.0)
			assert.Equal(t, w[len(w)-1].Close, snap.Close)
			assert.Equal(t, w[len(w)-1].OpenTime, snap.CandleTime)
			assert.True(t, snap.BodyOK)
			assert.InDelta(t, 0.5/0.9, snap.BodyRatio, 1e-9)

			again, err := Compute(w, s)
			require.NoError(t, err)
			assert.Equal(t, snap, again)
		})
	}
}

func TestCompute_RangeIsChoppy(t *testing.T) {
	snap, err := Compute(rangeWindow(120), DefaultSettings())
	require.NoError(t, err)
	assert.Greater(t, snap.Chop, 61.8)
}

func TestChoppiness_Formula(t *testing.T) {
	w := market.Window{
		{OpenTime: 1, High: 10, Low: 9, Close: 9.5},
		{OpenTime: 2, High: 11, Low: 10, Close: 10.5},
		{OpenTime: 3, High: 12, Low: 11, Close: 11.5},
	}
	chop, ok := Choppiness(w, 2)
	require.True(t, ok)
	assert.InDelta(t, 58.496, chop, 0.01)

	_, ok = Choppiness(w[:2], 2)
	assert.False(t, ok)
}

func TestATR_ConstantRange(t *testing.T) {
	w := make(market.Window, 40)
	for i := range w {
		w[i] = market.Candle{OpenTime: int64(i + 1), Open: 100, High: 100.5, Low: 99.5, Close: 100}
	}
	for _, mode := range []Smoothing{SmoothWilder, SmoothSMA} {
		atr := ATR(w, 14, mode)
		require.Len(t, atr, len(w))
		assert.InDelta(t, 1.0, atr[len(atr)-1], 1e-9, string(mode))
		assert.Equal(t, 0.0, atr[13], string(mode))
	}
	assert.Equal(t, make([]float64, 5), ATR(w[:5], 14, SmoothWilder))
}

func TestBodyRatio(t *testing.T) {
	r, ok := BodyRatio(market.Candle{Open: 10, Close: 11, High: 12, Low: 10})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, r, 1e-9)

	_, ok = BodyRatio(market.Candle{Open: 10, Close: 10, High: 10, Low: 10})
	assert.False(t, ok)
}

func TestSwingIncludesCurrentBar(t *testing.T) {
	w := trendWindow(30, 0.5)
	high, low, ok := Swing(w, 10)
	require.True(t, ok)
	assert.Equal(t, w[29].High, high)
	assert.Equal(t, w[20].Low, low)

	_, _, ok = Swing(w[:10], 10)
	assert.True(t, ok)
	_, _, ok = Swing(w[:9], 10)
	assert.False(t, ok)
}

func TestSnapshotVolumeEMA(t *testing.T) {
	w := trendWindow(80, 0.5)
	w[len(w)-1].Volume = 1000
	snap, err := Compute(w, DefaultSettings())
	require.NoError(t, err)
	assert.Greater(t, snap.VolumeEMA, snap.VolumeMA, "ema reacts faster to the spike")
	assert.Less(t, snap.VolumeEMA, 1000.0)
}

func TestVolumeRatio(t *testing.T) {
	ratio, ma, ok := VolumeRatio([]float64{100, 100, 100, 200}, 4)
	require.True(t, ok)
	assert.InDelta(t, 125.0, ma, 1e-9)
	assert.InDelta(t, 1.6, ratio, 1e-9)

	_, _, ok = VolumeRatio([]float64{1}, 4)
	assert.False(t, ok)
}
