package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(times ...int64) Window {
	out := make(Window, 0, len(times))
	for _, ts := range times {
		out = append(out, Candle{OpenTime: ts, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100})
	}
	return out
}

func TestValidateWindow(t *testing.T) {
	t.Run("strictly increasing", func(t *testing.T) {
		assert.NoError(t, ValidateWindow(bars(1, 2, 3)))
	})
	t.Run("duplicate timestamp", func(t *testing.T) {
		err := ValidateWindow(bars(1, 2, 2))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidWindow))
	})
	t.Run("inverted range", func(t *testing.T) {
		w := bars(1)
		w[0].High, w[0].Low = 8, 9
		assert.ErrorIs(t, ValidateWindow(w), ErrInvalidWindow)
	})
	t.Run("empty", func(t *testing.T) {
		assert.NoError(t, ValidateWindow(nil))
	})
}

func TestSanitize(t *testing.T) {
	w := bars(3, 1, 2, 2)
	w[3].Close = 99
	out := Sanitize(w)
	require.Len(t, out, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{out[0].OpenTime, out[1].OpenTime, out[2].OpenTime})
	assert.Equal(t, 99.0, out[1].Close)
	assert.NoError(t, ValidateWindow(out))
	assert.Equal(t, int64(3), w[0].OpenTime, "input must not be reordered")
}

func TestMerge(t *testing.T) {
	base := bars(1, 2, 3)
	in := bars(3, 4, 5)
	in[0].Close = 42
	out := Merge(base, in, 4)
	require.Len(t, out, 4)
	assert.Equal(t, int64(2), out[0].OpenTime)
	assert.Equal(t, 42.0, out[1].Close)
	assert.Equal(t, int64(5), out[3].OpenTime)
	assert.Len(t, base, 3)
}

func TestDropUnclosed(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Window{
		{OpenTime: start.UnixMilli()},
		{OpenTime: start.Add(time.Minute).UnixMilli()},
	}
	now := start.Add(90 * time.Second)
	assert.Len(t, DropUnclosed(w, time.Minute, now, 0), 1)
	assert.Len(t, DropUnclosed(w, time.Minute, start.Add(2*time.Minute), 0), 2)
}

func TestWindowAccessors(t *testing.T) {
	w := bars(1, 2, 3, 4)
	assert.Len(t, w.Tail(2), 2)
	assert.Len(t, w.Tail(10), 4)
	assert.Nil(t, w.Tail(0))
	assert.Equal(t, []float64{10.5, 10.5, 10.5, 10.5}, w.Closes())
	last, ok := w.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(4), last.OpenTime)
	_, ok = Window(nil).Last()
	assert.False(t, ok)
}

func TestQuote(t *testing.T) {
	q := Quote{Bid: 100, Ask: 100.3}
	assert.InDelta(t, 0.3, q.Spread(), 1e-9)
	assert.InDelta(t, 100.15, q.Mid(), 1e-9)
	assert.Equal(t, 0.0, Quote{Ask: 1}.Spread())
	assert.False(t, Quote{Bid: 2, Ask: 1}.Valid())
}

func TestParseTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4H":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "m", "0m", "5x", "-1h"} {
		_, err := ParseTimeframe(bad)
		assert.Error(t, err, bad)
	}
}
