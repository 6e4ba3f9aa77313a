package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/market"
	"gridbot/internal/sizing"
	"gridbot/internal/venue"
)

func newTestVenue() *Venue {
	v := New(Config{
		Symbol:     "xauusd",
		Balance:    10000,
		Spread:     0.2,
		PointValue: 100,
		Rules:      sizing.LotRules{Min: 0.01, Step: 0.01, Max: 10},
	}, nil)
	v.SetClock(func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) })
	return v
}

func TestPaper_BuyAndClose(t *testing.T) {
	ctx := context.Background()
	v := newTestVenue()
	v.SetPrice(2000)

	fill, err := v.SubmitMarketBuy(ctx, venue.OrderRequest{Symbol: "XAUUSD", Lot: 0.02, ClientID: "c1"})
	require.NoError(t, err)
	assert.InDelta(t, 2000.2, fill.Price, 1e-9)
	assert.Equal(t, "c1", fill.OrderID)
	assert.Equal(t, 1, v.Orders())

	v.SetPrice(2001.2)
	positions, err := v.FetchOpenPositions(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 2.0, positions[0].Profit, 1e-9)

	acct, err := v.FetchAccountState(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10002, acct.Equity, 1e-9)
	assert.InDelta(t, 10000, acct.Balance, 1e-9)

	res, err := v.SubmitMarketClose(ctx, venue.CloseRequest{Symbol: "XAUUSD", PositionID: fill.PositionID})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Profit, 1e-9)

	acct, _ = v.FetchAccountState(ctx)
	assert.InDelta(t, 10002, acct.Balance, 1e-9)
	positions, _ = v.FetchOpenPositions(ctx, "XAUUSD")
	assert.Empty(t, positions)
}

func TestPaper_Rejections(t *testing.T) {
	ctx := context.Background()
	v := newTestVenue()
	v.SetPrice(2000)

	_, err := v.SubmitMarketBuy(ctx, venue.OrderRequest{Symbol: "XAUUSD", Lot: 0.015})
	assert.ErrorIs(t, err, venue.ErrRejected)
	var rej *venue.RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, OpBuy, rej.Op)

	_, err = v.SubmitMarketClose(ctx, venue.CloseRequest{PositionID: "nope"})
	assert.ErrorIs(t, err, venue.ErrRejected)
	assert.False(t, venue.IsTransient(err))

	_, err = v.CheckSymbol(ctx, "EURUSD")
	assert.ErrorIs(t, err, venue.ErrUnknownSymbol)
	rules, err := v.CheckSymbol(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 0.01, rules.Min)
}

func TestPaper_TradingDisabledIsFatal(t *testing.T) {
	v := New(Config{Symbol: "XAUUSD", TradingDisabled: true, Rules: sizing.LotRules{Min: 0.01, Step: 0.01, Max: 1}}, nil)
	_, err := v.CheckSymbol(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, venue.ErrTradingDisabled)
	assert.NotErrorIs(t, err, venue.ErrUnknownSymbol)
}

func TestPaper_FailNext(t *testing.T) {
	ctx := context.Background()
	v := newTestVenue()
	v.SetPrice(2000)

	v.FailNext(OpBuy, venue.Unavailable(OpBuy, errors.New("timeout")))
	_, err := v.SubmitMarketBuy(ctx, venue.OrderRequest{Symbol: "XAUUSD", Lot: 0.01})
	assert.ErrorIs(t, err, venue.ErrUnavailable)
	assert.True(t, venue.IsTransient(err))

	_, err = v.SubmitMarketBuy(ctx, venue.OrderRequest{Symbol: "XAUUSD", Lot: 0.01})
	assert.NoError(t, err)
}

func TestPaper_NoPriceIsUnavailable(t *testing.T) {
	v := newTestVenue()
	_, err := v.FetchQuote(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, venue.ErrUnavailable)
	_, err = v.FetchCandles(context.Background(), "XAUUSD", "1m", 10)
	assert.ErrorIs(t, err, venue.ErrUnavailable)
}

func TestPaper_LocalWindow(t *testing.T) {
	v := newTestVenue()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	w := market.Window{
		{OpenTime: base.UnixMilli(), Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{OpenTime: base.Add(time.Minute).UnixMilli(), Open: 1.5, High: 2, Low: 1, Close: 1.8},
	}
	v.SetWindow(w)
	v.PushCandle(market.Candle{OpenTime: base.Add(time.Minute).UnixMilli(), Open: 1.5, High: 2.2, Low: 1, Close: 2.1})

	got, err := v.FetchCandles(context.Background(), "XAUUSD", "1m", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.1, got[1].Close)

	q, err := v.FetchQuote(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 2.1, q.Bid)
	assert.InDelta(t, 2.3, q.Ask, 1e-12)
}

func TestPaper_FeedDrivesPrice(t *testing.T) {
	feed := NewRandomWalk(42, 2000, 0.5, time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 30, 0, time.UTC)
	feed.now = func() time.Time { return now }
	v := New(Config{Symbol: "XAUUSD", Balance: 1000, Rules: sizing.LotRules{Min: 0.01, Step: 0.01, Max: 1}}, feed)

	w, err := v.FetchCandles(context.Background(), "XAUUSD", "1m", 50)
	require.NoError(t, err)
	require.Len(t, w, 50)
	require.NoError(t, market.ValidateWindow(w))

	last, _ := w.Last()
	q, err := v.FetchQuote(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, last.Close, q.Bid)

	now = now.Add(2 * time.Minute)
	w, err = v.FetchCandles(context.Background(), "XAUUSD", "1m", 50)
	require.NoError(t, err)
	require.Len(t, w, 50)
	last2, _ := w.Last()
	assert.Equal(t, last.OpenTime+2*60_000, last2.OpenTime)
}

func TestPaper_OtherTimeframeBypassesLocalWindow(t *testing.T) {
	feed := NewRandomWalk(7, 2000, 0.5, time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 30, 0, time.UTC)
	feed.now = func() time.Time { return now }
	v := New(Config{Symbol: "XAUUSD", Timeframe: "1m", Rules: sizing.LotRules{Min: 0.01, Step: 0.01, Max: 1}}, feed)
	v.SetWindow(market.Window{{OpenTime: 1, High: 2, Low: 1, Close: 1.5}})

	htf, err := v.FetchCandles(context.Background(), "XAUUSD", "15m", 20)
	require.NoError(t, err)
	assert.Len(t, htf, 20)

	q, err := v.FetchQuote(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.5, q.Bid)
}
