package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gridbot/internal/basket"
	"gridbot/internal/market"
	"gridbot/internal/sizing"
)

type mockVenue struct {
	mock.Mock
}

func (m *mockVenue) Name() string { return "mock" }

func (m *mockVenue) CheckSymbol(ctx context.Context, symbol string) (sizing.LotRules, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(sizing.LotRules), args.Error(1)
}

func (m *mockVenue) FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error) {
	args := m.Called(ctx, symbol, timeframe, count)
	w, _ := args.Get(0).(market.Window)
	return w, args.Error(1)
}

func (m *mockVenue) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(market.Quote), args.Error(1)
}

func (m *mockVenue) FetchOpenPositions(ctx context.Context, symbol string) ([]basket.Position, error) {
	args := m.Called(ctx, symbol)
	p, _ := args.Get(0).([]basket.Position)
	return p, args.Error(1)
}

func (m *mockVenue) FetchAccountState(ctx context.Context) (AccountState, error) {
	args := m.Called(ctx)
	return args.Get(0).(AccountState), args.Error(1)
}

func (m *mockVenue) SubmitMarketBuy(ctx context.Context, req OrderRequest) (Fill, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Fill), args.Error(1)
}

func (m *mockVenue) SubmitMarketClose(ctx context.Context, req CloseRequest) (CloseResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(CloseResult), args.Error(1)
}

func (m *mockVenue) NormalizeLot(ctx context.Context, symbol string, raw float64) (float64, error) {
	args := m.Called(ctx, symbol, raw)
	return args.Get(0).(float64), args.Error(1)
}

func TestResilient_PassThrough(t *testing.T) {
	inner := &mockVenue{}
	inner.On("FetchQuote", mock.Anything, "XAUUSD").Return(market.Quote{Bid: 1, Ask: 2}, nil).Once()
	inner.On("NormalizeLot", mock.Anything, "XAUUSD", 0.013).Return(0.01, nil).Once()

	r := NewResilient(inner, ResilientConfig{Timeout: time.Second, RatePerSecond: 100, Burst: 10, BreakerFailures: 2, BreakerCooldown: time.Minute})
	q, err := r.FetchQuote(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 2.0, q.Ask)

	lot, err := r.NormalizeLot(context.Background(), "XAUUSD", 0.013)
	require.NoError(t, err)
	assert.Equal(t, 0.01, lot)
	inner.AssertExpectations(t)
}

func TestResilient_BreakerOpensOnTransientFailures(t *testing.T) {
	inner := &mockVenue{}
	down := Unavailable("positions", errors.New("connection reset"))
	inner.On("FetchOpenPositions", mock.Anything, "XAUUSD").Return(nil, down).Twice()

	r := NewResilient(inner, ResilientConfig{BreakerFailures: 2, BreakerCooldown: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := r.FetchOpenPositions(context.Background(), "XAUUSD")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	_, err := r.FetchOpenPositions(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	inner.AssertNumberOfCalls(t, "FetchOpenPositions", 2)
}

func TestResilient_RejectionsDoNotTrip(t *testing.T) {
	inner := &mockVenue{}
	req := OrderRequest{Symbol: "XAUUSD", Lot: 0.01}
	inner.On("SubmitMarketBuy", mock.Anything, req).Return(Fill{}, Reject("buy", "market closed")).Times(3)

	r := NewResilient(inner, ResilientConfig{BreakerFailures: 1, BreakerCooldown: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := r.SubmitMarketBuy(context.Background(), req)
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, "CLOSED", r.Breaker().State().String())
}

func TestResilient_TimeoutPropagates(t *testing.T) {
	inner := &mockVenue{}
	inner.On("FetchAccountState", mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	}).Return(AccountState{Equity: 10}, nil).Once()

	r := NewResilient(inner, ResilientConfig{Timeout: 50 * time.Millisecond})
	acct, err := r.FetchAccountState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, acct.Equity)
}

func TestRejectError(t *testing.T) {
	err := Reject("close", "position %s not found", "p1")
	assert.EqualError(t, err, "venue close rejected: position p1 not found")
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, IsTransient(err))
	assert.True(t, IsTransient(Unavailable("x", errors.New("eof"))))
	assert.Nil(t, Unavailable("x", nil))
}
