package venue

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"gridbot/internal/basket"
	"gridbot/internal/market"
	"gridbot/internal/pkg/circuit"
	"gridbot/internal/sizing"
)

type ResilientConfig struct {
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Resilient decorates a Venue with a per-call timeout, a token bucket and a
// circuit breaker. Rejections do not count as breaker failures.
type Resilient struct {
	inner   Venue
	timeout time.Duration
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker
}

func NewResilient(inner Venue, cfg ResilientConfig) *Resilient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Resilient{
		inner:   inner,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
		breaker: circuit.NewCircuitBreaker("venue."+inner.Name(), cfg.BreakerFailures, cfg.BreakerCooldown),
	}
}

func (r *Resilient) Name() string { return r.inner.Name() }

// Breaker exposes the breaker for status reporting.
func (r *Resilient) Breaker() *circuit.CircuitBreaker { return r.breaker }

func (r *Resilient) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return Unavailable("rate_limit", err)
	}
	err := r.breaker.Execute(func() error { return fn(ctx) }, IsTransient)
	if errors.Is(err, circuit.ErrOpen) {
		return ErrCircuitOpen
	}
	return err
}

func (r *Resilient) CheckSymbol(ctx context.Context, symbol string) (sizing.LotRules, error) {
	var out sizing.LotRules
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.CheckSymbol(ctx, symbol)
		return err
	})
	return out, err
}

func (r *Resilient) FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error) {
	var out market.Window
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.FetchCandles(ctx, symbol, timeframe, count)
		return err
	})
	return out, err
}

func (r *Resilient) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	var out market.Quote
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.FetchQuote(ctx, symbol)
		return err
	})
	return out, err
}

func (r *Resilient) FetchOpenPositions(ctx context.Context, symbol string) ([]basket.Position, error) {
	var out []basket.Position
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.FetchOpenPositions(ctx, symbol)
		return err
	})
	return out, err
}

func (r *Resilient) FetchAccountState(ctx context.Context) (AccountState, error) {
	var out AccountState
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.FetchAccountState(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) SubmitMarketBuy(ctx context.Context, req OrderRequest) (Fill, error) {
	var out Fill
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.SubmitMarketBuy(ctx, req)
		return err
	})
	return out, err
}

func (r *Resilient) SubmitMarketClose(ctx context.Context, req CloseRequest) (CloseResult, error) {
	var out CloseResult
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.inner.SubmitMarketClose(ctx, req)
		return err
	})
	return out, err
}

// NormalizeLot is local arithmetic on most venues and bypasses the limiter.
func (r *Resilient) NormalizeLot(ctx context.Context, symbol string, raw float64) (float64, error) {
	return r.inner.NormalizeLot(ctx, symbol, raw)
}
