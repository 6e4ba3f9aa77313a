// Package venue defines the execution boundary the engine trades through.
// Implementations: paper (in-memory fills) and binance (USDT-M futures).
package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/market"
	"gridbot/internal/sizing"
)

var (
	// ErrRejected marks an order the venue refused; the venue itself is healthy.
	ErrRejected = errors.New("venue: rejected")
	// ErrUnavailable marks transport or venue-side failures.
	ErrUnavailable = errors.New("venue: unavailable")
	// ErrCircuitOpen is returned while the breaker short-circuits calls.
	ErrCircuitOpen = errors.New("venue: circuit open")
	// ErrUnknownSymbol is fatal at startup.
	ErrUnknownSymbol = errors.New("venue: unknown symbol")
	// ErrTradingDisabled 表示品种存在但账户或交易所不允许下单，启动时致命。
	ErrTradingDisabled = errors.New("venue: trading disabled")
)

// RejectError carries the venue's rejection reason.
type RejectError struct {
	Op     string
	Reason string
}

func (e *RejectError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("venue %s rejected: %s", e.Op, e.Reason)
}

func (e *RejectError) Unwrap() error { return ErrRejected }

// Reject builds a RejectError.
func Reject(op, format string, args ...any) error {
	return &RejectError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// Unavailable wraps err as a transient failure.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("venue %s: %w: %w", op, ErrUnavailable, err)
}

// IsTransient reports whether a retry on the next tick may succeed.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, ErrRejected)
}

// AccountState is the account view used by the risk governor.
type AccountState struct {
	Equity   float64   `json:"equity"`
	Balance  float64   `json:"balance"`
	Margin   float64   `json:"margin"`
	Currency string    `json:"currency"`
	Time     time.Time `json:"time"`
}

type OrderRequest struct {
	Symbol    string
	Lot       float64
	Deviation float64
	ClientID  string
	Comment   string
}

// Fill is the confirmed result of a market buy.
type Fill struct {
	OrderID    string    `json:"order_id"`
	PositionID string    `json:"position_id"`
	Price      float64   `json:"price"`
	Lot        float64   `json:"lot"`
	Time       time.Time `json:"time"`
}

type CloseRequest struct {
	Symbol     string
	PositionID string
	Lot        float64
	ClientID   string
	Reason     string
}

type CloseResult struct {
	PositionID string    `json:"position_id"`
	Price      float64   `json:"price"`
	Lot        float64   `json:"lot"`
	Profit     float64   `json:"profit"`
	Time       time.Time `json:"time"`
}

// Venue 为执行端边界；任何方法失败都只意味着跳过本轮。
type Venue interface {
	Name() string
	// CheckSymbol verifies the instrument is tradable and returns its lot rules.
	CheckSymbol(ctx context.Context, symbol string) (sizing.LotRules, error)
	FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error)
	FetchQuote(ctx context.Context, symbol string) (market.Quote, error)
	FetchOpenPositions(ctx context.Context, symbol string) ([]basket.Position, error)
	FetchAccountState(ctx context.Context) (AccountState, error)
	SubmitMarketBuy(ctx context.Context, req OrderRequest) (Fill, error)
	SubmitMarketClose(ctx context.Context, req CloseRequest) (CloseResult, error)
	NormalizeLot(ctx context.Context, symbol string, raw float64) (float64, error)
}
