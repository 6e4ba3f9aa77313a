// Package paper 提供内存撮合的模拟执行端，用于 dry-run 与测试。
package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/market"
	"gridbot/internal/sizing"
	"gridbot/internal/venue"
)

// Feed 为可选的上游 K 线来源。
type Feed interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error)
}

type Config struct {
	Symbol     string
	Timeframe  string // 本地窗口周期，其他周期的请求直接转发给 feed
	Balance    float64
	Spread     float64
	PointValue float64
	Rules      sizing.LotRules
	Currency   string
	MaxCandles int
	// TradingDisabled 模拟交易模式受限的账户
	TradingDisabled bool
}

const (
	OpCandles = "candles"
	OpQuote   = "quote"
	OpBuy     = "buy"
	OpClose   = "close"
	OpAccount = "account"
)

// Venue 以 bid 平仓、ask 开仓，权益 = 余额 + 浮动盈亏。
type Venue struct {
	cfg  Config
	feed Feed
	now  func() time.Time

	mu        sync.Mutex
	balance   float64
	price     float64
	window    market.Window
	positions []basket.Position
	seq       int
	failNext  map[string]error
	orders    int
}

func New(cfg Config, feed Feed) *Venue {
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.PointValue <= 0 {
		cfg.PointValue = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.MaxCandles <= 0 {
		cfg.MaxCandles = 1000
	}
	return &Venue{
		cfg:      cfg,
		feed:     feed,
		now:      time.Now,
		balance:  cfg.Balance,
		failNext: make(map[string]error),
	}
}

func (v *Venue) Name() string { return "paper" }

// SetClock 替换时间源，便于测试。
func (v *Venue) SetClock(now func() time.Time) {
	v.mu.Lock()
	v.now = now
	v.mu.Unlock()
}

// SetPrice 设置当前 bid 价格。
func (v *Venue) SetPrice(bid float64) {
	v.mu.Lock()
	v.price = bid
	v.mu.Unlock()
}

// SetWindow 替换本地 K 线，并以最后一根收盘价为当前价。
func (v *Venue) SetWindow(w market.Window) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window = market.Sanitize(w)
	if last, ok := v.window.Last(); ok {
		v.price = last.Close
	}
}

// PushCandle 追加或覆盖一根 K 线。
func (v *Venue) PushCandle(c market.Candle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window = market.Merge(v.window, market.Window{c}, v.cfg.MaxCandles)
	v.price = c.Close
}

// FailNext 让下一次 op 调用返回 err。
func (v *Venue) FailNext(op string, err error) {
	v.mu.Lock()
	v.failNext[op] = err
	v.mu.Unlock()
}

// Orders 返回累计成交的开仓单数量。
func (v *Venue) Orders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.orders
}

// AddPosition 直接注入一笔持仓，模拟外部开仓或重启前遗留的仓位。
func (v *Venue) AddPosition(p basket.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p.ID == "" {
		v.seq++
		p.ID = fmt.Sprintf("paper-%d", v.seq)
	}
	if p.Symbol == "" {
		p.Symbol = v.cfg.Symbol
	}
	v.positions = append(v.positions, p)
}

func (v *Venue) takeFailure(op string) error {
	err, ok := v.failNext[op]
	if !ok {
		return nil
	}
	delete(v.failNext, op)
	return err
}

func (v *Venue) CheckSymbol(_ context.Context, symbol string) (sizing.LotRules, error) {
	if !strings.EqualFold(strings.TrimSpace(symbol), v.cfg.Symbol) {
		return sizing.LotRules{}, fmt.Errorf("%w: %s", venue.ErrUnknownSymbol, symbol)
	}
	if v.cfg.TradingDisabled {
		return sizing.LotRules{}, fmt.Errorf("%w: %s", venue.ErrTradingDisabled, symbol)
	}
	return v.cfg.Rules, nil
}

func (v *Venue) FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error) {
	v.mu.Lock()
	if err := v.takeFailure(OpCandles); err != nil {
		v.mu.Unlock()
		return nil, venue.Unavailable(OpCandles, err)
	}
	feed := v.feed
	v.mu.Unlock()

	if feed != nil {
		w, err := feed.FetchCandles(ctx, symbol, timeframe, count)
		if err != nil {
			return nil, venue.Unavailable(OpCandles, err)
		}
		if !v.primary(timeframe) {
			return w, nil
		}
		v.mu.Lock()
		v.window = market.Merge(v.window, w, v.cfg.MaxCandles)
		if last, ok := v.window.Last(); ok {
			v.price = last.Close
		}
		v.mu.Unlock()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.window) == 0 {
		return nil, venue.Unavailable(OpCandles, errors.New("no candles"))
	}
	return v.window.Tail(count).Clone(), nil
}

func (v *Venue) primary(timeframe string) bool {
	return v.cfg.Timeframe == "" || strings.EqualFold(strings.TrimSpace(timeframe), v.cfg.Timeframe)
}

func (v *Venue) FetchQuote(_ context.Context, symbol string) (market.Quote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.takeFailure(OpQuote); err != nil {
		return market.Quote{}, venue.Unavailable(OpQuote, err)
	}
	if v.price <= 0 {
		return market.Quote{}, venue.Unavailable(OpQuote, errors.New("no price yet"))
	}
	return v.quoteLocked(), nil
}

func (v *Venue) quoteLocked() market.Quote {
	return market.Quote{
		Symbol: v.cfg.Symbol,
		Bid:    v.price,
		Ask:    v.price + v.cfg.Spread,
		Last:   v.price,
		Time:   v.now(),
	}
}

func (v *Venue) FetchOpenPositions(_ context.Context, symbol string) ([]basket.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]basket.Position, 0, len(v.positions))
	for _, p := range v.positions {
		if !strings.EqualFold(p.Symbol, symbol) {
			continue
		}
		p.Profit = v.profitLocked(p)
		out = append(out, p)
	}
	return out, nil
}

func (v *Venue) profitLocked(p basket.Position) float64 {
	if v.price <= 0 {
		return p.Profit
	}
	return (v.price - p.EntryPrice) * p.Volume * v.cfg.PointValue
}

func (v *Venue) FetchAccountState(context.Context) (venue.AccountState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.takeFailure(OpAccount); err != nil {
		return venue.AccountState{}, venue.Unavailable(OpAccount, err)
	}
	floating := 0.0
	for _, p := range v.positions {
		floating += v.profitLocked(p)
	}
	return venue.AccountState{
		Equity:   v.balance + floating,
		Balance:  v.balance,
		Currency: v.cfg.Currency,
		Time:     v.now(),
	}, nil
}

func (v *Venue) SubmitMarketBuy(_ context.Context, req venue.OrderRequest) (venue.Fill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.takeFailure(OpBuy); err != nil {
		return venue.Fill{}, err
	}
	if !strings.EqualFold(req.Symbol, v.cfg.Symbol) {
		return venue.Fill{}, venue.Reject(OpBuy, "unknown symbol %s", req.Symbol)
	}
	if req.Lot <= 0 || !v.cfg.Rules.Valid(req.Lot) {
		return venue.Fill{}, venue.Reject(OpBuy, "invalid lot %.4f", req.Lot)
	}
	if v.price <= 0 {
		return venue.Fill{}, venue.Unavailable(OpBuy, errors.New("no price yet"))
	}
	q := v.quoteLocked()
	v.seq++
	v.orders++
	id := fmt.Sprintf("paper-%d", v.seq)
	v.positions = append(v.positions, basket.Position{
		ID:         id,
		Symbol:     v.cfg.Symbol,
		Volume:     req.Lot,
		EntryPrice: q.Ask,
		OpenTime:   q.Time,
	})
	return venue.Fill{
		OrderID:    req.ClientID,
		PositionID: id,
		Price:      q.Ask,
		Lot:        req.Lot,
		Time:       q.Time,
	}, nil
}

func (v *Venue) SubmitMarketClose(_ context.Context, req venue.CloseRequest) (venue.CloseResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.takeFailure(OpClose); err != nil {
		return venue.CloseResult{}, err
	}
	idx := -1
	for i, p := range v.positions {
		if p.ID == req.PositionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return venue.CloseResult{}, venue.Reject(OpClose, "unknown position %s", req.PositionID)
	}
	if v.price <= 0 {
		return venue.CloseResult{}, venue.Unavailable(OpClose, errors.New("no price yet"))
	}
	p := v.positions[idx]
	profit := v.profitLocked(p)
	v.balance += profit
	v.positions = append(v.positions[:idx], v.positions[idx+1:]...)
	return venue.CloseResult{
		PositionID: p.ID,
		Price:      v.price,
		Lot:        p.Volume,
		Profit:     profit,
		Time:       v.now(),
	}, nil
}

func (v *Venue) NormalizeLot(_ context.Context, _ string, raw float64) (float64, error) {
	return v.cfg.Rules.Normalize(raw), nil
}
