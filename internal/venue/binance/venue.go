// Package binance 基于 go-binance SDK 实现 USDT 本位合约的执行端。
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"gridbot/internal/basket"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/pkg/symbol"
	"gridbot/internal/sizing"
	"gridbot/internal/venue"
)

const maxHistoryLimit = 1500

// Venue 只做多，使用单向持仓模式的市价单。
type Venue struct {
	cfg    Config
	client *futures.Client
	book   lotBook

	mu    sync.RWMutex
	rules map[string]sizing.LotRules
}

func New(cfg Config) *Venue {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Venue{
		cfg:    final,
		client: client,
		rules:  make(map[string]sizing.LotRules),
	}
}

func (v *Venue) Name() string { return "binance" }

func (v *Venue) CheckSymbol(ctx context.Context, symbol string) (sizing.LotRules, error) {
	symbol = exchangeSymbol(symbol)
	info, err := v.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return sizing.LotRules{}, wrap("exchange_info", err)
	}
	for i := range info.Symbols {
		sym := &info.Symbols[i]
		if !strings.EqualFold(sym.Symbol, symbol) {
			continue
		}
		if sym.Status != "TRADING" {
			return sizing.LotRules{}, fmt.Errorf("%w: %s status %s", venue.ErrTradingDisabled, symbol, sym.Status)
		}
		f := sym.LotSizeFilter()
		if f == nil {
			return sizing.LotRules{}, fmt.Errorf("%w: %s has no LOT_SIZE filter", venue.ErrUnknownSymbol, symbol)
		}
		rules := sizing.LotRules{
			Min:  parseFloat(f.MinQuantity),
			Step: parseFloat(f.StepSize),
			Max:  parseFloat(f.MaxQuantity),
		}
		v.mu.Lock()
		v.rules[symbol] = rules
		v.mu.Unlock()
		return rules, nil
	}
	return sizing.LotRules{}, fmt.Errorf("%w: %s", venue.ErrUnknownSymbol, symbol)
}

func (v *Venue) FetchCandles(ctx context.Context, symbol, timeframe string, count int) (market.Window, error) {
	if count <= 0 {
		count = 100
	}
	if count > maxHistoryLimit {
		count = maxHistoryLimit
	}
	interval := strings.ToLower(strings.TrimSpace(timeframe))
	kls, err := v.client.NewKlinesService().Symbol(exchangeSymbol(symbol)).Interval(interval).Limit(count).Do(ctx)
	if err != nil {
		return nil, wrap("klines", err)
	}
	out := make(market.Window, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return market.Sanitize(out), nil
}

func (v *Venue) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	sym := exchangeSymbol(symbol)
	res, err := v.client.NewListBookTickersService().Symbol(sym).Do(ctx)
	if err != nil {
		return market.Quote{}, wrap("book_ticker", err)
	}
	for _, bt := range res {
		if bt == nil || !strings.EqualFold(bt.Symbol, sym) {
			continue
		}
		bid := parseFloat(bt.BidPrice)
		ask := parseFloat(bt.AskPrice)
		return market.Quote{Symbol: sym, Bid: bid, Ask: ask, Last: (bid + ask) / 2, Time: time.Now()}, nil
	}
	return market.Quote{}, venue.Unavailable("book_ticker", fmt.Errorf("no ticker for %s", sym))
}

func (v *Venue) FetchOpenPositions(ctx context.Context, symbol string) ([]basket.Position, error) {
	sym := exchangeSymbol(symbol)
	risks, err := v.client.NewGetPositionRiskService().Symbol(sym).Do(ctx)
	if err != nil {
		return nil, wrap("position_risk", err)
	}
	var amount, entry, mark float64
	for _, pr := range risks {
		if pr == nil || !strings.EqualFold(pr.Symbol, sym) {
			continue
		}
		amt := parseFloat(pr.PositionAmt)
		if amt <= 0 {
			continue
		}
		amount += amt
		entry = parseFloat(pr.EntryPrice)
		mark = parseFloat(pr.MarkPrice)
	}
	return v.book.reconcile(sym, amount, entry, mark, time.Now(), v.lotRules(sym).Step), nil
}

func (v *Venue) FetchAccountState(ctx context.Context) (venue.AccountState, error) {
	acct, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return venue.AccountState{}, wrap("account", err)
	}
	return venue.AccountState{
		Equity:   parseFloat(acct.TotalMarginBalance),
		Balance:  parseFloat(acct.TotalWalletBalance),
		Margin:   parseFloat(acct.TotalPositionInitialMargin),
		Currency: "USDT",
		Time:     time.Now(),
	}, nil
}

func (v *Venue) SubmitMarketBuy(ctx context.Context, req venue.OrderRequest) (venue.Fill, error) {
	sym := exchangeSymbol(req.Symbol)
	svc := v.client.NewCreateOrderService().
		Symbol(sym).
		Side(futures.SideTypeBuy).
		Type(futures.OrderTypeMarket).
		Quantity(v.formatQty(sym, req.Lot)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return venue.Fill{}, wrap("buy", err)
	}
	filled := parseFloat(res.ExecutedQuantity)
	if filled <= 0 {
		return venue.Fill{}, venue.Reject("buy", "order %d not filled (status %s)", res.OrderID, res.Status)
	}
	ts := time.UnixMilli(res.UpdateTime)
	pos := v.book.add(basket.Position{
		Symbol:     sym,
		Volume:     filled,
		EntryPrice: parseFloat(res.AvgPrice),
		OpenTime:   ts,
	})
	return venue.Fill{
		OrderID:    strconv.FormatInt(res.OrderID, 10),
		PositionID: pos.ID,
		Price:      pos.EntryPrice,
		Lot:        filled,
		Time:       ts,
	}, nil
}

func (v *Venue) SubmitMarketClose(ctx context.Context, req venue.CloseRequest) (venue.CloseResult, error) {
	sym := exchangeSymbol(req.Symbol)
	lot := req.Lot
	if lot <= 0 {
		return venue.CloseResult{}, venue.Reject("close", "position %s has no volume", req.PositionID)
	}
	svc := v.client.NewCreateOrderService().
		Symbol(sym).
		Side(futures.SideTypeSell).
		Type(futures.OrderTypeMarket).
		ReduceOnly(true).
		Quantity(v.formatQty(sym, lot)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return venue.CloseResult{}, wrap("close", err)
	}
	price := parseFloat(res.AvgPrice)
	out := venue.CloseResult{
		PositionID: req.PositionID,
		Price:      price,
		Lot:        parseFloat(res.ExecutedQuantity),
		Time:       time.UnixMilli(res.UpdateTime),
	}
	if p, ok := v.book.remove(req.PositionID); ok {
		out.Profit = (price - p.EntryPrice) * out.Lot
	} else {
		logger.Warnf("[binance] closed %s not found in lot book", req.PositionID)
	}
	return out, nil
}

func (v *Venue) NormalizeLot(_ context.Context, symbol string, raw float64) (float64, error) {
	rules := v.lotRules(exchangeSymbol(symbol))
	if rules.Step <= 0 {
		return 0, fmt.Errorf("%w: lot rules for %s not loaded", venue.ErrUnknownSymbol, symbol)
	}
	return rules.Normalize(raw), nil
}

func (v *Venue) lotRules(sym string) sizing.LotRules {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rules[sym]
}

func (v *Venue) formatQty(sym string, lot float64) string {
	rules := v.lotRules(sym)
	if rules.Step > 0 {
		lot = rules.Normalize(lot)
	}
	return sizing.LotKey(lot)
}

// wrap 将 API 业务错误映射为拒单，其余视为暂时不可用。
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return venue.Reject(op, "code=%d %s", apiErr.Code, apiErr.Message)
	}
	return venue.Unavailable(op, err)
}

func exchangeSymbol(s string) string {
	return symbol.ToExchange(s)
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
