package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"gridbot/internal/basket"
	"gridbot/internal/metrics"
	"gridbot/internal/notifier"
	"gridbot/internal/store"
	"gridbot/internal/venue"
)

// CloseResult 汇总一次整篮平仓。
type CloseResult struct {
	Reason string  `json:"reason"`
	Closed int     `json:"closed"`
	Failed int     `json:"failed"`
	Volume float64 `json:"volume"`
	PnL    float64 `json:"pnl"`
}

// Liquidator 为两个循环共享的整篮平仓入口，同一时刻只有一次平仓在执行，
// 并发调用者共享同一结果。
type Liquidator struct {
	e     *Engine
	group singleflight.Group
}

func NewLiquidator(e *Engine) *Liquidator {
	return &Liquidator{e: e}
}

// CloseAll 平掉全部持仓。全部成功时重置梯子并将篮子置为 EMPTY；
// 部分失败时返回错误，剩余仓位留给下一轮重试。
func (l *Liquidator) CloseAll(ctx context.Context, reason string) (CloseResult, error) {
	v, err, shared := l.group.Do("close_all", func() (any, error) {
		return l.closeAll(ctx, reason)
	})
	if shared {
		l.e.log.Debug("joined in-flight liquidation", "reason", reason)
	}
	res, _ := v.(CloseResult)
	return res, err
}

func (l *Liquidator) closeAll(ctx context.Context, reason string) (CloseResult, error) {
	e := l.e
	res := CloseResult{Reason: reason}
	positions, err := e.venue.FetchOpenPositions(ctx, e.symbol)
	if err != nil {
		return res, fmt.Errorf("fetch positions: %w", err)
	}
	var errs []error
	for _, p := range basket.SortByOpenTime(positions) {
		if p.Volume <= 0 {
			continue
		}
		out, cerr := e.venue.SubmitMarketClose(ctx, closeRequest(e.symbol, p, reason))
		if cerr != nil {
			res.Failed++
			metrics.ObserveOrder(metrics.ActionClose, metrics.ResultFailed)
			errs = append(errs, fmt.Errorf("close %s: %w", p.ID, cerr))
			continue
		}
		metrics.ObserveOrder(metrics.ActionClose, metrics.ResultFilled)
		res.Closed++
		res.Volume += out.Lot
		res.PnL += out.Profit
	}
	if res.Closed == 0 && res.Failed == 0 {
		e.finishEmpty(ctx, reason)
		return res, nil
	}

	now := e.now()
	metrics.ObserveBasketClose(reason)
	e.log.Info("basket liquidated", "reason", reason, "closed", res.Closed, "failed", res.Failed, "volume", res.Volume, "pnl", res.PnL)
	if serr := e.store.RecordClose(ctx, store.CloseRecord{
		Time:   now,
		Symbol: e.symbol,
		Reason: reason,
		PnL:    res.PnL,
		Count:  res.Closed,
		Volume: res.Volume,
		Failed: res.Failed,
	}); serr != nil {
		e.log.Warn("store close failed", "err", serr)
	}
	notifier.Send(ctx, e.notifier, notifier.CloseMessage(e.symbol, reason, res.Closed, res.Volume, res.PnL, res.Failed, now))

	if res.Failed > 0 {
		return res, errors.Join(errs...)
	}
	e.finishEmpty(ctx, reason)
	return res, nil
}

func (e *Engine) finishEmpty(ctx context.Context, reason string) {
	if err := e.keeper.Reset(ctx, reason); err != nil {
		e.log.Error("ladder reset failed", "reason", reason, "err", err)
	}
	e.basket.MarkEmpty()
	metrics.SetBasket(0, 0)
	e.updateStatus(func(s *Status) { s.Basket = basket.Aggregate{} })
}

func closeRequest(symbol string, p basket.Position, reason string) venue.CloseRequest {
	return venue.CloseRequest{
		Symbol:     symbol,
		PositionID: p.ID,
		Lot:        p.Volume,
		ClientID:   "close-" + uuid.NewString()[:18],
		Reason:     reason,
	}
}
