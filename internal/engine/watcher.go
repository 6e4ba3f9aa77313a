package engine

import (
	"context"
	"fmt"

	"gridbot/internal/basket"
	"gridbot/internal/indicator"
	"gridbot/internal/metrics"
)

// WatcherTick 观察篮子：状态迁移、动态止盈止损，触发时整篮平仓。
func (e *Engine) WatcherTick(ctx context.Context) (err error) {
	outcome := metrics.OutcomeOK
	now := e.now()
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveTick(metrics.LoopWatcher, outcome)
		e.updateStatus(func(s *Status) {
			s.LastWatcher = now
			if err != nil {
				s.LastError = err.Error()
			}
		})
	}()

	positions, err := e.venue.FetchOpenPositions(ctx, e.symbol)
	if err != nil {
		return e.skip(&outcome, "positions", err)
	}
	agg := basket.Summarize(positions)
	switch e.basket.Observe(agg) {
	case basket.Emptied:
		// 仓位在外部被平掉（或上轮平仓已完成），下一篮从第一档开始。
		if rerr := e.keeper.Reset(ctx, "basket emptied"); rerr != nil {
			return fmt.Errorf("reset ladder: %w", rerr)
		}
		e.log.Info("basket emptied, ladder reset")
	case basket.Opened:
		e.log.Info("basket opened", "positions", agg.Count, "volume", agg.TotalVolume)
	}
	if !agg.Empty() {
		if aerr := e.alignLadder(ctx, agg); aerr != nil {
			return aerr
		}
	}
	metrics.SetBasket(e.keeper.Snapshot().Step, agg.FloatingPnL)
	e.updateStatus(func(s *Status) { s.Basket = agg })
	if agg.Empty() {
		outcome = metrics.OutcomeSkip
		return nil
	}

	vcfg := e.cfg.Venue
	window, err := e.venue.FetchCandles(ctx, e.symbol, vcfg.Timeframe, vcfg.CandleCount)
	if err != nil {
		return e.skip(&outcome, "candles", err)
	}
	snap, err := indicator.Compute(window, e.settings)
	if err != nil {
		return e.skip(&outcome, "indicators", err)
	}
	quote, err := e.venue.FetchQuote(ctx, e.symbol)
	if err != nil {
		return e.skip(&outcome, "quote", err)
	}
	e.tape.Record(now, quote.Bid)
	class := e.classify(e.watcherRegime, snap)
	exit := e.basket.Evaluate(agg, snap, class, quote.Bid)
	if !exit.Close {
		e.log.Debug("basket holding",
			"count", agg.Count, "floating", agg.FloatingPnL,
			"take_profit", exit.Targets.TakeProfit, "stop_loss", exit.Targets.StopLoss)
		return nil
	}

	e.log.Info("basket exit", "reason", exit.Reason, "detail", exit.Detail)
	if _, err := e.liquidator.CloseAll(ctx, exit.Reason); err != nil {
		return fmt.Errorf("liquidate (%s): %w", exit.Reason, err)
	}
	return nil
}
