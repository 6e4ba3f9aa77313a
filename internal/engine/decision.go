package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gridbot/internal/basket"
	"gridbot/internal/filter"
	"gridbot/internal/indicator"
	"gridbot/internal/ladder"
	"gridbot/internal/metrics"
	"gridbot/internal/notifier"
	"gridbot/internal/risk"
	"gridbot/internal/sizing"
	"gridbot/internal/store"
	"gridbot/internal/venue"
)

// DecisionTick 执行一轮入场判断。暂时性的数据或执行失败只跳过本轮。
func (e *Engine) DecisionTick(ctx context.Context) (err error) {
	outcome := metrics.OutcomeOK
	now := e.now()
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveTick(metrics.LoopDecision, outcome)
		e.updateStatus(func(s *Status) {
			s.LastDecision = now
			if err != nil {
				s.LastError = err.Error()
			}
		})
	}()

	vcfg := e.cfg.Venue
	window, err := e.venue.FetchCandles(ctx, e.symbol, vcfg.Timeframe, vcfg.CandleCount)
	if err != nil {
		return e.skip(&outcome, "candles", err)
	}
	positions, err := e.venue.FetchOpenPositions(ctx, e.symbol)
	if err != nil {
		return e.skip(&outcome, "positions", err)
	}
	acct, err := e.venue.FetchAccountState(ctx)
	if err != nil {
		return e.skip(&outcome, "account", err)
	}
	quote, err := e.venue.FetchQuote(ctx, e.symbol)
	if err != nil {
		return e.skip(&outcome, "quote", err)
	}

	e.tape.Record(now, quote.Bid)
	agg := basket.Summarize(positions)
	metrics.SetEquity(acct.Equity)
	e.updateStatus(func(s *Status) {
		s.Basket = agg
		s.Equity = acct.Equity
	})

	decision := e.governor.Evaluate(now, risk.Account{Equity: acct.Equity, Balance: acct.Balance}, agg)
	e.observeRisk(ctx, now, decision, acct.Equity, agg)
	if decision.Action.Liquidates() {
		e.log.Warn("risk liquidation", "kind", decision.Kind, "action", decision.Action.String(), "reason", decision.Reason)
		if _, lerr := e.liquidator.CloseAll(ctx, decision.Kind); lerr != nil {
			return fmt.Errorf("liquidate (%s): %w", decision.Kind, lerr)
		}
		outcome = metrics.OutcomeSkip
		return nil
	}

	if err := e.alignLadder(ctx, agg); err != nil {
		return err
	}
	in := &filter.Input{
		Now:      now,
		Location: e.governor.Limits().Location,
		Window:   window,
		Ticks:    e.tape.Since(now.Add(-e.tapeWindow)),
		Basket:   agg,
		Quote:    quote,
		Risk:     decision,
		Daily:    e.governor.View(now),
		Ladder:   e.keeper.Snapshot(),
	}
	snap, dataErr := indicator.Compute(window, e.settings)
	in.Snapshot = snap
	in.DataErr = dataErr
	if dataErr == nil {
		in.Regime = e.classify(e.decisionRegime, snap)
		metrics.SetRegime(string(in.Regime.Regime), string(in.Regime.Strength))
		e.updateStatus(func(s *Status) { s.Regime = in.Regime.String() })

		policy := e.currentPolicy()
		if policy == nil {
			return errors.New("sizing policy not ready, Recover has not run")
		}
		plan, perr := policy.Plan(sizing.Request{
			Step:       in.Ladder.Step,
			ATR:        snap.ATR,
			ATRAverage: snap.ATRAverage,
			Equity:     acct.Equity,
			Regime:     in.Regime,
		})
		if perr != nil {
			return fmt.Errorf("sizing plan: %w", perr)
		}
		in.Plan = plan
		in.LotKey = sizing.LotKey(plan.Lot)
		if e.pipeline.Name() == filter.VariantSession {
			in.HTF = e.higherTimeframe(ctx)
		}
	}

	verdict := e.pipeline.Evaluate(in)
	e.setVerdict(verdict)
	if !verdict.Allowed() {
		denials := verdict.Denials()
		names := make([]string, 0, len(denials))
		for _, d := range denials {
			names = append(names, d.Gate)
		}
		metrics.ObserveDenials(names)
		e.log.Debug("entry denied", "step", in.Ladder.Step, "regime", in.Regime.String(), "verdict", verdict.String())
		outcome = metrics.OutcomeSkip
		return nil
	}

	if e.cfg.Engine.DryRun {
		e.log.Info("dry-run entry", "step", in.Ladder.Step, "plan", in.Plan.String(), "price", in.Price())
		outcome = metrics.OutcomeSkip
		return nil
	}
	if err := e.enter(ctx, in, verdict); err != nil {
		if errors.Is(err, ladder.ErrBusy) || errors.Is(err, ladder.ErrExhausted) || venue.IsTransient(err) {
			return e.skip(&outcome, "entry", err)
		}
		return err
	}
	return nil
}

// enter 预留档位、下单，成交后提交，否则回滚。
func (e *Engine) enter(ctx context.Context, in *filter.Input, verdict filter.Verdict) error {
	res, err := e.keeper.Reserve(ctx, in.LotKey)
	if err != nil {
		return fmt.Errorf("reserve step: %w", err)
	}
	rollback := func(cause error) error {
		if rerr := e.keeper.Rollback(ctx, res); rerr != nil && !errors.Is(rerr, ladder.ErrStaleReservation) {
			e.log.Error("rollback failed", "token", res.Token, "err", rerr)
		}
		return cause
	}

	lot, err := e.venue.NormalizeLot(ctx, e.symbol, in.Plan.Lot)
	if err != nil {
		return rollback(fmt.Errorf("normalize lot: %w", err))
	}
	if !e.lotRules().Valid(lot) {
		return rollback(venue.Reject("normalize", "lot %.4f outside venue rules", lot))
	}
	fill, err := e.venue.SubmitMarketBuy(ctx, venue.OrderRequest{
		Symbol:    e.symbol,
		Lot:       lot,
		Deviation: e.cfg.Venue.Deviation,
		ClientID:  "grid-" + uuid.NewString()[:18],
		Comment:   fmt.Sprintf("grid step %d", res.Step+1),
	})
	if err != nil {
		result := metrics.ResultFailed
		if errors.Is(err, venue.ErrRejected) {
			result = metrics.ResultRejected
		}
		metrics.ObserveOrder(metrics.ActionBuy, result)
		return rollback(fmt.Errorf("submit buy: %w", err))
	}
	metrics.ObserveOrder(metrics.ActionBuy, metrics.ResultFilled)

	ts := fill.Time
	if ts.IsZero() {
		ts = in.Now
	}
	if err := e.keeper.Commit(ctx, res, ladder.Fill{
		Price:      fill.Price,
		Lot:        fill.Lot,
		Time:       ts,
		CandleTime: in.Snapshot.CandleTime,
	}); err != nil {
		// 下单期间梯子被重置，预留已失效：按交易端实际持仓重建，避免新仓位落在第 0 档。
		e.log.Warn("commit after fill failed", "position", fill.PositionID, "err", err)
		if errors.Is(err, ladder.ErrStaleReservation) {
			if rerr := e.resyncLadder(ctx); rerr != nil {
				e.log.Warn("ladder resync after fill failed", "err", rerr)
			}
		}
	}
	e.governor.RecordTrade(in.Now)

	step := res.Step + 1
	e.log.Info("grid entry",
		"step", step, "lot", fill.Lot, "price", fill.Price, "position", fill.PositionID,
		"regime", in.Regime.String(), "min_distance", in.Plan.MinDistance)
	if serr := e.store.RecordEntry(ctx, store.EntryRecord{
		Time:       ts,
		Symbol:     e.symbol,
		PositionID: fill.PositionID,
		OrderID:    fill.OrderID,
		Step:       step,
		Lot:        fill.Lot,
		Price:      fill.Price,
		Regime:     in.Regime.String(),
		Verdict:    verdict,
	}); serr != nil {
		e.log.Warn("store entry failed", "err", serr)
	}
	metrics.SetBasket(e.keeper.Snapshot().Step, in.Basket.FloatingPnL)
	return nil
}

// alignLadder 让梯子跟上交易端持仓：篮子已空则回到第 0 档，档位落后则按持仓数重建。
// 有未决预留时不动，由预留的提交或回滚收尾。
func (e *Engine) alignLadder(ctx context.Context, agg basket.Aggregate) error {
	st := e.keeper.Snapshot()
	if st.Pending != nil {
		return nil
	}
	if agg.Empty() {
		if st.Step > 0 {
			e.log.Info("basket empty with ladder at step, resetting", "step", st.Step)
			e.finishEmpty(ctx, "basket empty")
		}
		return nil
	}
	want := min(agg.Count, st.MaxSteps)
	if st.Step >= want {
		return nil
	}
	if err := e.keeper.Reconstruct(ctx, agg.Count, agg.LastEntryTime, agg.LastEntryPrice); err != nil {
		return fmt.Errorf("reconstruct ladder: %w", err)
	}
	e.log.Warn("ladder behind open positions, reconstructed", "step", st.Step, "positions", agg.Count)
	return nil
}

// resyncLadder 重新拉取持仓后对齐梯子。
func (e *Engine) resyncLadder(ctx context.Context) error {
	positions, err := e.venue.FetchOpenPositions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	agg := basket.Summarize(positions)
	e.basket.Observe(agg)
	return e.alignLadder(ctx, agg)
}

// higherTimeframe 读取高周期 EMA；失败时返回 nil，由 htf_bias 闸门拒绝。
func (e *Engine) higherTimeframe(ctx context.Context) *filter.HTFView {
	s := e.cfg.Filters.Session
	w, err := e.venue.FetchCandles(ctx, e.symbol, s.HTFTimeframe, s.HTFCandleCount)
	if err != nil {
		e.log.Debug("htf candles unavailable", "timeframe", s.HTFTimeframe, "err", err)
		return nil
	}
	closes := w.Closes()
	if s.HTFEMAFast <= 0 || s.HTFEMASlow <= 0 || len(closes) < s.HTFEMASlow {
		return nil
	}
	fast := indicator.EMA(closes, s.HTFEMAFast)
	slow := indicator.EMA(closes, s.HTFEMASlow)
	return &filter.HTFView{
		Timeframe: s.HTFTimeframe,
		EMAFast:   fast[len(fast)-1],
		EMASlow:   slow[len(slow)-1],
	}
}

// observeRisk 只在风控结论发生变化时落库与推送。
func (e *Engine) observeRisk(ctx context.Context, now time.Time, d risk.Decision, equity float64, agg basket.Aggregate) {
	key := d.Action.String() + ":" + d.Kind
	e.mu.Lock()
	changed := key != e.lastRisk
	e.lastRisk = key
	e.mu.Unlock()
	if !changed || d.Action == risk.None {
		return
	}
	metrics.ObserveRiskHalt(d.Kind)
	e.log.Warn("risk state", "kind", d.Kind, "action", d.Action.String(), "reason", d.Reason)
	if err := e.store.RecordRiskEvent(ctx, store.RiskEventRecord{
		Time:        now,
		Kind:        d.Kind,
		Action:      d.Action.String(),
		Reason:      d.Reason,
		Equity:      equity,
		FloatingPnL: agg.FloatingPnL,
	}); err != nil {
		e.log.Warn("store risk event failed", "err", err)
	}
	if d.Action.Liquidates() || d.Kind == risk.KindDailyLoss {
		notifier.Send(ctx, e.notifier, notifier.RiskMessage(e.symbol, d.Kind, d.Action.String(), d.Reason, equity, agg.FloatingPnL, now))
	}
}

func (e *Engine) skip(outcome *string, what string, err error) error {
	*outcome = metrics.OutcomeSkip
	e.log.Warn("tick skipped", "stage", what, "err", err)
	return nil
}
