// Package engine 运行决策循环与篮子监控循环，串联行情、风控、过滤器、仓位与执行。
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gridbot/internal/basket"
	"gridbot/internal/config"
	"gridbot/internal/filter"
	"gridbot/internal/indicator"
	"gridbot/internal/ladder"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/metrics"
	"gridbot/internal/notifier"
	"gridbot/internal/regime"
	"gridbot/internal/risk"
	"gridbot/internal/scheduler"
	"gridbot/internal/sizing"
	"gridbot/internal/store"
	"gridbot/internal/venue"
)

// Deps 为 Engine 的全部协作者；Sizing 为空时在 Recover 中按交易端下单规则构造。
type Deps struct {
	Config   *config.Config
	Venue    venue.Venue
	Keeper   *ladder.Keeper
	Governor *risk.Governor
	Pipeline *filter.Pipeline
	Sizing   sizing.Policy
	Basket   *basket.Manager
	Store    store.Store
	Notifier notifier.TextNotifier
}

type Engine struct {
	cfg        *config.Config
	venue      venue.Venue
	keeper     *ladder.Keeper
	governor   *risk.Governor
	pipeline   *filter.Pipeline
	basket     *basket.Manager
	store      store.Store
	notifier   notifier.TextNotifier
	liquidator *Liquidator
	log        *slog.Logger

	symbol     string
	settings   indicator.Settings
	thresholds regime.Thresholds
	// 两个循环各自持有滞回状态。
	decisionRegime *regime.Hysteresis
	watcherRegime  *regime.Hysteresis
	// tape 汇集两个循环拉到的 bid，用于急跌判定。
	tape       *market.Tape
	tapeWindow time.Duration

	now func() time.Time

	mu          sync.RWMutex
	policy      sizing.Policy
	rules       sizing.LotRules
	status      Status
	lastVerdict *filter.Verdict
	lastRisk    string
}

func New(deps Deps) (*Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	if deps.Venue == nil || deps.Keeper == nil || deps.Governor == nil || deps.Pipeline == nil || deps.Basket == nil {
		return nil, errors.New("engine: venue, keeper, governor, pipeline and basket are required")
	}
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	cfg := deps.Config
	e := &Engine{
		cfg:            cfg,
		venue:          deps.Venue,
		keeper:         deps.Keeper,
		governor:       deps.Governor,
		pipeline:       deps.Pipeline,
		basket:         deps.Basket,
		store:          deps.Store,
		notifier:       deps.Notifier,
		policy:         deps.Sizing,
		log:            logger.With("engine", "symbol", cfg.Venue.Symbol),
		symbol:         strings.ToUpper(strings.TrimSpace(cfg.Venue.Symbol)),
		settings:       indicator.FromConfig(cfg.Indicators),
		thresholds:     regime.ThresholdsFromConfig(cfg.Regime),
		decisionRegime: regime.NewHysteresis(cfg.Regime.HysteresisTicks),
		watcherRegime:  regime.NewHysteresis(cfg.Regime.HysteresisTicks),
		tapeWindow:     time.Duration(cfg.Filters.CollapseWindowSec * float64(time.Second)),
		now:            time.Now,
	}
	e.tape = market.NewTape(max(2*e.tapeWindow, 10*time.Second))
	e.liquidator = NewLiquidator(e)
	e.status = Status{Symbol: e.symbol, Venue: deps.Venue.Name(), DryRun: cfg.Engine.DryRun, Variant: deps.Pipeline.Name()}
	return e, nil
}

// SetClock 替换时间源，便于测试。
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Recover 在启动时执行：校验品种、加载下单规则、按现有持仓重建梯子。
// 任何一步失败都视为启动失败。
func (e *Engine) Recover(ctx context.Context) error {
	rules, err := e.venue.CheckSymbol(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("check symbol %s: %w", e.symbol, err)
	}
	e.mu.Lock()
	e.rules = rules
	if e.policy == nil {
		e.policy, err = sizing.New(e.cfg.Sizing, rules)
	}
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sizing policy: %w", err)
	}

	positions, err := e.venue.FetchOpenPositions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("fetch open positions: %w", err)
	}
	agg := basket.Summarize(positions)
	e.basket.Observe(agg)
	if err := e.keeper.Reconstruct(ctx, agg.Count, agg.LastEntryTime, agg.LastEntryPrice); err != nil {
		return fmt.Errorf("reconstruct ladder: %w", err)
	}
	snap := e.keeper.Snapshot()
	metrics.SetBasket(snap.Step, agg.FloatingPnL)
	e.log.Info("recovered",
		"rules_min", rules.Min, "rules_step", rules.Step, "rules_max", rules.Max,
		"positions", agg.Count, "volume", agg.TotalVolume, "step", snap.Step, "policy", e.policy.Name())
	return nil
}

// Run 启动两个循环，阻塞到 ctx 结束或任一循环返回非取消错误。
func (e *Engine) Run(ctx context.Context) error {
	if e.currentPolicy() == nil {
		return errors.New("engine: Recover must succeed before Run")
	}
	g, gctx := errgroup.WithContext(ctx)

	decision := scheduler.NewLoop(metrics.LoopDecision, e.cfg.Engine.DecisionInterval())
	watcher := scheduler.NewLoop(metrics.LoopWatcher, e.cfg.Engine.WatcherInterval())
	g.Go(func() error { return ignoreCanceled(decision.Run(gctx, e.DecisionTick)) })
	g.Go(func() error { return ignoreCanceled(watcher.Run(gctx, e.WatcherTick)) })

	e.log.Info("engine started",
		"decision_interval", e.cfg.Engine.DecisionInterval(),
		"watcher_interval", e.cfg.Engine.WatcherInterval(),
		"variant", e.pipeline.Name(), "dry_run", e.cfg.Engine.DryRun)
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (e *Engine) currentPolicy() sizing.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

func (e *Engine) lotRules() sizing.LotRules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

func (e *Engine) classify(h *regime.Hysteresis, snap indicator.Snapshot) regime.Classification {
	return h.Apply(regime.Classify(regime.InputsFrom(snap), e.thresholds))
}

// LastVerdict 返回最近一次过滤器判定。
func (e *Engine) LastVerdict() (filter.Verdict, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastVerdict == nil {
		return filter.Verdict{}, false
	}
	return *e.lastVerdict, true
}

func (e *Engine) setVerdict(v filter.Verdict) {
	e.mu.Lock()
	e.lastVerdict = &v
	e.mu.Unlock()
}
