package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gridbot/internal/config"
)

type StartupSummary struct {
	Symbol    string
	Venue     string
	Timeframe string
	Candles   int
	DryRun    bool

	Policy string
	Ladder []float64

	Variant string
	Gates   []string

	Risk   RiskSummary
	Basket BasketSummary

	DecisionEvery string
	WatcherEvery  string
	HTTPAddr      string
	StorePath     string
	Telegram      bool
}

type RiskSummary struct {
	MaxSteps      int
	FloatingKill  float64
	EquityStopPct float64
	DailyLossPct  float64
	MaxTrades     int
	Timezone      string
}

type BasketSummary struct {
	TPMode         string
	BaseProfit     float64
	MinGainPct     float64
	StopMultiplier float64
}

func newStartupSummary(cfg *config.Config, venueName string, gates []string) *StartupSummary {
	s := &StartupSummary{
		Symbol:        cfg.Venue.Symbol,
		Venue:         venueName,
		Timeframe:     cfg.Venue.Timeframe,
		Candles:       cfg.Venue.CandleCount,
		DryRun:        cfg.Engine.DryRun,
		Policy:        cfg.Sizing.Policy,
		Variant:       cfg.Filters.Variant,
		Gates:         gates,
		DecisionEvery: cfg.Engine.DecisionInterval().String(),
		WatcherEvery:  cfg.Engine.WatcherInterval().String(),
		HTTPAddr:      cfg.App.HTTPAddr,
		Telegram:      cfg.Notify.Telegram.Enabled,
		Risk: RiskSummary{
			MaxSteps:      cfg.Risk.MaxSteps,
			FloatingKill:  cfg.Risk.FloatingKill,
			EquityStopPct: cfg.Risk.EquityStopPct,
			DailyLossPct:  cfg.Risk.DailyLossPct,
			MaxTrades:     cfg.Risk.MaxTradesPerDay,
			Timezone:      cfg.Risk.Location().String(),
		},
		Basket: BasketSummary{
			TPMode:         cfg.Basket.TPMode,
			BaseProfit:     cfg.Basket.BaseProfit,
			MinGainPct:     cfg.Basket.MinGainPct,
			StopMultiplier: cfg.Basket.StopMultiplier,
		},
	}
	if cfg.Sizing.Policy == "fixed_ladder" {
		s.Ladder = cfg.Sizing.Ladder
	}
	if cfg.Store.Enabled {
		s.StorePath = cfg.Store.Path
	}
	return s
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[品种 (INSTRUMENT)]")
	fmt.Fprintf(w, "  交易品种: %s @ %s\n", s.Symbol, s.Venue)
	fmt.Fprintf(w, "  K线周期: %s (窗口 %d)\n", s.Timeframe, s.Candles)
	fmt.Fprintf(w, "  Dry-run: %v\n", s.DryRun)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[仓位策略 (SIZING)]")
	fmt.Fprintf(w, "  策略: %s\n", s.Policy)
	if len(s.Ladder) > 0 {
		fmt.Fprintf(w, "  阶梯: %s\n", formatFloats(s.Ladder))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[入场过滤 (FILTERS)]")
	fmt.Fprintf(w, "  变体: %s\n", s.Variant)
	fmt.Fprintf(w, "  闸门: %s\n", formatList(s.Gates))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[风控 (RISK)]")
	fmt.Fprintf(w, "  最大层数: %d\n", s.Risk.MaxSteps)
	fmt.Fprintf(w, "  浮亏熔断: %.2f\n", s.Risk.FloatingKill)
	fmt.Fprintf(w, "  权益止损: %.2f%%  日亏损: %.2f%%\n", s.Risk.EquityStopPct, s.Risk.DailyLossPct)
	fmt.Fprintf(w, "  日内次数: %d  时区: %s\n", s.Risk.MaxTrades, s.Risk.Timezone)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[篮子止盈 (BASKET)]")
	fmt.Fprintf(w, "  模式: %s  基础目标: %.2f\n", s.Basket.TPMode, s.Basket.BaseProfit)
	fmt.Fprintf(w, "  最小涨幅: %.3f%%  止损倍数: %.2f\n", s.Basket.MinGainPct, s.Basket.StopMultiplier)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[运行 (RUNTIME)]")
	fmt.Fprintf(w, "  决策循环: %s  监控循环: %s\n", s.DecisionEvery, s.WatcherEvery)
	fmt.Fprintf(w, "  状态服务: %s\n", orNone(s.HTTPAddr))
	fmt.Fprintf(w, "  存储: %s\n", orNone(s.StorePath))
	fmt.Fprintf(w, "  Telegram: %v\n", s.Telegram)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "(无)"
	}
	return strings.Join(items, ", ")
}

func formatFloats(vals []float64) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		parts = append(parts, fmt.Sprintf("%g", v))
	}
	return formatList(parts)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(disabled)"
	}
	return s
}
