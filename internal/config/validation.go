package config

import (
	"fmt"
	"sort"
	"strings"
)

// validate 对配置进行基础校验，失败即视为启动期致命错误。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Venue.validate(); err != nil {
		return err
	}
	if err := c.Indicators.validate(); err != nil {
		return err
	}
	if err := c.Regime.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Filters.validate(c.Risk.MaxSteps); err != nil {
		return err
	}
	if err := c.Sizing.validate(c.Risk.MaxSteps); err != nil {
		return err
	}
	if err := c.Basket.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format only supports text/json, got %q", a.LogFormat)
	}
	return nil
}

func (v VenueConfig) validate() error {
	switch v.Kind {
	case "paper":
		switch v.PaperFeed {
		case "synthetic", "binance":
		default:
			return fmt.Errorf("venue.paper_feed only supports synthetic/binance, got %q", v.PaperFeed)
		}
	case "binance":
		if strings.TrimSpace(v.APIKey) == "" || strings.TrimSpace(v.APISecret) == "" {
			return fmt.Errorf("venue.kind=binance requires api_key and api_secret")
		}
	default:
		return fmt.Errorf("venue.kind only supports paper/binance, got %q", v.Kind)
	}
	if v.Symbol == "" {
		return fmt.Errorf("venue.symbol cannot be empty")
	}
	if v.CandleCount <= 0 {
		return fmt.Errorf("venue.candle_count must be > 0")
	}
	if v.MinLot <= 0 || v.LotStep <= 0 {
		return fmt.Errorf("venue.min_lot and venue.lot_step must be > 0")
	}
	if v.MaxLot < v.MinLot {
		return fmt.Errorf("venue.max_lot (%.4f) must be >= venue.min_lot (%.4f)", v.MaxLot, v.MinLot)
	}
	if v.PointValue <= 0 {
		return fmt.Errorf("venue.point_value must be > 0")
	}
	if v.RateBurst <= 0 || v.RatePerSecond <= 0 {
		return fmt.Errorf("venue.rate_per_second and venue.rate_burst must be > 0")
	}
	return nil
}

func (i IndicatorConfig) validate() error {
	switch i.Smoothing {
	case "wilder", "sma":
	default:
		return fmt.Errorf("indicators.smoothing only supports wilder/sma, got %q", i.Smoothing)
	}
	if i.ChopPeriod < 2 {
		return fmt.Errorf("indicators.chop_period must be >= 2")
	}
	if i.EMAFast >= i.EMASlow {
		return fmt.Errorf("indicators.ema_fast (%d) must be < ema_slow (%d)", i.EMAFast, i.EMASlow)
	}
	return nil
}

func (r RegimeConfig) validate() error {
	if r.TrendADX > r.StrongTrendADX {
		return fmt.Errorf("regime.trend_adx (%.2f) must be <= strong_trend_adx (%.2f)", r.TrendADX, r.StrongTrendADX)
	}
	if r.HysteresisTicks < 0 {
		return fmt.Errorf("regime.hysteresis_ticks must be >= 0")
	}
	return nil
}

func (f FilterConfig) validate(maxSteps int) error {
	switch f.Variant {
	case "standard", "session":
	default:
		return fmt.Errorf("filters.variant only supports standard/session, got %q", f.Variant)
	}
	if f.MinATR > f.MaxATR {
		return fmt.Errorf("filters.min_atr (%.4f) must be <= max_atr (%.4f)", f.MinATR, f.MaxATR)
	}
	if f.HeavySellMultiplier < 0 {
		return fmt.Errorf("filters.heavy_sell_multiplier must be >= 0")
	}
	if f.CollapseWindowSec <= 0 || f.CollapseMinSamples < 2 {
		return fmt.Errorf("filters.collapse_window_seconds must be > 0 and collapse_min_samples >= 2")
	}
	for i, c := range f.SizeCooldowns {
		if c.Lot <= 0 || c.Seconds < 0 {
			return fmt.Errorf("filters.size_cooldowns[%d] needs lot > 0 and seconds >= 0", i)
		}
	}
	if f.DepthTrendStep > f.DepthVolumeStep || f.DepthVolumeStep > f.DepthCollapseStep {
		return fmt.Errorf("filters depth steps must satisfy trend <= volume <= collapse")
	}
	if f.DepthCollapseStep >= maxSteps {
		return fmt.Errorf("filters.depth_collapse_step (%d) must be < risk.max_steps (%d)", f.DepthCollapseStep, maxSteps)
	}
	for _, h := range f.Session.DeadHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("filters.session.dead_hours contains invalid hour %d", h)
		}
	}
	if f.Session.RSIMin >= f.Session.RSIMax {
		return fmt.Errorf("filters.session.rsi_min must be < rsi_max")
	}
	return nil
}

func (s SizingConfig) validate(maxSteps int) error {
	switch s.Policy {
	case "fixed_ladder":
		if len(s.Ladder) < maxSteps {
			return fmt.Errorf("sizing.ladder has %d rungs, risk.max_steps=%d requires at least as many", len(s.Ladder), maxSteps)
		}
		for i := 1; i < len(s.Ladder); i++ {
			if s.Ladder[i] < s.Ladder[i-1] {
				return fmt.Errorf("sizing.ladder must be non-decreasing (rung %d)", i)
			}
		}
		for i, lot := range s.Ladder {
			if lot <= 0 {
				return fmt.Errorf("sizing.ladder[%d] must be > 0", i)
			}
		}
	case "vol_martingale":
		if s.SpacingMin > s.SpacingMax {
			return fmt.Errorf("sizing.spacing_min must be <= spacing_max")
		}
	default:
		return fmt.Errorf("sizing.policy only supports fixed_ladder/vol_martingale, got %q", s.Policy)
	}
	return nil
}

func (b BasketConfig) validate() error {
	switch b.TPMode {
	case "profit":
	case "points":
		if len(b.Tiers) == 0 {
			return fmt.Errorf("basket.tiers required when tp_mode=points")
		}
		tiers := append([]BasketTier(nil), b.Tiers...)
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].MaxCount < tiers[j].MaxCount })
		for i := 1; i < len(tiers); i++ {
			if tiers[i].MaxCount == tiers[i-1].MaxCount {
				return fmt.Errorf("basket.tiers has duplicate max_count %d", tiers[i].MaxCount)
			}
		}
	default:
		return fmt.Errorf("basket.tp_mode only supports profit/points, got %q", b.TPMode)
	}
	seen := make(map[int]bool, len(b.CountTiers))
	for _, t := range b.CountTiers {
		if t.MaxCount <= 0 || t.Multiplier <= 0 {
			return fmt.Errorf("basket.count_tiers entries need max_count > 0 and multiplier > 0")
		}
		if seen[t.MaxCount] {
			return fmt.Errorf("basket.count_tiers has duplicate max_count %d", t.MaxCount)
		}
		seen[t.MaxCount] = true
	}
	if b.ATRScaleMin > b.ATRScaleMax {
		return fmt.Errorf("basket.atr_scale_min must be <= atr_scale_max")
	}
	return nil
}

func (r RiskConfig) validate() error {
	if r.FloatingKill >= 0 {
		return fmt.Errorf("risk.floating_kill must be negative, got %.2f", r.FloatingKill)
	}
	if r.EquityStopPct >= 100 || r.DailyLossPct >= 100 {
		return fmt.Errorf("risk percentages must be < 100")
	}
	if r.MaxSteps <= 0 {
		return fmt.Errorf("risk.max_steps must be > 0")
	}
	return nil
}

func (e EngineConfig) validate() error {
	if e.DecisionIntervalMs < 50 || e.WatcherIntervalMs < 50 {
		return fmt.Errorf("engine intervals must be >= 50ms")
	}
	return nil
}

func (n NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram enabled but bot_token/chat_id is missing")
	}
	return nil
}
