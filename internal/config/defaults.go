package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppLogFormat = "text"
	defaultAppHTTPAddr  = ":9991"
	defaultAppLogPath   = "data/logs/gridbot.log"

	defaultVenueKind        = "paper"
	defaultVenueSymbol      = "XAUUSD"
	defaultVenueTimeframe   = "1m"
	defaultVenueCandles     = 200
	defaultVenueMinLot      = 0.01
	defaultVenueLotStep     = 0.01
	defaultVenueMaxLot      = 10
	defaultVenuePointValue  = 1
	defaultVenueDeviation   = 20
	defaultVenueREST        = "https://fapi.binance.com"
	defaultVenueTimeout     = 10
	defaultVenueRate        = 5
	defaultVenueBurst       = 5
	defaultBreakerFailures  = 5
	defaultBreakerCooldown  = 30
	defaultPaperBalance     = 10000
	defaultPaperSpread      = 0.2
	defaultPaperFeed        = "synthetic"
	defaultIndicatorSmooth  = "wilder"
	defaultATRPeriod        = 14
	defaultATRAveragePeriod = 50
	defaultADXPeriod        = 14
	defaultChopPeriod       = 14
	defaultRSIPeriod        = 14
	defaultEMAFast          = 3
	defaultEMASlow          = 5
	defaultBBPeriod         = 20
	defaultBBDeviation      = 2.0
	defaultSwingLookback    = 20
	defaultVolumeMAPeriod   = 20

	defaultRegimeMaxVolatility = 3.0
	defaultRegimeChop          = 61.8
	defaultRegimeStrongADX     = 35
	defaultRegimeTrendADX      = 25
	defaultRegimeHysteresis    = 1

	defaultFilterVariant        = "standard"
	defaultFilterMaxSpread      = 0.8
	defaultFilterCooldown       = 3
	defaultFilterSizeCooldown   = 60
	defaultFilterMinATR         = 0.3
	defaultFilterMaxATR         = 3.0
	defaultFilterMinVolume      = 50
	defaultFilterVolumeRatio    = 0.6
	defaultFilterStructure      = 1.5
	defaultFilterBodyRatio      = 0.25
	defaultFilterDepthTrend     = 3
	defaultFilterDepthVolume    = 6
	defaultFilterHeavySell      = 1.8
	defaultFilterCollapseWindow = 3.0
	defaultFilterCollapseTicks  = 5
	defaultFilterCollapseRate   = 2.5 / defaultFilterCollapseWindow
	defaultSessionMaxTrades     = 40
	defaultSessionHTF           = "15m"
	defaultSessionHTFCandles    = 100
	defaultSessionHTFEMAFast    = 20
	defaultSessionHTFEMASlow    = 50
	defaultSessionRSIMin        = 35
	defaultSessionRSIMax        = 70
	defaultSessionMinADX        = 20
	defaultSessionMinBBWidth    = 0.001
	defaultSizingPolicy         = "fixed_ladder"
	defaultSizingSpacingFloor   = 0.6
	defaultSizingBaseLot        = 0.01
	defaultSizingEarlyGrowth    = 2.0
	defaultSizingLateGrowth     = 1.4
	defaultSizingRiskConstant   = 100
	defaultSizingMaxRiskPct     = 2.0
	defaultSizingSpacingBase    = 1.5
	defaultSizingSpacingStep    = 0.5
	defaultSizingSpacingMin     = 1.0
	defaultSizingSpacingMax     = 6.0
	defaultBasketTPMode         = "profit"
	defaultBasketBaseProfit     = 1.0
	defaultBasketMinTarget      = 0.5
	defaultBasketCountFloor     = 0.6
	defaultBasketATRScaleMin    = 0.5
	defaultBasketATRScaleMax    = 2.0
	defaultBasketMinGainPct     = 0.05
	defaultBasketStopMultiplier = 2.0
	defaultRiskFloatingKill     = -70
	defaultRiskEquityStopPct    = 20
	defaultRiskEquityPause      = 30
	defaultRiskDailyLossPct     = 5
	defaultRiskMaxTrades        = 50
	defaultRiskMaxSteps         = 9
	defaultDecisionIntervalMs   = 1000
	defaultWatcherIntervalMs    = 500
	defaultStorePath            = "data/gridbot.db"
)

var (
	defaultSessionDeadHours = []int{22, 23, 0}
	defaultSizingLadder     = []float64{0.01, 0.01, 0.01, 0.02, 0.02, 0.02, 0.03, 0.03, 0.04}
	defaultSpacingCoeffs    = map[string]float64{
		"trending": 0.20,
		"ranging":  0.15,
		"volatile": 0.25,
	}
	defaultFloorMultipliers = map[string]float64{
		"volatile": 1.5,
	}
	defaultSizeCooldowns = []SizeCooldown{
		{Lot: 0.01, Seconds: 60},
		{Lot: 0.02, Seconds: 120},
		{Lot: 0.03, Seconds: 180},
		{Lot: 0.04, Seconds: 240},
	}
	defaultRegimeMultipliers = map[string]float64{
		"trending_up/strong": 1.3,
		"trending_up":        1.1,
		"ranging":            0.9,
		"volatile":           0.8,
		"trending_down":      0.7,
	}
	defaultCountTiers = []CountTier{
		{MaxCount: 1, Multiplier: 1.0},
		{MaxCount: 3, Multiplier: 0.85},
		{MaxCount: 5, Multiplier: 0.70},
	}
	defaultBasketTiers = []BasketTier{
		{MaxCount: 2, Points: 3.0},
		{MaxCount: 4, Points: 2.0},
		{MaxCount: 6, Points: 1.5},
		{MaxCount: 9, Points: 1.0},
	}
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Venue.applyDefaults(keys)
	c.Indicators.applyDefaults(keys)
	c.Regime.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Filters.applyDefaults(keys, c.Risk.MaxSteps)
	c.Sizing.applyDefaults(keys)
	c.Basket.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (v *VenueConfig) applyDefaults(keys keySet) {
	if v == nil {
		return
	}
	v.Kind = strings.ToLower(strings.TrimSpace(v.Kind))
	v.Symbol = strings.ToUpper(strings.TrimSpace(v.Symbol))
	applyFieldDefaults(keys,
		stringFieldDefault("venue.kind", &v.Kind, defaultVenueKind),
		stringFieldDefault("venue.symbol", &v.Symbol, defaultVenueSymbol),
		stringFieldDefault("venue.timeframe", &v.Timeframe, defaultVenueTimeframe),
		stringFieldDefault("venue.rest_base_url", &v.RESTBaseURL, defaultVenueREST),
		intFieldDefault("venue.candle_count", &v.CandleCount, defaultVenueCandles),
		floatFieldDefault("venue.min_lot", &v.MinLot, defaultVenueMinLot),
		floatFieldDefault("venue.lot_step", &v.LotStep, defaultVenueLotStep),
		floatFieldDefault("venue.max_lot", &v.MaxLot, defaultVenueMaxLot),
		floatFieldDefault("venue.point_value", &v.PointValue, defaultVenuePointValue),
		floatFieldDefault("venue.deviation", &v.Deviation, defaultVenueDeviation),
		intFieldDefault("venue.timeout_seconds", &v.TimeoutSeconds, defaultVenueTimeout),
		floatFieldDefault("venue.rate_per_second", &v.RatePerSecond, defaultVenueRate),
		intFieldDefault("venue.rate_burst", &v.RateBurst, defaultVenueBurst),
		intFieldDefault("venue.breaker_failures", &v.BreakerFailures, defaultBreakerFailures),
		intFieldDefault("venue.breaker_cooldown_seconds", &v.BreakerCooldown, defaultBreakerCooldown),
		floatFieldDefault("venue.paper_balance", &v.PaperBalance, defaultPaperBalance),
		floatFieldDefault("venue.paper_spread", &v.PaperSpread, defaultPaperSpread),
		stringFieldDefault("venue.paper_feed", &v.PaperFeed, defaultPaperFeed),
	)
}

func (i *IndicatorConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	i.Smoothing = strings.ToLower(strings.TrimSpace(i.Smoothing))
	applyFieldDefaults(keys,
		stringFieldDefault("indicators.smoothing", &i.Smoothing, defaultIndicatorSmooth),
		intFieldDefault("indicators.atr_period", &i.ATRPeriod, defaultATRPeriod),
		intFieldDefault("indicators.atr_average_period", &i.ATRAveragePeriod, defaultATRAveragePeriod),
		intFieldDefault("indicators.adx_period", &i.ADXPeriod, defaultADXPeriod),
		intFieldDefault("indicators.chop_period", &i.ChopPeriod, defaultChopPeriod),
		intFieldDefault("indicators.rsi_period", &i.RSIPeriod, defaultRSIPeriod),
		intFieldDefault("indicators.ema_fast", &i.EMAFast, defaultEMAFast),
		intFieldDefault("indicators.ema_slow", &i.EMASlow, defaultEMASlow),
		intFieldDefault("indicators.bb_period", &i.BBPeriod, defaultBBPeriod),
		floatFieldDefault("indicators.bb_deviation", &i.BBDeviation, defaultBBDeviation),
		intFieldDefault("indicators.swing_lookback", &i.SwingLookback, defaultSwingLookback),
		intFieldDefault("indicators.volume_ma_period", &i.VolumeMAPeriod, defaultVolumeMAPeriod),
	)
}

func (r *RegimeConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("regime.max_volatility_atr", &r.MaxVolatilityATR, defaultRegimeMaxVolatility),
		floatFieldDefault("regime.chop_threshold", &r.ChopThreshold, defaultRegimeChop),
		floatFieldDefault("regime.strong_trend_adx", &r.StrongTrendADX, defaultRegimeStrongADX),
		floatFieldDefault("regime.trend_adx", &r.TrendADX, defaultRegimeTrendADX),
		intFieldDefault("regime.hysteresis_ticks", &r.HysteresisTicks, defaultRegimeHysteresis),
	)
}

func (f *FilterConfig) applyDefaults(keys keySet, maxSteps int) {
	if f == nil {
		return
	}
	f.Variant = strings.ToLower(strings.TrimSpace(f.Variant))
	collapseStep := maxSteps - 1
	if collapseStep < 1 {
		collapseStep = 1
	}
	applyFieldDefaults(keys,
		stringFieldDefault("filters.variant", &f.Variant, defaultFilterVariant),
		floatFieldDefault("filters.max_spread", &f.MaxSpread, defaultFilterMaxSpread),
		intFieldDefault("filters.cooldown_seconds", &f.CooldownSeconds, defaultFilterCooldown),
		intFieldDefault("filters.size_cooldown_seconds", &f.SizeCooldownSeconds, defaultFilterSizeCooldown),
		floatFieldDefault("filters.min_atr", &f.MinATR, defaultFilterMinATR),
		floatFieldDefault("filters.max_atr", &f.MaxATR, defaultFilterMaxATR),
		floatFieldDefault("filters.min_volume", &f.MinVolume, defaultFilterMinVolume),
		floatFieldDefault("filters.min_volume_ratio", &f.MinVolumeRatio, defaultFilterVolumeRatio),
		floatFieldDefault("filters.structure_buffer", &f.StructureBuffer, defaultFilterStructure),
		floatFieldDefault("filters.min_body_ratio", &f.MinBodyRatio, defaultFilterBodyRatio),
		intFieldDefault("filters.depth_trend_step", &f.DepthTrendStep, defaultFilterDepthTrend),
		intFieldDefault("filters.depth_volume_step", &f.DepthVolumeStep, defaultFilterDepthVolume),
		intFieldDefault("filters.depth_collapse_step", &f.DepthCollapseStep, collapseStep),
		floatFieldDefault("filters.heavy_sell_multiplier", &f.HeavySellMultiplier, defaultFilterHeavySell),
		floatFieldDefault("filters.collapse_window_seconds", &f.CollapseWindowSec, defaultFilterCollapseWindow),
		intFieldDefault("filters.collapse_min_samples", &f.CollapseMinSamples, defaultFilterCollapseTicks),
		floatFieldDefault("filters.collapse_points_per_sec", &f.CollapsePointsPerSec, defaultFilterCollapseRate),
		fieldDefault{
			key:   "filters.size_cooldowns",
			need:  func() bool { return len(f.SizeCooldowns) == 0 },
			apply: func() { f.SizeCooldowns = append([]SizeCooldown(nil), defaultSizeCooldowns...) },
		},
	)
	// 短梯子时，未显式配置的深度阈值跟随 collapse 档位收缩。
	if !keys.isSet("filters.depth_volume_step") && f.DepthVolumeStep > f.DepthCollapseStep {
		f.DepthVolumeStep = f.DepthCollapseStep
	}
	if !keys.isSet("filters.depth_trend_step") && f.DepthTrendStep > f.DepthVolumeStep {
		f.DepthTrendStep = f.DepthVolumeStep
	}
	s := &f.Session
	applyFieldDefaults(keys,
		intFieldDefault("filters.session.max_trades_per_day", &s.MaxTradesPerDay, defaultSessionMaxTrades),
		stringFieldDefault("filters.session.htf_timeframe", &s.HTFTimeframe, defaultSessionHTF),
		intFieldDefault("filters.session.htf_candle_count", &s.HTFCandleCount, defaultSessionHTFCandles),
		intFieldDefault("filters.session.htf_ema_fast", &s.HTFEMAFast, defaultSessionHTFEMAFast),
		intFieldDefault("filters.session.htf_ema_slow", &s.HTFEMASlow, defaultSessionHTFEMASlow),
		floatFieldDefault("filters.session.rsi_min", &s.RSIMin, defaultSessionRSIMin),
		floatFieldDefault("filters.session.rsi_max", &s.RSIMax, defaultSessionRSIMax),
		floatFieldDefault("filters.session.min_adx", &s.MinADX, defaultSessionMinADX),
		floatFieldDefault("filters.session.min_bb_width", &s.MinBBWidth, defaultSessionMinBBWidth),
		fieldDefault{
			key:   "filters.session.dead_hours",
			need:  func() bool { return len(s.DeadHours) == 0 },
			apply: func() { s.DeadHours = append([]int(nil), defaultSessionDeadHours...) },
		},
	)
}

func (s *SizingConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Policy = strings.ToLower(strings.TrimSpace(s.Policy))
	applyFieldDefaults(keys,
		stringFieldDefault("sizing.policy", &s.Policy, defaultSizingPolicy),
		floatFieldDefault("sizing.spacing_floor", &s.SpacingFloor, defaultSizingSpacingFloor),
		floatFieldDefault("sizing.base_lot", &s.BaseLot, defaultSizingBaseLot),
		floatFieldDefault("sizing.early_growth", &s.EarlyGrowth, defaultSizingEarlyGrowth),
		floatFieldDefault("sizing.late_growth", &s.LateGrowth, defaultSizingLateGrowth),
		floatFieldDefault("sizing.risk_constant", &s.RiskConstant, defaultSizingRiskConstant),
		floatFieldDefault("sizing.max_risk_pct", &s.MaxRiskPct, defaultSizingMaxRiskPct),
		floatFieldDefault("sizing.spacing_base", &s.SpacingBase, defaultSizingSpacingBase),
		floatFieldDefault("sizing.spacing_step", &s.SpacingStep, defaultSizingSpacingStep),
		floatFieldDefault("sizing.spacing_min", &s.SpacingMin, defaultSizingSpacingMin),
		floatFieldDefault("sizing.spacing_max", &s.SpacingMax, defaultSizingSpacingMax),
		fieldDefault{
			key:   "sizing.ladder",
			need:  func() bool { return len(s.Ladder) == 0 },
			apply: func() { s.Ladder = append([]float64(nil), defaultSizingLadder...) },
		},
		fieldDefault{
			key:   "sizing.spacing_coefficients",
			need:  func() bool { return len(s.SpacingCoeffs) == 0 },
			apply: func() { s.SpacingCoeffs = cloneFloatMap(defaultSpacingCoeffs) },
		},
		fieldDefault{
			key:   "sizing.spacing_floor_multipliers",
			need:  func() bool { return len(s.FloorMultipliers) == 0 },
			apply: func() { s.FloorMultipliers = cloneFloatMap(defaultFloorMultipliers) },
		},
	)
}

func (b *BasketConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	b.TPMode = strings.ToLower(strings.TrimSpace(b.TPMode))
	applyFieldDefaults(keys,
		stringFieldDefault("basket.tp_mode", &b.TPMode, defaultBasketTPMode),
		floatFieldDefault("basket.base_profit", &b.BaseProfit, defaultBasketBaseProfit),
		floatFieldDefault("basket.min_target", &b.MinTarget, defaultBasketMinTarget),
		floatFieldDefault("basket.count_floor", &b.CountFloor, defaultBasketCountFloor),
		floatFieldDefault("basket.atr_scale_min", &b.ATRScaleMin, defaultBasketATRScaleMin),
		floatFieldDefault("basket.atr_scale_max", &b.ATRScaleMax, defaultBasketATRScaleMax),
		floatFieldDefault("basket.min_gain_pct", &b.MinGainPct, defaultBasketMinGainPct),
		floatFieldDefault("basket.stop_multiplier", &b.StopMultiplier, defaultBasketStopMultiplier),
		fieldDefault{
			key:   "basket.regime_multipliers",
			need:  func() bool { return len(b.RegimeMultipliers) == 0 },
			apply: func() { b.RegimeMultipliers = cloneFloatMap(defaultRegimeMultipliers) },
		},
		fieldDefault{
			key:   "basket.tiers",
			need:  func() bool { return len(b.Tiers) == 0 },
			apply: func() { b.Tiers = append([]BasketTier(nil), defaultBasketTiers...) },
		},
		fieldDefault{
			key:   "basket.count_tiers",
			need:  func() bool { return len(b.CountTiers) == 0 },
			apply: func() { b.CountTiers = append([]CountTier(nil), defaultCountTiers...) },
		},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.floating_kill",
			need:  func() bool { return r.FloatingKill == 0 },
			apply: func() { r.FloatingKill = defaultRiskFloatingKill },
		},
		floatFieldDefault("risk.equity_stop_pct", &r.EquityStopPct, defaultRiskEquityStopPct),
		intFieldDefault("risk.equity_pause_minutes", &r.EquityPauseMinutes, defaultRiskEquityPause),
		floatFieldDefault("risk.daily_loss_pct", &r.DailyLossPct, defaultRiskDailyLossPct),
		intFieldDefault("risk.max_trades_per_day", &r.MaxTradesPerDay, defaultRiskMaxTrades),
		intFieldDefault("risk.max_steps", &r.MaxSteps, defaultRiskMaxSteps),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("engine.decision_interval_ms", &e.DecisionIntervalMs, defaultDecisionIntervalMs),
		intFieldDefault("engine.watcher_interval_ms", &e.WatcherIntervalMs, defaultWatcherIntervalMs),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		boolFieldDefault("store.enabled", &s.Enabled, true),
	)
}

// applyFieldDefaults 对未显式设置的字段按规则填充默认值。
func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func cloneFloatMap(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
