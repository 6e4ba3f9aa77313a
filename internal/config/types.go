package config

import (
	"strings"
	"time"
)

// Config 是 gridbot 的主配置载体，一个进程只服务一个交易品种。
type Config struct {
	App        AppConfig       `toml:"app" yaml:"app"`
	Venue      VenueConfig     `toml:"venue" yaml:"venue"`
	Indicators IndicatorConfig `toml:"indicators" yaml:"indicators"`
	Regime     RegimeConfig    `toml:"regime" yaml:"regime"`
	Filters    FilterConfig    `toml:"filters" yaml:"filters"`
	Sizing     SizingConfig    `toml:"sizing" yaml:"sizing"`
	Basket     BasketConfig    `toml:"basket" yaml:"basket"`
	Risk       RiskConfig      `toml:"risk" yaml:"risk"`
	Engine     EngineConfig    `toml:"engine" yaml:"engine"`
	Store      StoreConfig     `toml:"store" yaml:"store"`
	Notify     NotifyConfig    `toml:"notify" yaml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env" yaml:"env"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`
	LogPath   string `toml:"log_path" yaml:"log_path"`
	HTTPAddr  string `toml:"http_addr" yaml:"http_addr"`
}

// VenueConfig 描述执行端（模拟盘或 Binance U 本位合约）以及品种的下单粒度。
type VenueConfig struct {
	Kind            string  `toml:"kind" yaml:"kind"` // "paper" | "binance"
	Symbol          string  `toml:"symbol" yaml:"symbol"`
	Timeframe       string  `toml:"timeframe" yaml:"timeframe"`
	CandleCount     int     `toml:"candle_count" yaml:"candle_count"`
	MinLot          float64 `toml:"min_lot" yaml:"min_lot"`
	LotStep         float64 `toml:"lot_step" yaml:"lot_step"`
	MaxLot          float64 `toml:"max_lot" yaml:"max_lot"`
	PointValue      float64 `toml:"point_value" yaml:"point_value"`
	Deviation       float64 `toml:"deviation" yaml:"deviation"`
	RESTBaseURL     string  `toml:"rest_base_url" yaml:"rest_base_url"`
	APIKey          string  `toml:"api_key" yaml:"-"`
	APISecret       string  `toml:"api_secret" yaml:"-"`
	TimeoutSeconds  int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RatePerSecond   float64 `toml:"rate_per_second" yaml:"rate_per_second"`
	RateBurst       int     `toml:"rate_burst" yaml:"rate_burst"`
	BreakerFailures int     `toml:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown int     `toml:"breaker_cooldown_seconds" yaml:"breaker_cooldown_seconds"`
	PaperBalance    float64 `toml:"paper_balance" yaml:"paper_balance"`
	PaperSpread     float64 `toml:"paper_spread" yaml:"paper_spread"`
	PaperFeed       string  `toml:"paper_feed" yaml:"paper_feed"` // "synthetic" | "binance"
}

// Timeout 返回单次 venue 调用的超时时间。
func (v VenueConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// IndicatorConfig 控制指标周期；smoothing 取 "wilder"（默认）或 "sma"。
type IndicatorConfig struct {
	Smoothing        string  `toml:"smoothing" yaml:"smoothing"`
	ATRPeriod        int     `toml:"atr_period" yaml:"atr_period"`
	ATRAveragePeriod int     `toml:"atr_average_period" yaml:"atr_average_period"`
	ADXPeriod        int     `toml:"adx_period" yaml:"adx_period"`
	ChopPeriod       int     `toml:"chop_period" yaml:"chop_period"`
	RSIPeriod        int     `toml:"rsi_period" yaml:"rsi_period"`
	EMAFast          int     `toml:"ema_fast" yaml:"ema_fast"`
	EMASlow          int     `toml:"ema_slow" yaml:"ema_slow"`
	BBPeriod         int     `toml:"bb_period" yaml:"bb_period"`
	BBDeviation      float64 `toml:"bb_deviation" yaml:"bb_deviation"`
	SwingLookback    int     `toml:"swing_lookback" yaml:"swing_lookback"`
	VolumeMAPeriod   int     `toml:"volume_ma_period" yaml:"volume_ma_period"`
}

type RegimeConfig struct {
	MaxVolatilityATR float64 `toml:"max_volatility_atr" yaml:"max_volatility_atr"`
	ChopThreshold    float64 `toml:"chop_threshold" yaml:"chop_threshold"`
	StrongTrendADX   float64 `toml:"strong_trend_adx" yaml:"strong_trend_adx"`
	TrendADX         float64 `toml:"trend_adx" yaml:"trend_adx"`
	HysteresisTicks  int     `toml:"hysteresis_ticks" yaml:"hysteresis_ticks"`
}

// FilterConfig 汇总入场过滤器阈值；variant 取 "standard" 或 "session"。
type FilterConfig struct {
	Variant             string  `toml:"variant" yaml:"variant"`
	MaxSpread           float64 `toml:"max_spread" yaml:"max_spread"`
	CooldownSeconds     int     `toml:"cooldown_seconds" yaml:"cooldown_seconds"`
	SizeCooldownSeconds int     `toml:"size_cooldown_seconds" yaml:"size_cooldown_seconds"`
	// SizeCooldowns 按手数覆盖 SizeCooldownSeconds。
	SizeCooldowns   []SizeCooldown `toml:"size_cooldowns" yaml:"size_cooldowns"`
	MinATR          float64        `toml:"min_atr" yaml:"min_atr"`
	MaxATR          float64        `toml:"max_atr" yaml:"max_atr"`
	MinVolume       float64        `toml:"min_volume" yaml:"min_volume"`
	MinVolumeRatio  float64        `toml:"min_volume_ratio" yaml:"min_volume_ratio"`
	StructureBuffer float64        `toml:"structure_buffer" yaml:"structure_buffer"`
	MinBodyRatio    float64        `toml:"min_body_ratio" yaml:"min_body_ratio"`

	DepthTrendStep       int     `toml:"depth_trend_step" yaml:"depth_trend_step"`
	DepthVolumeStep      int     `toml:"depth_volume_step" yaml:"depth_volume_step"`
	DepthCollapseStep    int     `toml:"depth_collapse_step" yaml:"depth_collapse_step"`
	HeavySellMultiplier  float64 `toml:"heavy_sell_multiplier" yaml:"heavy_sell_multiplier"`
	CollapseWindowSec    float64 `toml:"collapse_window_seconds" yaml:"collapse_window_seconds"`
	CollapseMinSamples   int     `toml:"collapse_min_samples" yaml:"collapse_min_samples"`
	CollapsePointsPerSec float64 `toml:"collapse_points_per_sec" yaml:"collapse_points_per_sec"`

	Session SessionFilterConfig `toml:"session" yaml:"session"`
}

// SizeCooldown 为某一手数的最小复用间隔。
type SizeCooldown struct {
	Lot     float64 `toml:"lot" yaml:"lot"`
	Seconds int     `toml:"seconds" yaml:"seconds"`
}

// SessionFilterConfig 仅在 session 变体下生效。
type SessionFilterConfig struct {
	MaxTradesPerDay int     `toml:"max_trades_per_day" yaml:"max_trades_per_day"`
	DeadHours       []int   `toml:"dead_hours" yaml:"dead_hours"`
	HTFTimeframe    string  `toml:"htf_timeframe" yaml:"htf_timeframe"`
	HTFCandleCount  int     `toml:"htf_candle_count" yaml:"htf_candle_count"`
	HTFEMAFast      int     `toml:"htf_ema_fast" yaml:"htf_ema_fast"`
	HTFEMASlow      int     `toml:"htf_ema_slow" yaml:"htf_ema_slow"`
	RSIMin          float64 `toml:"rsi_min" yaml:"rsi_min"`
	RSIMax          float64 `toml:"rsi_max" yaml:"rsi_max"`
	MinADX          float64 `toml:"min_adx" yaml:"min_adx"`
	MinBBWidth      float64 `toml:"min_bb_width" yaml:"min_bb_width"`
}

// SizingConfig 选择仓位策略："fixed_ladder" 或 "vol_martingale"。
type SizingConfig struct {
	Policy        string             `toml:"policy" yaml:"policy"`
	Ladder        []float64          `toml:"ladder" yaml:"ladder"`
	SpacingFloor  float64            `toml:"spacing_floor" yaml:"spacing_floor"`
	SpacingCoeffs map[string]float64 `toml:"spacing_coefficients" yaml:"spacing_coefficients"`
	// FloorMultipliers 按行情放大 SpacingFloor，未列出的为 1。
	FloorMultipliers map[string]float64 `toml:"spacing_floor_multipliers" yaml:"spacing_floor_multipliers"`
	BaseLot          float64            `toml:"base_lot" yaml:"base_lot"`
	EarlyGrowth      float64            `toml:"early_growth" yaml:"early_growth"`
	LateGrowth       float64            `toml:"late_growth" yaml:"late_growth"`
	RiskConstant     float64            `toml:"risk_constant" yaml:"risk_constant"`
	MaxRiskPct       float64            `toml:"max_risk_pct" yaml:"max_risk_pct"`
	SpacingBase      float64            `toml:"spacing_base" yaml:"spacing_base"`
	SpacingStep      float64            `toml:"spacing_step" yaml:"spacing_step"`
	SpacingMin       float64            `toml:"spacing_min" yaml:"spacing_min"`
	SpacingMax       float64            `toml:"spacing_max" yaml:"spacing_max"`
}

// CountTier 为持仓数量不超过 MaxCount 时的止盈系数。
type CountTier struct {
	MaxCount   int     `toml:"max_count" yaml:"max_count"`
	Multiplier float64 `toml:"multiplier" yaml:"multiplier"`
}

// BasketTier 描述 points 模式下某个持仓数量上限对应的目标点数。
type BasketTier struct {
	MaxCount int     `toml:"max_count" yaml:"max_count"`
	Points   float64 `toml:"points" yaml:"points"`
}

type BasketConfig struct {
	TPMode            string             `toml:"tp_mode" yaml:"tp_mode"` // "profit" | "points"
	BaseProfit        float64            `toml:"base_profit" yaml:"base_profit"`
	MinTarget         float64            `toml:"min_target" yaml:"min_target"`
	CountTiers        []CountTier        `toml:"count_tiers" yaml:"count_tiers"`
	CountFloor        float64            `toml:"count_floor" yaml:"count_floor"` // 超出最大档位时的系数
	RegimeMultipliers map[string]float64 `toml:"regime_multipliers" yaml:"regime_multipliers"`
	Tiers             []BasketTier       `toml:"tiers" yaml:"tiers"`
	ATRScaleMin       float64            `toml:"atr_scale_min" yaml:"atr_scale_min"`
	ATRScaleMax       float64            `toml:"atr_scale_max" yaml:"atr_scale_max"`
	MinGainPct        float64            `toml:"min_gain_pct" yaml:"min_gain_pct"`
	StopMultiplier    float64            `toml:"stop_multiplier" yaml:"stop_multiplier"`
}

type RiskConfig struct {
	FloatingKill       float64 `toml:"floating_kill" yaml:"floating_kill"`
	EquityStopPct      float64 `toml:"equity_stop_pct" yaml:"equity_stop_pct"`
	EquityPauseMinutes int     `toml:"equity_pause_minutes" yaml:"equity_pause_minutes"`
	DailyLossPct       float64 `toml:"daily_loss_pct" yaml:"daily_loss_pct"`
	MaxTradesPerDay    int     `toml:"max_trades_per_day" yaml:"max_trades_per_day"`
	DailyPause         bool    `toml:"daily_pause" yaml:"daily_pause"`
	MaxSteps           int     `toml:"max_steps" yaml:"max_steps"`
	Timezone           string  `toml:"timezone" yaml:"timezone"`
}

// Location 解析风控日切使用的时区，非法或为空时回退到本地时区。
func (r RiskConfig) Location() *time.Location {
	name := strings.TrimSpace(r.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

type EngineConfig struct {
	DecisionIntervalMs int  `toml:"decision_interval_ms" yaml:"decision_interval_ms"`
	WatcherIntervalMs  int  `toml:"watcher_interval_ms" yaml:"watcher_interval_ms"`
	DryRun             bool `toml:"dry_run" yaml:"dry_run"`
}

func (e EngineConfig) DecisionInterval() time.Duration {
	return time.Duration(e.DecisionIntervalMs) * time.Millisecond
}

func (e EngineConfig) WatcherInterval() time.Duration {
	return time.Duration(e.WatcherIntervalMs) * time.Millisecond
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	BotToken string `toml:"bot_token" yaml:"-"`
	ChatID   string `toml:"chat_id" yaml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
