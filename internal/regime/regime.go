// Package regime 将指标快照映射为市场状态。
package regime

import (
	"gridbot/internal/config"
	"gridbot/internal/indicator"
)

type Regime string

const (
	TrendingUp   Regime = "trending_up"
	TrendingDown Regime = "trending_down"
	Ranging      Regime = "ranging"
	Volatile     Regime = "volatile"
)

type Strength string

const (
	Weak     Strength = "weak"
	Moderate Strength = "moderate"
	Strong   Strength = "strong"
	Choppy   Strength = "choppy"
	Extreme  Strength = "extreme"
)

// Classification 为一次分类结果。
type Classification struct {
	Regime   Regime   `json:"regime"`
	Strength Strength `json:"strength"`
}

func (c Classification) String() string {
	if c.Regime == "" {
		return "unknown"
	}
	return string(c.Regime) + "/" + string(c.Strength)
}

func (c Classification) IsTrending() bool {
	return c.Regime == TrendingUp || c.Regime == TrendingDown
}

// Thresholds 为分类阈值。
type Thresholds struct {
	MaxVolatility float64
	Chop          float64
	StrongTrend   float64
	Trend         float64
}

func ThresholdsFromConfig(cfg config.RegimeConfig) Thresholds {
	return Thresholds{
		MaxVolatility: cfg.MaxVolatilityATR,
		Chop:          cfg.ChopThreshold,
		StrongTrend:   cfg.StrongTrendADX,
		Trend:         cfg.TrendADX,
	}
}

// Inputs 是分类所需的指标子集。
type Inputs struct {
	ATR     float64
	ADX     float64
	PlusDI  float64
	MinusDI float64
	Chop    float64
}

func InputsFrom(s indicator.Snapshot) Inputs {
	return Inputs{ATR: s.ATR, ADX: s.ADX, PlusDI: s.PlusDI, MinusDI: s.MinusDI, Chop: s.Chop}
}

// Classify 按顺序匹配，首个命中的规则生效：
//  1. ATR > MaxVolatility        -> volatile/extreme
//  2. Chop > Chop                -> ranging/choppy
//  3. ADX > StrongTrend          -> trending_{up|down}/strong
//  4. ADX > Trend                -> trending_{up|down}/moderate
//  5. 其它                        -> ranging/weak
//
// 方向：+DI 严格大于 -DI 为 up，相等归为 down。
func Classify(in Inputs, th Thresholds) Classification {
	switch {
	case in.ATR > th.MaxVolatility:
		return Classification{Regime: Volatile, Strength: Extreme}
	case in.Chop > th.Chop:
		return Classification{Regime: Ranging, Strength: Choppy}
	case in.ADX > th.StrongTrend:
		return Classification{Regime: direction(in), Strength: Strong}
	case in.ADX > th.Trend:
		return Classification{Regime: direction(in), Strength: Moderate}
	default:
		return Classification{Regime: Ranging, Strength: Weak}
	}
}

func direction(in Inputs) Regime {
	if in.PlusDI > in.MinusDI {
		return TrendingUp
	}
	return TrendingDown
}
