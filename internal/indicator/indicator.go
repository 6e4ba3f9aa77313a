// Package indicator 提供网格决策所需的确定性指标计算。
// 所有函数为纯函数：相同窗口与参数总是得到相同结果。
package indicator

import (
	"errors"
	"strings"

	"gridbot/internal/config"
)

// ErrInsufficientData 表示窗口长度不足或输入退化（如零波幅），本轮应跳过。
var ErrInsufficientData = errors.New("indicator: insufficient data")

// Smoothing 控制 ATR/ADX 的平滑方式。
type Smoothing string

const (
	// SmoothWilder 使用 Wilder 平滑（alpha = 1/period），默认。
	SmoothWilder Smoothing = "wilder"
	// SmoothSMA 使用简单滚动均值：ATR=SMA(TR)，DI=100*SMA(±DM)/SMA(TR)，ADX=SMA(DX)。
	SmoothSMA Smoothing = "sma"
)

// Settings 描述计算一次快照所需的全部周期。
type Settings struct {
	Smoothing        Smoothing
	ATRPeriod        int
	ATRAveragePeriod int
	ADXPeriod        int
	ChopPeriod       int
	RSIPeriod        int
	EMAFast          int
	EMASlow          int
	BBPeriod         int
	BBDeviation      float64
	SwingLookback    int
	VolumeMAPeriod   int
}

// DefaultSettings 返回与配置默认值一致的参数。
func DefaultSettings() Settings {
	return Settings{
		Smoothing:        SmoothWilder,
		ATRPeriod:        14,
		ATRAveragePeriod: 50,
		ADXPeriod:        14,
		ChopPeriod:       14,
		RSIPeriod:        14,
		EMAFast:          3,
		EMASlow:          5,
		BBPeriod:         20,
		BBDeviation:      2,
		SwingLookback:    20,
		VolumeMAPeriod:   20,
	}
}

// FromConfig 将配置段转换为 Settings，非法值回退到默认值。
func FromConfig(cfg config.IndicatorConfig) Settings {
	s := Settings{
		Smoothing:        Smoothing(strings.ToLower(strings.TrimSpace(cfg.Smoothing))),
		ATRPeriod:        cfg.ATRPeriod,
		ATRAveragePeriod: cfg.ATRAveragePeriod,
		ADXPeriod:        cfg.ADXPeriod,
		ChopPeriod:       cfg.ChopPeriod,
		RSIPeriod:        cfg.RSIPeriod,
		EMAFast:          cfg.EMAFast,
		EMASlow:          cfg.EMASlow,
		BBPeriod:         cfg.BBPeriod,
		BBDeviation:      cfg.BBDeviation,
		SwingLookback:    cfg.SwingLookback,
		VolumeMAPeriod:   cfg.VolumeMAPeriod,
	}
	return s.normalized()
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.Smoothing != SmoothSMA {
		s.Smoothing = SmoothWilder
	}
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&s.ATRPeriod, def.ATRPeriod)
	fill(&s.ATRAveragePeriod, def.ATRAveragePeriod)
	fill(&s.ADXPeriod, def.ADXPeriod)
	fill(&s.RSIPeriod, def.RSIPeriod)
	fill(&s.EMAFast, def.EMAFast)
	fill(&s.EMASlow, def.EMASlow)
	fill(&s.BBPeriod, def.BBPeriod)
	fill(&s.SwingLookback, def.SwingLookback)
	fill(&s.VolumeMAPeriod, def.VolumeMAPeriod)
	if s.ChopPeriod < 2 {
		s.ChopPeriod = def.ChopPeriod
	}
	if s.BBDeviation <= 0 {
		s.BBDeviation = def.BBDeviation
	}
	return s
}

// MinBars 返回计算完整快照所需的最少 K 线数量。
func MinBars(s Settings) int {
	s = s.normalized()
	need := []int{
		s.ATRPeriod + s.ATRAveragePeriod, // ATR 序列再求均值
		2 * s.ADXPeriod,
		s.ChopPeriod + 1,
		s.RSIPeriod + 1,
		s.EMAFast,
		s.EMASlow,
		s.BBPeriod,
		s.SwingLookback,
		s.VolumeMAPeriod,
	}
	max := 0
	for _, n := range need {
		if n > max {
			max = n
		}
	}
	return max
}
