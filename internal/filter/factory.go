package filter

import (
	"fmt"
	"strings"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/sizing"
)

const (
	VariantStandard = "standard"
	VariantSession  = "session"
)

// NewPipeline 根据 variant 组装闸门；两种变体共享基础闸门，session 变体追加时段与高周期闸门。
func NewPipeline(cfg config.FilterConfig) (*Pipeline, error) {
	variant := strings.ToLower(strings.TrimSpace(cfg.Variant))
	if variant == "" {
		variant = VariantStandard
	}
	cooldown := CooldownGate{Global: seconds(float64(cfg.CooldownSeconds))}
	if variant != VariantSession {
		// session 变体依靠日内次数上限控制频率，不按手数冷却。
		cooldown.PerSize = seconds(float64(cfg.SizeCooldownSeconds))
		cooldown.BySize = make(map[string]time.Duration, len(cfg.SizeCooldowns))
		for _, c := range cfg.SizeCooldowns {
			cooldown.BySize[sizing.LotKey(c.Lot)] = seconds(float64(c.Seconds))
		}
	}
	gates := []Gate{
		ExhaustionGate{},
		RiskGate{},
		SpreadGate{Max: cfg.MaxSpread},
		cooldown,
		SameCandleGate{},
		SpacingGate{},
		VolatilityGate{MinATR: cfg.MinATR, MaxATR: cfg.MaxATR},
		LiquidityGate{MinVolume: cfg.MinVolume, MinRatio: cfg.MinVolumeRatio},
		RegimeGate{},
		StructureGate{Buffer: cfg.StructureBuffer},
		CandleQualityGate{MinBodyRatio: cfg.MinBodyRatio},
		DepthTrendGate{FromStep: cfg.DepthTrendStep},
		DepthSellingGate{FromStep: cfg.DepthVolumeStep, Multiplier: cfg.HeavySellMultiplier},
		DepthExhaustionGate{FromStep: cfg.DepthVolumeStep},
		DepthBullishGate{FromStep: cfg.DepthVolumeStep},
		DepthCollapseGate{
			FromStep:     cfg.DepthCollapseStep,
			Window:       seconds(cfg.CollapseWindowSec),
			MinSamples:   cfg.CollapseMinSamples,
			MaxPerSecond: cfg.CollapsePointsPerSec,
		},
	}
	switch variant {
	case VariantStandard:
	case VariantSession:
		s := cfg.Session
		gates = append(gates,
			SessionTradesGate{Max: s.MaxTradesPerDay},
			NewSessionHoursGate(s.DeadHours),
			HTFBiasGate{},
			MomentumGate{RSIMin: s.RSIMin, RSIMax: s.RSIMax, MinADX: s.MinADX},
			BBSqueezeGate{MinWidth: s.MinBBWidth},
		)
	default:
		return nil, fmt.Errorf("unknown filter variant: %s", cfg.Variant)
	}
	return New(variant, gates...), nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
