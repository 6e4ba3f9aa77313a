package filter

import (
	"math"
	"time"

	"gridbot/internal/risk"
)

const (
	GateExhaustion    = "ladder_exhaustion"
	GateRiskDaily     = "risk_daily"
	GateSpread        = "spread"
	GateCooldown      = "cooldown"
	GateSameCandle    = "same_candle"
	GateSpacing       = "spacing"
	GateVolatility    = "volatility"
	GateLiquidity     = "liquidity"
	GateRegime        = "regime"
	GateStructure     = "structure"
	GateCandleQuality = "candle_quality"
)

// ExhaustionGate 在阶梯已满时拒绝。
type ExhaustionGate struct{}

func (ExhaustionGate) Name() string        { return GateExhaustion }
func (ExhaustionGate) Applies(*Input) bool { return true }
func (ExhaustionGate) Check(in *Input) Result {
	if in.Ladder.MaxSteps <= 0 || in.Ladder.Step >= in.Ladder.MaxSteps {
		return deny(GateExhaustion, "step %d >= max %d (open=%d)", in.Ladder.Step, in.Ladder.MaxSteps, in.Basket.Count)
	}
	return allow(GateExhaustion, "step %d/%d", in.Ladder.Step, in.Ladder.MaxSteps)
}

// RiskGate 把风控的 BlockEntries 结论带入判定结果。
type RiskGate struct{}

func (RiskGate) Name() string        { return GateRiskDaily }
func (RiskGate) Applies(*Input) bool { return true }
func (RiskGate) Check(in *Input) Result {
	if in.Risk.Action != risk.None {
		return deny(GateRiskDaily, "%s: %s", in.Risk.Action, in.Risk.Reason)
	}
	return allow(GateRiskDaily, "trades today %d", in.Daily.TradesToday)
}

type SpreadGate struct {
	Max float64
}

func (g SpreadGate) Name() string        { return GateSpread }
func (g SpreadGate) Applies(*Input) bool { return g.Max > 0 }
func (g SpreadGate) Check(in *Input) Result {
	if !in.Quote.Valid() {
		return deny(GateSpread, "no quote")
	}
	spread := in.Quote.Spread()
	if spread > g.Max {
		return deny(GateSpread, "spread %.4f > %.4f", spread, g.Max)
	}
	return allow(GateSpread, "spread %.4f", spread)
}

// CooldownGate 全局冷却；已有持仓时再按手数冷却，BySize 未列出的手数使用 PerSize。
type CooldownGate struct {
	Global  time.Duration
	PerSize time.Duration
	BySize  map[string]time.Duration
}

func (g CooldownGate) Name() string { return GateCooldown }
func (g CooldownGate) Applies(*Input) bool {
	return g.Global > 0 || g.PerSize > 0 || len(g.BySize) > 0
}

// SizeCooldown 返回 lotKey 对应的冷却时长。
func (g CooldownGate) SizeCooldown(lotKey string) time.Duration {
	if d, ok := g.BySize[lotKey]; ok {
		return d
	}
	return g.PerSize
}

func (g CooldownGate) Check(in *Input) Result {
	last := in.Ladder.LastEntryTime
	if g.Global > 0 && !last.IsZero() {
		if elapsed := in.Now.Sub(last); elapsed < g.Global {
			return deny(GateCooldown, "%s since last entry < %s", elapsed.Truncate(time.Second), g.Global)
		}
	}
	if in.Basket.Count > 0 && in.LotKey != "" {
		wait := g.SizeCooldown(in.LotKey)
		if ts, ok := in.Ladder.LastEntryForSize(in.LotKey); ok && wait > 0 {
			if elapsed := in.Now.Sub(ts); elapsed < wait {
				return deny(GateCooldown, "lot %s used %s ago < %s", in.LotKey, elapsed.Truncate(time.Second), wait)
			}
		}
	}
	return allow(GateCooldown, "cooled down")
}

// SameCandleGate 保证同一根 K 线内只成交一次。
type SameCandleGate struct{}

func (SameCandleGate) Name() string        { return GateSameCandle }
func (SameCandleGate) Applies(*Input) bool { return true }
func (SameCandleGate) Check(in *Input) Result {
	last, ok := in.Window.Last()
	if !ok {
		return deny(GateSameCandle, "empty window")
	}
	if in.Ladder.LastEntryCandle != 0 && last.OpenTime == in.Ladder.LastEntryCandle {
		return deny(GateSameCandle, "already entered on candle %s", last.TimeString())
	}
	return allow(GateSameCandle, "candle %s", last.TimeString())
}

// SpacingGate 要求加仓价距上一笔入场价至少 MinDistance。
type SpacingGate struct{}

func (SpacingGate) Name() string { return GateSpacing }
func (SpacingGate) Applies(in *Input) bool {
	return in.Basket.Count > 0
}

func (SpacingGate) Check(in *Input) Result {
	ref := in.Ladder.LastEntryPrice
	if ref <= 0 {
		ref = in.Basket.LastEntryPrice
	}
	if ref <= 0 {
		return allow(GateSpacing, "no reference price")
	}
	drop := ref - in.Price()
	if drop < in.Plan.MinDistance {
		return deny(GateSpacing, "distance %.4f < %.4f", drop, in.Plan.MinDistance)
	}
	return allow(GateSpacing, "distance %.4f", drop)
}

type VolatilityGate struct {
	MinATR float64
	MaxATR float64
}

func (g VolatilityGate) Name() string        { return GateVolatility }
func (g VolatilityGate) Applies(*Input) bool { return g.MinATR > 0 || g.MaxATR > 0 }
func (g VolatilityGate) Check(in *Input) Result {
	atr := in.Snapshot.ATR
	if g.MinATR > 0 && atr < g.MinATR {
		return deny(GateVolatility, "atr %.4f < min %.4f", atr, g.MinATR)
	}
	if g.MaxATR > 0 && atr > g.MaxATR {
		return deny(GateVolatility, "atr %.4f > max %.4f", atr, g.MaxATR)
	}
	return allow(GateVolatility, "atr %.4f", atr)
}

// LiquidityGate 检查成交量绝对值与相对均量。
type LiquidityGate struct {
	MinVolume float64
	MinRatio  float64
}

func (g LiquidityGate) Name() string        { return GateLiquidity }
func (g LiquidityGate) Applies(*Input) bool { return g.MinVolume > 0 || g.MinRatio > 0 }
func (g LiquidityGate) Check(in *Input) Result {
	s := in.Snapshot
	if g.MinVolume > 0 && s.Volume < g.MinVolume {
		return deny(GateLiquidity, "volume %.2f < %.2f", s.Volume, g.MinVolume)
	}
	if g.MinRatio > 0 && s.VolumeRatio < g.MinRatio {
		return deny(GateLiquidity, "volume ratio %.2f < %.2f (ma %.2f)", s.VolumeRatio, g.MinRatio, s.VolumeMA)
	}
	return allow(GateLiquidity, "volume %.2f ratio %.2f", s.Volume, s.VolumeRatio)
}

// StructureGate 收盘价距离摆动高点或低点小于 Buffer 时拒绝。
type StructureGate struct {
	Buffer float64
}

func (g StructureGate) Name() string        { return GateStructure }
func (g StructureGate) Applies(*Input) bool { return g.Buffer > 0 }
func (g StructureGate) Check(in *Input) Result {
	s := in.Snapshot
	px := s.Close
	if d := math.Abs(s.SwingHigh - px); s.SwingHigh > 0 && d < g.Buffer {
		return deny(GateStructure, "close %.4f within %.2f of swing high %.4f", px, g.Buffer, s.SwingHigh)
	}
	if d := math.Abs(px - s.SwingLow); s.SwingLow > 0 && d < g.Buffer {
		return deny(GateStructure, "close %.4f within %.2f of swing low %.4f", px, g.Buffer, s.SwingLow)
	}
	return allow(GateStructure, "swing %.4f/%.4f", s.SwingLow, s.SwingHigh)
}

type CandleQualityGate struct {
	MinBodyRatio float64
}

func (g CandleQualityGate) Name() string        { return GateCandleQuality }
func (g CandleQualityGate) Applies(*Input) bool { return g.MinBodyRatio > 0 }
func (g CandleQualityGate) Check(in *Input) Result {
	s := in.Snapshot
	if !s.BodyOK {
		return deny(GateCandleQuality, "zero-range candle")
	}
	if s.BodyRatio < g.MinBodyRatio {
		return deny(GateCandleQuality, "body ratio %.2f < %.2f", s.BodyRatio, g.MinBodyRatio)
	}
	return allow(GateCandleQuality, "body ratio %.2f", s.BodyRatio)
}
