package filter

import (
	"time"

	"gridbot/internal/market"
)

const (
	GateDepthTrend      = "depth_trend"
	GateDepthSelling    = "depth_selling"
	GateDepthExhaustion = "depth_exhaustion"
	GateDepthBullish    = "depth_bullish"
	GateDepthCollapse   = "depth_collapse"
)

// DepthTrendGate 在较深档位拒绝 EMA 快线跌破慢线的情况。
type DepthTrendGate struct {
	FromStep int
}

func (g DepthTrendGate) Name() string { return GateDepthTrend }
func (g DepthTrendGate) Applies(in *Input) bool {
	return g.FromStep > 0 && in.Ladder.Step >= g.FromStep
}

func (g DepthTrendGate) Check(in *Input) Result {
	s := in.Snapshot
	if s.EMAFast < s.EMASlow {
		return deny(GateDepthTrend, "ema fast %.4f < slow %.4f at step %d", s.EMAFast, s.EMASlow, in.Ladder.Step)
	}
	return allow(GateDepthTrend, "ema fast %.4f >= slow %.4f", s.EMAFast, s.EMASlow)
}

// DepthSellingGate 拒绝放量阴线：最新一根收阴且成交量超过 Multiplier 倍成交量 EMA。
type DepthSellingGate struct {
	FromStep   int
	Multiplier float64
}

func (g DepthSellingGate) Name() string { return GateDepthSelling }
func (g DepthSellingGate) Applies(in *Input) bool {
	return g.FromStep > 0 && in.Ladder.Step >= g.FromStep && g.Multiplier > 0
}

func (g DepthSellingGate) Check(in *Input) Result {
	cur, ok := in.Window.Last()
	if !ok {
		return deny(GateDepthSelling, "no candles")
	}
	limit := g.Multiplier * in.Snapshot.VolumeEMA
	if HeavySelling(cur, in.Snapshot.VolumeEMA, g.Multiplier) {
		return deny(GateDepthSelling, "bearish bar volume %.0f > %.0f", cur.Volume, limit)
	}
	return allow(GateDepthSelling, "volume %.0f, limit %.0f, bearish=%t", cur.Volume, limit, cur.Bearish())
}

// DepthExhaustionGate 要求最近三根 K 线成交量递减。
type DepthExhaustionGate struct {
	FromStep int
}

func (g DepthExhaustionGate) Name() string { return GateDepthExhaustion }
func (g DepthExhaustionGate) Applies(in *Input) bool {
	return g.FromStep > 0 && in.Ladder.Step >= g.FromStep
}

func (g DepthExhaustionGate) Check(in *Input) Result {
	tail := in.Window.Tail(3)
	if len(tail) < 3 {
		return deny(GateDepthExhaustion, "need 3 bars, have %d", len(tail))
	}
	v := tail.Volumes()
	if !(v[0] > v[1] && v[1] > v[2]) {
		return deny(GateDepthExhaustion, "volume not descending %.0f/%.0f/%.0f", v[0], v[1], v[2])
	}
	return allow(GateDepthExhaustion, "volume descending %.0f/%.0f/%.0f", v[0], v[1], v[2])
}

// DepthBullishGate 深档加仓只接在阳线上。
type DepthBullishGate struct {
	FromStep int
}

func (g DepthBullishGate) Name() string { return GateDepthBullish }
func (g DepthBullishGate) Applies(in *Input) bool {
	return g.FromStep > 0 && in.Ladder.Step >= g.FromStep
}

func (g DepthBullishGate) Check(in *Input) Result {
	cur, ok := in.Window.Last()
	if !ok {
		return deny(GateDepthBullish, "no candles")
	}
	if !cur.Bullish() {
		return deny(GateDepthBullish, "last bar not bullish: open %.5f close %.5f", cur.Open, cur.Close)
	}
	return allow(GateDepthBullish, "bullish bar %.5f -> %.5f", cur.Open, cur.Close)
}

// DepthCollapseGate 在最深档位拒绝急跌：Window 内 bid 振幅达到 MaxPerSecond*Window。
// 采样少于 MinSamples 时不判定为急跌。
type DepthCollapseGate struct {
	FromStep     int
	Window       time.Duration
	MinSamples   int
	MaxPerSecond float64
}

func (g DepthCollapseGate) Name() string { return GateDepthCollapse }
func (g DepthCollapseGate) Applies(in *Input) bool {
	return g.FromStep > 0 && in.Ladder.Step >= g.FromStep && g.MaxPerSecond > 0 && g.Window > 0
}

func (g DepthCollapseGate) Check(in *Input) Result {
	ticks := in.Ticks
	if !in.Now.IsZero() {
		ticks = ticksSince(ticks, in.Now.Add(-g.Window))
	}
	if len(ticks) < g.MinSamples {
		return allow(GateDepthCollapse, "%d ticks in %s, need %d", len(ticks), g.Window, g.MinSamples)
	}
	hi, lo, _ := market.BidRange(ticks)
	limit := g.MaxPerSecond * g.Window.Seconds()
	if hi-lo >= limit {
		return deny(GateDepthCollapse, "bid range %.4f in %s >= %.4f", hi-lo, g.Window, limit)
	}
	return allow(GateDepthCollapse, "bid range %.4f in %s", hi-lo, g.Window)
}

// HeavySelling 判断 c 是否为放量阴线。
func HeavySelling(c market.Candle, volumeEMA, multiplier float64) bool {
	return c.Bearish() && volumeEMA > 0 && c.Volume > multiplier*volumeEMA
}

func ticksSince(ticks []market.Tick, from time.Time) []market.Tick {
	for i, tk := range ticks {
		if !tk.Time.Before(from) {
			return ticks[i:]
		}
	}
	return nil
}
