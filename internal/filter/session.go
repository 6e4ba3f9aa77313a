package filter

const (
	GateSessionTrades = "session_trades"
	GateSessionHours  = "session_hours"
	GateHTFBias       = "htf_bias"
	GateMomentum      = "momentum"
	GateBBSqueeze     = "bb_squeeze"
)

// SessionTradesGate 为 session 变体的日内交易次数上限。
type SessionTradesGate struct {
	Max int
}

func (g SessionTradesGate) Name() string        { return GateSessionTrades }
func (g SessionTradesGate) Applies(*Input) bool { return g.Max > 0 }
func (g SessionTradesGate) Check(in *Input) Result {
	if in.Daily.TradesToday >= g.Max {
		return deny(GateSessionTrades, "trades today %d >= %d", in.Daily.TradesToday, g.Max)
	}
	return allow(GateSessionTrades, "trades today %d/%d", in.Daily.TradesToday, g.Max)
}

// SessionHoursGate 排除低流动性时段（本地小时）。
type SessionHoursGate struct {
	Dead map[int]struct{}
}

func NewSessionHoursGate(hours []int) SessionHoursGate {
	dead := make(map[int]struct{}, len(hours))
	for _, h := range hours {
		dead[h] = struct{}{}
	}
	return SessionHoursGate{Dead: dead}
}

func (g SessionHoursGate) Name() string        { return GateSessionHours }
func (g SessionHoursGate) Applies(*Input) bool { return len(g.Dead) > 0 }
func (g SessionHoursGate) Check(in *Input) Result {
	hour := in.localNow().Hour()
	if _, dead := g.Dead[hour]; dead {
		return deny(GateSessionHours, "hour %02d is a dead session", hour)
	}
	return allow(GateSessionHours, "hour %02d", hour)
}

// HTFBiasGate 高周期 EMA 空头排列时否决入场。
type HTFBiasGate struct{}

func (HTFBiasGate) Name() string        { return GateHTFBias }
func (HTFBiasGate) Applies(*Input) bool { return true }
func (HTFBiasGate) Check(in *Input) Result {
	h := in.HTF
	if h == nil {
		return deny(GateHTFBias, "higher timeframe unavailable")
	}
	if h.EMAFast < h.EMASlow {
		return deny(GateHTFBias, "%s ema fast %.4f < slow %.4f", h.Timeframe, h.EMAFast, h.EMASlow)
	}
	return allow(GateHTFBias, "%s ema fast %.4f >= slow %.4f", h.Timeframe, h.EMAFast, h.EMASlow)
}

// MomentumGate 要求 RSI 落在区间内且 ADX 达到最低动量。
type MomentumGate struct {
	RSIMin float64
	RSIMax float64
	MinADX float64
}

func (g MomentumGate) Name() string        { return GateMomentum }
func (g MomentumGate) Applies(*Input) bool { return true }
func (g MomentumGate) Check(in *Input) Result {
	s := in.Snapshot
	if s.RSI < g.RSIMin || s.RSI > g.RSIMax {
		return deny(GateMomentum, "rsi %.2f outside [%.0f,%.0f]", s.RSI, g.RSIMin, g.RSIMax)
	}
	if s.ADX < g.MinADX {
		return deny(GateMomentum, "adx %.2f < %.2f", s.ADX, g.MinADX)
	}
	return allow(GateMomentum, "rsi %.2f adx %.2f", s.RSI, s.ADX)
}

// BBSqueezeGate 布林带宽过窄时否决。
type BBSqueezeGate struct {
	MinWidth float64
}

func (g BBSqueezeGate) Name() string        { return GateBBSqueeze }
func (g BBSqueezeGate) Applies(*Input) bool { return g.MinWidth > 0 }
func (g BBSqueezeGate) Check(in *Input) Result {
	if in.Snapshot.BBWidth < g.MinWidth {
		return deny(GateBBSqueeze, "bb width %.5f < %.5f", in.Snapshot.BBWidth, g.MinWidth)
	}
	return allow(GateBBSqueeze, "bb width %.5f", in.Snapshot.BBWidth)
}
