package filter

import "gridbot/internal/regime"

// RegimeGate 的策略取决于篮子是否为空：
// 空篮子拒绝 volatile、ranging/choppy、trending_down/strong；
// 加仓时只拒绝 volatile 与 trending_down/strong。
type RegimeGate struct{}

func (RegimeGate) Name() string        { return GateRegime }
func (RegimeGate) Applies(*Input) bool { return true }
func (RegimeGate) Check(in *Input) Result {
	c := in.Regime
	switch {
	case c.Regime == "":
		return deny(GateRegime, "regime unknown")
	case c.Regime == regime.Volatile:
		return deny(GateRegime, "%s", c)
	case c.Regime == regime.TrendingDown && c.Strength == regime.Strong:
		return deny(GateRegime, "%s", c)
	case in.Basket.Empty() && c.Regime == regime.Ranging && c.Strength == regime.Choppy:
		return deny(GateRegime, "%s with empty basket", c)
	}
	return allow(GateRegime, "%s", c)
}
