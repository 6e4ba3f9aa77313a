// Package sizing 计算下一笔加仓的手数与最小价格间距。
package sizing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gridbot/internal/config"
	"gridbot/internal/regime"
)

// ErrNoRungs 表示固定梯子未配置任何档位。
var ErrNoRungs = errors.New("sizing: ladder has no rungs")

const (
	PolicyFixedLadder   = "fixed_ladder"
	PolicyVolMartingale = "vol_martingale"
)

// Request 为单次仓位计算的输入。
type Request struct {
	Step       int
	ATR        float64
	ATRAverage float64
	Equity     float64
	Regime     regime.Classification
}

// Plan 为计算结果：合法手数与距上次入场的最小价格间距。
type Plan struct {
	Lot         float64 `json:"lot"`
	MinDistance float64 `json:"min_distance"`
	Policy      string  `json:"policy"`
}

func (p Plan) String() string {
	return fmt.Sprintf("%s lot=%.4f min_distance=%.4f", p.Policy, p.Lot, p.MinDistance)
}

// Policy 为可互换的仓位策略。
type Policy interface {
	Name() string
	Plan(Request) (Plan, error)
}

// New 按 sizing.policy 构造策略。
func New(cfg config.SizingConfig, rules LotRules) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Policy)) {
	case "", PolicyFixedLadder:
		if len(cfg.Ladder) == 0 {
			return nil, ErrNoRungs
		}
		return &FixedLadder{
			Lots:             append([]float64(nil), cfg.Ladder...),
			SpacingFloor:     cfg.SpacingFloor,
			Coefficients:     cfg.SpacingCoeffs,
			FloorMultipliers: cfg.FloorMultipliers,
			Rules:            rules,
		}, nil
	case PolicyVolMartingale:
		return &VolMartingale{
			BaseLot:      cfg.BaseLot,
			EarlyGrowth:  cfg.EarlyGrowth,
			LateGrowth:   cfg.LateGrowth,
			RiskConstant: cfg.RiskConstant,
			MaxRiskPct:   cfg.MaxRiskPct,
			SpacingBase:  cfg.SpacingBase,
			SpacingStep:  cfg.SpacingStep,
			SpacingMin:   cfg.SpacingMin,
			SpacingMax:   cfg.SpacingMax,
			Rules:        rules,
		}, nil
	default:
		return nil, fmt.Errorf("sizing: unknown policy %q", cfg.Policy)
	}
}

// FixedLadder 使用预设的非递减手数序列；间距为 max(ATR*系数, floor)。
type FixedLadder struct {
	Lots         []float64
	SpacingFloor float64
	Coefficients map[string]float64
	// FloorMultipliers 放大个别行情下的间距下限，如 volatile 1.5。
	FloorMultipliers map[string]float64
	Rules            LotRules
}

func (f *FixedLadder) Name() string { return PolicyFixedLadder }

func (f *FixedLadder) Plan(req Request) (Plan, error) {
	if len(f.Lots) == 0 {
		return Plan{}, ErrNoRungs
	}
	idx := req.Step
	if idx < 0 {
		idx = 0
	}
	if idx >= len(f.Lots) {
		idx = len(f.Lots) - 1
	}
	floor := f.SpacingFloor * coefficientFor(f.FloorMultipliers, req.Regime)
	spacing := math.Max(sanitize(req.ATR)*coefficientFor(f.Coefficients, req.Regime), floor)
	return Plan{
		Lot:         f.Rules.Normalize(f.Lots[idx]),
		MinDistance: spacing,
		Policy:      f.Name(),
	}, nil
}

// coefficientFor 依次查找 "trending_up/strong"、"trending_up"、"trending"，缺省为 1。
func coefficientFor(coeffs map[string]float64, c regime.Classification) float64 {
	if len(coeffs) == 0 {
		return 1
	}
	keys := []string{c.String(), string(c.Regime)}
	if c.IsTrending() {
		keys = append(keys, "trending")
	}
	for _, k := range keys {
		if v, ok := coeffs[k]; ok && v > 0 {
			return v
		}
	}
	return 1
}

// VolMartingale 几何加仓：前两档按 EarlyGrowth，其后按 LateGrowth；
// ATR 高于均值时按比例降仓，并限制 lot*ATR*RiskConstant <= equity*MaxRiskPct%。
// 间距随档位线性增长并截断到 [SpacingMin, SpacingMax]。
type VolMartingale struct {
	BaseLot      float64
	EarlyGrowth  float64
	LateGrowth   float64
	RiskConstant float64
	MaxRiskPct   float64
	SpacingBase  float64
	SpacingStep  float64
	SpacingMin   float64
	SpacingMax   float64
	Rules        LotRules
}

func (v *VolMartingale) Name() string { return PolicyVolMartingale }

func (v *VolMartingale) Plan(req Request) (Plan, error) {
	step := req.Step
	if step < 0 {
		step = 0
	}
	early := math.Min(float64(step), 2)
	late := math.Max(float64(step-2), 0)
	lot := v.BaseLot * math.Pow(growth(v.EarlyGrowth), early) * math.Pow(growth(v.LateGrowth), late)

	atr := sanitize(req.ATR)
	avg := sanitize(req.ATRAverage)
	if atr > 0 && avg > 0 && atr > avg {
		lot *= avg / atr
	}
	if atr > 0 && v.RiskConstant > 0 && v.MaxRiskPct > 0 {
		budget := math.Max(sanitize(req.Equity), 0) * v.MaxRiskPct / 100
		lot = math.Min(lot, budget/(atr*v.RiskConstant))
	}

	spacing := v.SpacingBase + float64(step)*v.SpacingStep
	if v.SpacingMax > 0 {
		spacing = math.Min(spacing, v.SpacingMax)
	}
	spacing = math.Max(spacing, v.SpacingMin)
	return Plan{
		Lot:         v.Rules.Normalize(lot),
		MinDistance: spacing,
		Policy:      v.Name(),
	}, nil
}

func growth(g float64) float64 {
	if g < 1 || math.IsNaN(g) || math.IsInf(g, 0) {
		return 1
	}
	return g
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
