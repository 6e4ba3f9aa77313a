package sizing

import (
	"math"

	"github.com/shopspring/decimal"
)

// LotRules 描述交易端的下单粒度。
type LotRules struct {
	Min  float64
	Step float64
	Max  float64
}

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// Normalize 将原始手数规整为合法手数：
// 非有限值或 <=0 取最小手；按步长向下取整；低于最小手时上调到最小手；
// 超过最大手时取不超过最大手的最大步长倍数。
func (r LotRules) Normalize(raw float64) float64 {
	step := decFromFloat(r.Step)
	if step.Sign() <= 0 {
		step = decFromFloat(0.01)
	}
	minLot := decFromFloat(r.Min).Div(step).Ceil().Mul(step)
	if minLot.Sign() <= 0 {
		minLot = step
	}
	maxLot := decFromFloat(r.Max).Div(step).Floor().Mul(step)
	if maxLot.LessThan(minLot) {
		maxLot = minLot
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return decToFloat(minLot)
	}
	lot := decFromFloat(raw).Div(step).Floor().Mul(step)
	if lot.LessThan(minLot) {
		lot = minLot
	}
	if lot.GreaterThan(maxLot) {
		lot = maxLot
	}
	return decToFloat(lot)
}

// Valid 判断 lot 是否为步长整数倍且位于 [min,max]。
func (r LotRules) Valid(lot float64) bool {
	if r.Step <= 0 {
		return false
	}
	d := decFromFloat(lot)
	if !d.Div(decFromFloat(r.Step)).IsInteger() {
		return false
	}
	return d.GreaterThanOrEqual(decFromFloat(r.Min)) && d.LessThanOrEqual(decFromFloat(r.Max))
}

// LotKey 返回手数的规范字符串，用作按手数冷却的键。
func LotKey(lot float64) string {
	return decFromFloat(lot).Round(8).String()
}
