package indicator

import (
	"math"

	"gridbot/internal/market"

	talib "github.com/markcheno/go-talib"
)

const epsilon = 1e-9

// TrueRange 返回 TR 序列；下标 0 没有前收盘价，值为 0。
func TrueRange(w market.Window) []float64 {
	if len(w) < 2 {
		return make([]float64, len(w))
	}
	return talib.TRange(w.Highs(), w.Lows(), w.Closes())
}

// ATR 返回与窗口等长的 ATR 序列，前 period 个值无效（为 0）。
func ATR(w market.Window, period int, mode Smoothing) []float64 {
	n := len(w)
	if period <= 0 || n <= period {
		return make([]float64, n)
	}
	if mode == SmoothSMA {
		tr := TrueRange(w)
		return shiftSMA(tr, period, 1)
	}
	return talib.Atr(w.Highs(), w.Lows(), w.Closes(), period)
}

// ADX 返回 adx、+DI、-DI 序列。Wilder 模式下 ADX 从下标 2*period-1 起有效。
func ADX(w market.Window, period int, mode Smoothing) (adx, plusDI, minusDI []float64) {
	n := len(w)
	if period <= 0 || n < 2*period {
		z := make([]float64, n)
		return z, make([]float64, n), make([]float64, n)
	}
	if mode == SmoothSMA {
		return adxSMA(w, period)
	}
	highs, lows, closes := w.Highs(), w.Lows(), w.Closes()
	return talib.Adx(highs, lows, closes, period),
		talib.PlusDI(highs, lows, closes, period),
		talib.MinusDI(highs, lows, closes, period)
}

// adxSMA 为简单均值版本：DI=100*SMA(±DM)/SMA(TR)，ADX=SMA(DX)。
func adxSMA(w market.Window, period int) (adx, plusDI, minusDI []float64) {
	n := len(w)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := w[i].High - w[i-1].High
		down := w[i-1].Low - w[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	tr := shiftSMA(TrueRange(w), period, 1)
	pdm := shiftSMA(plusDM, period, 1)
	mdm := shiftSMA(minusDM, period, 1)
	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if tr[i] > epsilon {
			plusDI[i] = 100 * pdm[i] / tr[i]
			minusDI[i] = 100 * mdm[i] / tr[i]
		}
		if sum := plusDI[i] + minusDI[i]; sum > epsilon {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}
	adx = shiftSMA(dx, period, period)
	return adx, plusDI, minusDI
}

// shiftSMA 对 src[from:] 求 SMA，并对齐回原下标；无效位置为 0。
func shiftSMA(src []float64, period, from int) []float64 {
	out := make([]float64, len(src))
	if from >= len(src) || len(src)-from < period {
		return out
	}
	sma := talib.Sma(src[from:], period)
	copy(out[from:], sma)
	return out
}

// Choppiness 计算最近 period 根的震荡指数：
// 100 * log10(sum(TR,N) / (max(high,N) - min(low,N))) / log10(N)，分母下限为 epsilon。
func Choppiness(w market.Window, period int) (float64, bool) {
	n := len(w)
	if period < 2 || n < period+1 {
		return 0, false
	}
	tr := TrueRange(w)
	sum := 0.0
	hi := -math.MaxFloat64
	lo := math.MaxFloat64
	for i := n - period; i < n; i++ {
		sum += tr[i]
		hi = math.Max(hi, w[i].High)
		lo = math.Min(lo, w[i].Low)
	}
	if sum <= epsilon {
		return 0, false
	}
	den := math.Max(hi-lo, epsilon)
	return 100 * math.Log10(sum/den) / math.Log10(float64(period)), true
}

// RSI 使用 Wilder RSI。
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return make([]float64, len(closes))
	}
	return talib.Rsi(closes, period)
}

// EMA 为 talib EMA（以 SMA 作为种子）。
func EMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return make([]float64, len(closes))
	}
	return talib.Ema(closes, period)
}

// BollingerWidth 返回最新一根的相对带宽 (upper-lower)/middle。
func BollingerWidth(closes []float64, period int, dev float64) (float64, bool) {
	if period <= 1 || len(closes) < period {
		return 0, false
	}
	upper, middle, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
	last := len(closes) - 1
	if middle[last] <= epsilon {
		return 0, false
	}
	return finite((upper[last] - lower[last]) / middle[last]), true
}

// Swing 返回最近 lookback 根（含当前 bar）的最高价与最低价。
func Swing(w market.Window, lookback int) (high, low float64, ok bool) {
	if lookback <= 0 || len(w) < lookback {
		return 0, 0, false
	}
	highs := talib.Max(w.Highs(), lookback)
	lows := talib.Min(w.Lows(), lookback)
	return highs[len(highs)-1], lows[len(lows)-1], true
}

// BodyRatio 返回 |close-open|/(high-low)；零波幅视为失败（ok=false）。
func BodyRatio(c market.Candle) (float64, bool) {
	rng := c.Range()
	if rng <= epsilon {
		return 0, false
	}
	return c.Body() / rng, true
}

// VolumeRatio 返回最新成交量与其 period 均量之比，以及均量本身。
func VolumeRatio(volumes []float64, period int) (ratio, ma float64, ok bool) {
	if period <= 0 || len(volumes) < period {
		return 0, 0, false
	}
	sma := talib.Sma(volumes, period)
	ma = sma[len(sma)-1]
	if ma <= epsilon {
		return 0, ma, true
	}
	return volumes[len(volumes)-1] / ma, ma, true
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return finite(series[len(series)-1])
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
