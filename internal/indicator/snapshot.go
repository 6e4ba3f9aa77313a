package indicator

import (
	"fmt"

	"gridbot/internal/market"
)

// Snapshot 为单轮评估的指标快照，不持久化。
type Snapshot struct {
	ATR         float64 `json:"atr"`
	ATRAverage  float64 `json:"atr_average"`
	ADX         float64 `json:"adx"`
	PlusDI      float64 `json:"plus_di"`
	MinusDI     float64 `json:"minus_di"`
	Chop        float64 `json:"chop"`
	RSI         float64 `json:"rsi"`
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	BBWidth     float64 `json:"bb_width"`
	SwingHigh   float64 `json:"swing_high"`
	SwingLow    float64 `json:"swing_low"`
	BodyRatio   float64 `json:"body_ratio"`
	BodyOK      bool    `json:"body_ok"`
	Volume      float64 `json:"volume"`
	VolumeMA    float64 `json:"volume_ma"`
	VolumeEMA   float64 `json:"volume_ema"`
	VolumeRatio float64 `json:"volume_ratio"`
	Close       float64 `json:"close"`
	CandleTime  int64   `json:"candle_time"`
}

// Compute 基于窗口计算完整快照。窗口短于 MinBars 或整体零波幅时返回 ErrInsufficientData。
func Compute(w market.Window, s Settings) (Snapshot, error) {
	s = s.normalized()
	need := MinBars(s)
	if len(w) < need {
		return Snapshot{}, fmt.Errorf("%w: need %d bars, got %d", ErrInsufficientData, need, len(w))
	}
	cur := w[len(w)-1]
	snap := Snapshot{
		Close:      cur.Close,
		CandleTime: cur.OpenTime,
		Volume:     cur.Volume,
	}

	atr := ATR(w, s.ATRPeriod, s.Smoothing)
	snap.ATR = last(atr)
	valid := atr[s.ATRPeriod:]
	if len(valid) >= s.ATRAveragePeriod {
		tail := valid[len(valid)-s.ATRAveragePeriod:]
		sum := 0.0
		for _, v := range tail {
			sum += v
		}
		snap.ATRAverage = finite(sum / float64(len(tail)))
	}

	adx, plus, minus := ADX(w, s.ADXPeriod, s.Smoothing)
	snap.ADX, snap.PlusDI, snap.MinusDI = last(adx), last(plus), last(minus)

	chop, ok := Choppiness(w, s.ChopPeriod)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: zero range over last %d bars", ErrInsufficientData, s.ChopPeriod)
	}
	snap.Chop = chop

	closes := w.Closes()
	snap.RSI = last(RSI(closes, s.RSIPeriod))
	snap.EMAFast = last(EMA(closes, s.EMAFast))
	snap.EMASlow = last(EMA(closes, s.EMASlow))
	snap.BBWidth, _ = BollingerWidth(closes, s.BBPeriod, s.BBDeviation)
	snap.SwingHigh, snap.SwingLow, _ = Swing(w, s.SwingLookback)
	snap.BodyRatio, snap.BodyOK = BodyRatio(cur)
	volumes := w.Volumes()
	snap.VolumeRatio, snap.VolumeMA, _ = VolumeRatio(volumes, s.VolumeMAPeriod)
	snap.VolumeEMA = last(EMA(volumes, s.VolumeMAPeriod))
	return snap, nil
}

// ATRRatio 返回 ATR / ATRAverage；均值缺失时为 1。
func (s Snapshot) ATRRatio() float64 {
	if s.ATRAverage <= epsilon {
		return 1
	}
	return s.ATR / s.ATRAverage
}

// TrendUp 表示快线在慢线之上。
func (s Snapshot) TrendUp() bool {
	return s.EMAFast > s.EMASlow
}
