package market

import (
	"math"
	"time"
)

// Candle 为单根 OHLCV K 线，时间字段均为毫秒时间戳。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

func (c Candle) TimeString() string {
	ts := c.CloseTime
	if ts == 0 {
		ts = c.OpenTime
	}
	if ts <= 0 {
		return "-"
	}
	return time.UnixMilli(ts).UTC().Format("01-02 15:04") + "Z"
}

// Range 返回 high-low。
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body 返回实体绝对值。
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Window 是按时间升序排列的 K 线窗口，最后一根为最新。
type Window []Candle

func (w Window) Len() int { return len(w) }

// Last 返回最新一根 K 线；窗口为空时 ok=false。
func (w Window) Last() (Candle, bool) {
	if len(w) == 0 {
		return Candle{}, false
	}
	return w[len(w)-1], true
}

// Tail 返回最近 n 根（不复制底层数组）。
func (w Window) Tail(n int) Window {
	if n <= 0 {
		return nil
	}
	if n >= len(w) {
		return w
	}
	return w[len(w)-n:]
}

func (w Window) Opens() []float64 {
	return w.series(func(c Candle) float64 { return c.Open })
}

func (w Window) Highs() []float64 {
	return w.series(func(c Candle) float64 { return c.High })
}

func (w Window) Lows() []float64 {
	return w.series(func(c Candle) float64 { return c.Low })
}

func (w Window) Closes() []float64 {
	return w.series(func(c Candle) float64 { return c.Close })
}

func (w Window) Volumes() []float64 {
	return w.series(func(c Candle) float64 { return c.Volume })
}

func (w Window) series(pick func(Candle) float64) []float64 {
	out := make([]float64, len(w))
	for i, c := range w {
		out[i] = pick(c)
	}
	return out
}

// Clone 深拷贝窗口。
func (w Window) Clone() Window {
	if w == nil {
		return nil
	}
	out := make(Window, len(w))
	copy(out, w)
	return out
}
