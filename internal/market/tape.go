package market

import (
	"sync"
	"time"
)

// Tick 为一次报价采样。
type Tick struct {
	Time time.Time `json:"time"`
	Bid  float64   `json:"bid"`
}

// Tape 保存最近 maxAge 内的 bid 采样，决策与观察两个循环都会写入。
type Tape struct {
	maxAge time.Duration

	mu    sync.Mutex
	ticks []Tick
}

func NewTape(maxAge time.Duration) *Tape {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &Tape{maxAge: maxAge}
}

// Record 追加一次采样，乱序或无效的报价被丢弃。
func (t *Tape) Record(at time.Time, bid float64) {
	if bid <= 0 || at.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.ticks); n > 0 && at.Before(t.ticks[n-1].Time) {
		return
	}
	t.ticks = append(t.ticks, Tick{Time: at, Bid: bid})
	cut := at.Add(-t.maxAge)
	drop := 0
	for drop < len(t.ticks) && t.ticks[drop].Time.Before(cut) {
		drop++
	}
	if drop > 0 {
		t.ticks = append(t.ticks[:0], t.ticks[drop:]...)
	}
}

// Since 返回 from（含）之后的采样副本。
func (t *Tape) Since(from time.Time) []Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Tick, 0, len(t.ticks))
	for _, tk := range t.ticks {
		if !tk.Time.Before(from) {
			out = append(out, tk)
		}
	}
	return out
}

// BidRange 返回采样中 bid 的最高与最低值。
func BidRange(ticks []Tick) (high, low float64, ok bool) {
	if len(ticks) == 0 {
		return 0, 0, false
	}
	high, low = ticks[0].Bid, ticks[0].Bid
	for _, tk := range ticks[1:] {
		if tk.Bid > high {
			high = tk.Bid
		}
		if tk.Bid < low {
			low = tk.Bid
		}
	}
	return high, low, true
}
