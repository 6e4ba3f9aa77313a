package paper

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"gridbot/internal/market"
)

// RandomWalk 生成随机游走 K 线，供无网络的 dry-run 使用。
type RandomWalk struct {
	interval time.Duration
	step     float64
	now      func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	price  float64
	window market.Window
}

func NewRandomWalk(seed int64, start, step float64, interval time.Duration) *RandomWalk {
	if interval <= 0 {
		interval = time.Minute
	}
	if step <= 0 {
		step = 0.5
	}
	return &RandomWalk{
		interval: interval,
		step:     step,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(seed)),
		price:    start,
	}
}

func (r *RandomWalk) FetchCandles(_ context.Context, _, _ string, count int) (market.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ivMs := r.interval.Milliseconds()
	current := r.now().UnixMilli() / ivMs * ivMs
	if len(r.window) == 0 {
		start := current - int64(count-1)*ivMs
		for ts := start; ts < current; ts += ivMs {
			r.window = append(r.window, r.bar(ts, 8))
		}
	}
	if last, ok := r.window.Last(); ok {
		for ts := last.OpenTime + ivMs; ts <= current; ts += ivMs {
			r.window = append(r.window, r.bar(ts, 1))
		}
	}
	// 当前 K 线继续演化
	if n := len(r.window); n > 0 {
		c := &r.window[n-1]
		c.Close = r.walk()
		c.High = math.Max(c.High, c.Close)
		c.Low = math.Min(c.Low, c.Close)
		c.Volume += float64(10 + r.rng.Intn(40))
	}
	if count > 0 && len(r.window) > 4*count {
		r.window = r.window.Tail(count).Clone()
	}
	return r.window.Tail(count).Clone(), nil
}

func (r *RandomWalk) bar(openTime int64, ticks int) market.Candle {
	open := r.price
	c := market.Candle{
		OpenTime:  openTime,
		CloseTime: openTime + r.interval.Milliseconds() - 1,
		Open:      open,
		High:      open,
		Low:       open,
	}
	for i := 0; i < ticks; i++ {
		p := r.walk()
		c.High = math.Max(c.High, p)
		c.Low = math.Min(c.Low, p)
		c.Volume += float64(20 + r.rng.Intn(80))
	}
	c.Close = r.price
	return c
}

func (r *RandomWalk) walk() float64 {
	r.price += r.rng.NormFloat64() * r.step
	if r.price <= r.step {
		r.price = r.step * 2
	}
	return r.price
}
