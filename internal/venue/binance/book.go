package binance

import (
	"fmt"
	"sync"
	"time"

	"gridbot/internal/basket"
)

// lotBook 记录本进程开出的每一笔网格仓位。交易所在单向持仓模式下只给出
// 合并后的净头寸，book 用于把净头寸拆回逐笔持仓。
type lotBook struct {
	mu   sync.Mutex
	lots []basket.Position
	seq  int
}

func (b *lotBook) add(p basket.Position) basket.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("lot-%d-%d", p.OpenTime.UnixMilli(), b.seq)
	}
	b.lots = append(b.lots, p)
	return p
}

func (b *lotBook) remove(id string) (basket.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.lots {
		if p.ID == id {
			b.lots = append(b.lots[:i], b.lots[i+1:]...)
			return p, true
		}
	}
	return basket.Position{}, false
}

// reconcile 使 book 与交易所净头寸一致：净头寸为 0 时清空；
// 小于 book 总量时从最新的仓位开始扣减；大于时补一笔外部仓位。
func (b *lotBook) reconcile(symbol string, amount, entry, mark float64, now time.Time, step float64) []basket.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	eps := step / 2
	if eps <= 0 {
		eps = 1e-9
	}
	if amount <= eps {
		b.lots = nil
		return nil
	}
	total := 0.0
	for _, p := range b.lots {
		total += p.Volume
	}
	for total-amount > eps && len(b.lots) > 0 {
		n := len(b.lots) - 1
		excess := total - amount
		if b.lots[n].Volume <= excess+eps {
			total -= b.lots[n].Volume
			b.lots = b.lots[:n]
			continue
		}
		b.lots[n].Volume -= excess
		total = amount
	}
	if amount-total > eps {
		b.seq++
		b.lots = append(b.lots, basket.Position{
			ID:         fmt.Sprintf("external-%d", b.seq),
			Symbol:     symbol,
			Volume:     amount - total,
			EntryPrice: entry,
			OpenTime:   now,
		})
	}
	out := make([]basket.Position, len(b.lots))
	for i, p := range b.lots {
		p.Profit = (mark - p.EntryPrice) * p.Volume
		out[i] = p
	}
	return out
}
