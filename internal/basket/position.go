package basket

import (
	"sort"
	"time"
)

// Position 为 venue 返回的单笔多头持仓。
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Volume     float64   `json:"volume"`
	EntryPrice float64   `json:"entry_price"`
	OpenTime   time.Time `json:"open_time"`
	Profit     float64   `json:"profit"`
}

// Aggregate 汇总整个篮子。
type Aggregate struct {
	Count          int       `json:"count"`
	TotalVolume    float64   `json:"total_volume"`
	VWAP           float64   `json:"vwap"`
	FloatingPnL    float64   `json:"floating_pnl"`
	LastEntryPrice float64   `json:"last_entry_price"`
	LastEntryTime  time.Time `json:"last_entry_time"`
}

func (a Aggregate) Empty() bool { return a.Count == 0 }

// Summarize 计算篮子聚合值；非正数量的持仓会被忽略。
func Summarize(positions []Position) Aggregate {
	var agg Aggregate
	var notional float64
	for _, p := range positions {
		if p.Volume <= 0 {
			continue
		}
		agg.Count++
		agg.TotalVolume += p.Volume
		notional += p.Volume * p.EntryPrice
		agg.FloatingPnL += p.Profit
		if agg.LastEntryTime.IsZero() || !p.OpenTime.Before(agg.LastEntryTime) {
			agg.LastEntryTime = p.OpenTime
			agg.LastEntryPrice = p.EntryPrice
		}
	}
	if agg.TotalVolume > 0 {
		agg.VWAP = notional / agg.TotalVolume
	}
	return agg
}

// SortByOpenTime 按开仓时间升序排列，平仓时先平最早的仓位。
func SortByOpenTime(positions []Position) []Position {
	out := append([]Position(nil), positions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}
