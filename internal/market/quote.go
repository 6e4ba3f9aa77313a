package market

import "time"

// Quote 为某一时刻的最优买卖价。
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	Time   time.Time `json:"time"`
}

// Spread 返回 ask-bid；任一侧缺失时返回 0。
func (q Quote) Spread() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return q.Ask - q.Bid
}

// Mid 返回中间价，缺少盘口时回退到 Last。
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid
}
