// Package filter 实现入场过滤器流水线：一组相互独立的闸门，全部执行后取逻辑与。
package filter

import (
	"fmt"
	"strings"
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/indicator"
	"gridbot/internal/ladder"
	"gridbot/internal/market"
	"gridbot/internal/regime"
	"gridbot/internal/risk"
	"gridbot/internal/sizing"
)

// Gate 描述一个入场闸门。Applies 返回 false 时该闸门不参与本轮判定。
type Gate interface {
	Name() string
	Applies(in *Input) bool
	Check(in *Input) Result
}

// HTFView 为高周期 EMA 偏向。
type HTFView struct {
	Timeframe string  `json:"timeframe"`
	EMAFast   float64 `json:"ema_fast"`
	EMASlow   float64 `json:"ema_slow"`
}

// Input 为单轮判定所需的全部只读数据。
type Input struct {
	Now      time.Time
	Location *time.Location

	Window   market.Window
	Ticks    []market.Tick // 最近的 bid 采样，按时间升序
	Snapshot indicator.Snapshot
	// DataErr 非空表示数据不足，本轮直接拒绝。
	DataErr error
	HTF     *HTFView

	Regime regime.Classification
	Ladder ladder.State
	Basket basket.Aggregate
	Quote  market.Quote
	Plan   sizing.Plan
	LotKey string
	Risk   risk.Decision
	Daily  risk.View
}

// Price 返回本轮用于判定的入场价：优先 ask，其次最新收盘价。
func (in *Input) Price() float64 {
	if in.Quote.Ask > 0 {
		return in.Quote.Ask
	}
	return in.Snapshot.Close
}

func (in *Input) localNow() time.Time {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	return in.Now.In(loc)
}

// Result 为单个闸门的结论。
type Result struct {
	Gate    string `json:"gate"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow(gate, format string, args ...any) Result {
	return Result{Gate: gate, Allowed: true, Reason: fmt.Sprintf(format, args...)}
}

func deny(gate, format string, args ...any) Result {
	return Result{Gate: gate, Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Verdict 为一轮判定的有序结果。
type Verdict struct {
	Variant string    `json:"variant"`
	At      time.Time `json:"at"`
	Results []Result  `json:"results"`
}

// Allowed 为所有结果的逻辑与。
func (v Verdict) Allowed() bool {
	for _, r := range v.Results {
		if !r.Allowed {
			return false
		}
	}
	return true
}

func (v Verdict) Denials() []Result {
	var out []Result
	for _, r := range v.Results {
		if !r.Allowed {
			out = append(out, r)
		}
	}
	return out
}

// Result 按闸门名查找结果。
func (v Verdict) Result(gate string) (Result, bool) {
	for _, r := range v.Results {
		if r.Gate == gate {
			return r, true
		}
	}
	return Result{}, false
}

func (v Verdict) String() string {
	var b strings.Builder
	for i, r := range v.Results {
		if i > 0 {
			b.WriteString(" | ")
		}
		if r.Allowed {
			b.WriteString(r.Gate + ":ok")
			continue
		}
		b.WriteString(r.Gate + ":deny(" + r.Reason + ")")
	}
	return b.String()
}

// GateError 封装闸门执行期间的 panic。
type GateError struct {
	Gate  string
	Panic any
}

func (e *GateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("gate %s panicked: %v", e.Gate, e.Panic)
}
