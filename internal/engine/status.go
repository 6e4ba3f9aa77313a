package engine

import (
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/ladder"
	"gridbot/internal/risk"
)

// Status 为状态接口展示的运行快照。
type Status struct {
	Symbol  string `json:"symbol"`
	Venue   string `json:"venue"`
	Variant string `json:"variant"`
	DryRun  bool   `json:"dry_run"`

	Ladder      ladder.State     `json:"ladder"`
	Risk        risk.View        `json:"risk"`
	BasketState string           `json:"basket_state"`
	Basket      basket.Aggregate `json:"basket"`
	Targets     basket.Targets   `json:"targets"`
	Regime      string           `json:"regime"`
	Equity      float64          `json:"equity"`

	LastDecision time.Time `json:"last_decision,omitempty"`
	LastWatcher  time.Time `json:"last_watcher,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Status 返回当前快照；梯子、风控与篮子状态实时读取。
func (e *Engine) Status() Status {
	now := e.now()
	e.mu.RLock()
	st := e.status
	e.mu.RUnlock()
	st.Ladder = e.keeper.Snapshot()
	st.Risk = e.governor.View(now)
	st.BasketState = e.basket.State().String()
	st.Targets = e.basket.LastTargets()
	return st
}

func (e *Engine) updateStatus(fn func(*Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}
