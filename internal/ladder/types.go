package ladder

import (
	"errors"
	"time"
)

var (
	// ErrExhausted 表示梯子已到最大档位。
	ErrExhausted = errors.New("ladder: max steps reached")
	// ErrBusy 表示已有未完成的预留。
	ErrBusy = errors.New("ladder: reservation already pending")
	// ErrStaleReservation 表示预留已被 Reset 或替换，不能再提交。
	ErrStaleReservation = errors.New("ladder: stale reservation")
	// ErrStopped 表示 Keeper 已停止。
	ErrStopped = errors.New("ladder: keeper stopped")
)

// State 为梯子状态，仅由 Keeper 的事件循环修改。
type State struct {
	Step            int                  `json:"step"`
	MaxSteps        int                  `json:"max_steps"`
	LastEntryTime   time.Time            `json:"last_entry_time"`
	LastEntryBySize map[string]time.Time `json:"last_entry_by_size,omitempty"`
	LastEntryCandle int64                `json:"last_entry_candle"`
	LastEntryPrice  float64              `json:"last_entry_price"`
	Epoch           uint64               `json:"epoch"`
	Pending         *Reservation         `json:"pending,omitempty"`
}

func newState(maxSteps int) *State {
	return &State{MaxSteps: maxSteps, LastEntryBySize: make(map[string]time.Time)}
}

// Exhausted 表示不能再加仓。
func (s State) Exhausted() bool {
	return s.Step >= s.MaxSteps
}

// LastEntryForSize 返回该手数最近一次成交时间。
func (s State) LastEntryForSize(key string) (time.Time, bool) {
	ts, ok := s.LastEntryBySize[key]
	return ts, ok
}

func (s *State) clone() *State {
	cp := *s
	cp.LastEntryBySize = make(map[string]time.Time, len(s.LastEntryBySize))
	for k, v := range s.LastEntryBySize {
		cp.LastEntryBySize[k] = v
	}
	if s.Pending != nil {
		p := *s.Pending
		cp.Pending = &p
	}
	return &cp
}

// Reservation 为一次试探性的档位预留，成交后 Commit，失败则 Rollback。
type Reservation struct {
	Token     string    `json:"token"`
	Step      int       `json:"step"`
	LotKey    string    `json:"lot_key"`
	Epoch     uint64    `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
}

// Fill 为成交回报。
type Fill struct {
	Price      float64
	Lot        float64
	Time       time.Time
	CandleTime int64
}

type commandType string

const (
	cmdReserve     commandType = "reserve"
	cmdCommit      commandType = "commit"
	cmdRollback    commandType = "rollback"
	cmdReset       commandType = "reset"
	cmdReconstruct commandType = "reconstruct"
)

type reconstructPayload struct {
	Count     int
	LastOpen  time.Time
	LastPrice float64
}

type commitPayload struct {
	Reservation Reservation
	Fill        Fill
}

// envelope 是事件循环接收的消息信封。
type envelope struct {
	Type    commandType
	Payload any
	ReplyCh chan reply
}

type reply struct {
	Reservation Reservation
	Err         error
}
