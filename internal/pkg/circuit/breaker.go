package circuit

import (
	"errors"
	"sync"
	"time"

	"gridbot/internal/logger"
)

// ErrOpen 表示熔断器处于打开状态，调用被直接拒绝。
var ErrOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	threshold     int
	timeout       time.Duration
	lastFailure   time.Time
	name          string
	now           func() time.Time
	onStateChange func(name string, from, to State)
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		state:     StateClosed,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) SetStateChangeHandler(handler func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = handler
}

// State 返回当前状态；打开状态超时后在下一次 Allow 时才转为半开。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.timeout {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateClosed)
		cb.failures = 0
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// Execute 在熔断器保护下执行 fn。trips 为 nil 时任何错误都计为失败；
// 否则仅 trips 返回 true 的错误计入失败，其余视为成功调用。
func (cb *CircuitBreaker) Execute(fn func() error, trips func(error) bool) error {
	if !cb.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil && (trips == nil || trips(err)) {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return err
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
	} else {
		logger.Warnf("CircuitBreaker %s state change: %s -> %s (failures=%d/%d, timeout=%s, lastFailure=%s ago)",
			cb.name, from, to, cb.failures, cb.threshold, cb.timeout, cb.now().Sub(cb.lastFailure).Round(time.Second))
	}
}
