// Package ladder 以单 goroutine 持有梯子状态，决策循环与篮子监控都通过消息修改它。
package ladder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"gridbot/internal/logger"

	"github.com/google/uuid"
)

// reservationTTL 之后未提交的预留视为泄漏，可被新的预留替换。
const reservationTTL = time.Minute

// Keeper 是梯子状态的唯一所有者。
type Keeper struct {
	maxSteps int
	now      func() time.Time

	msgCh    chan envelope
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	state    *State
	snapshot atomic.Value
}

func NewKeeper(maxSteps int) *Keeper {
	if maxSteps <= 0 {
		maxSteps = 1
	}
	k := &Keeper{
		maxSteps: maxSteps,
		now:      time.Now,
		msgCh:    make(chan envelope, 16),
		stopCh:   make(chan struct{}),
		state:    newState(maxSteps),
	}
	k.refreshSnapshot()
	return k
}

func (k *Keeper) Start() {
	k.wg.Add(1)
	go k.runLoop()
}

func (k *Keeper) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
	k.wg.Wait()
}

// Snapshot 返回最近一次状态的深拷贝。
func (k *Keeper) Snapshot() State {
	val := k.snapshot.Load()
	if val == nil {
		return *newState(k.maxSteps)
	}
	return *val.(*State).clone()
}

// Reserve 为下一档预留位置；lotKey 为规范化后的手数键。
func (k *Keeper) Reserve(ctx context.Context, lotKey string) (Reservation, error) {
	r, err := k.sendSync(ctx, envelope{Type: cmdReserve, Payload: lotKey})
	return r.Reservation, err
}

// Commit 在成交后推进档位并记录入场时间、K 线与价格。
func (k *Keeper) Commit(ctx context.Context, res Reservation, fill Fill) error {
	_, err := k.sendSync(ctx, envelope{Type: cmdCommit, Payload: commitPayload{Reservation: res, Fill: fill}})
	return err
}

// Rollback 丢弃预留，档位保持不变。
func (k *Keeper) Rollback(ctx context.Context, res Reservation) error {
	_, err := k.sendSync(ctx, envelope{Type: cmdRollback, Payload: res})
	return err
}

// Reset 回到初始状态并递增 epoch，使所有未完成的预留失效。
func (k *Keeper) Reset(ctx context.Context, reason string) error {
	_, err := k.sendSync(ctx, envelope{Type: cmdReset, Payload: reason})
	return err
}

// Reconstruct 根据观测到的持仓数保守地重建档位（截断到最大档位）。
func (k *Keeper) Reconstruct(ctx context.Context, count int, lastOpen time.Time, lastPrice float64) error {
	_, err := k.sendSync(ctx, envelope{Type: cmdReconstruct, Payload: reconstructPayload{Count: count, LastOpen: lastOpen, LastPrice: lastPrice}})
	return err
}

func (k *Keeper) sendSync(ctx context.Context, env envelope) (reply, error) {
	env.ReplyCh = make(chan reply, 1)
	select {
	case k.msgCh <- env:
	case <-k.stopCh:
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-env.ReplyCh:
		return r, r.Err
	case <-k.stopCh:
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (k *Keeper) runLoop() {
	defer k.wg.Done()
	logger.Debugf("ladder keeper started (max_steps=%d)", k.maxSteps)
	for {
		select {
		case env := <-k.msgCh:
			k.handle(env)
		case <-k.stopCh:
			logger.Debugf("ladder keeper stopping")
			return
		}
	}
}

func (k *Keeper) handle(env envelope) {
	var out reply
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("ladder keeper panic handling %s: %v", env.Type, r)
			debug.PrintStack()
			out = reply{Err: fmt.Errorf("panic: %v", r)}
		}
		k.refreshSnapshot()
		if env.ReplyCh != nil {
			env.ReplyCh <- out
			close(env.ReplyCh)
		}
	}()

	switch env.Type {
	case cmdReserve:
		out = k.reserve(env.Payload.(string))
	case cmdCommit:
		out.Err = k.commit(env.Payload.(commitPayload))
	case cmdRollback:
		out.Err = k.rollback(env.Payload.(Reservation))
	case cmdReset:
		k.reset(env.Payload.(string))
	case cmdReconstruct:
		k.reconstruct(env.Payload.(reconstructPayload))
	default:
		out.Err = fmt.Errorf("ladder: unknown command %s", env.Type)
	}
}

func (k *Keeper) reserve(lotKey string) reply {
	s := k.state
	if s.Exhausted() {
		return reply{Err: ErrExhausted}
	}
	now := k.now()
	if s.Pending != nil {
		if now.Sub(s.Pending.CreatedAt) < reservationTTL {
			return reply{Err: ErrBusy}
		}
		logger.Warnf("ladder: dropping expired reservation %s (step %d)", s.Pending.Token, s.Pending.Step)
	}
	res := Reservation{
		Token:     uuid.NewString(),
		Step:      s.Step,
		LotKey:    lotKey,
		Epoch:     s.Epoch,
		CreatedAt: now,
	}
	s.Pending = &res
	return reply{Reservation: res}
}

func (k *Keeper) matches(res Reservation) bool {
	s := k.state
	return s.Pending != nil && s.Pending.Token == res.Token && res.Epoch == s.Epoch
}

func (k *Keeper) commit(p commitPayload) error {
	if !k.matches(p.Reservation) {
		return ErrStaleReservation
	}
	s := k.state
	s.Pending = nil
	s.Step = p.Reservation.Step + 1
	if s.Step > s.MaxSteps {
		s.Step = s.MaxSteps
	}
	ts := p.Fill.Time
	if ts.IsZero() {
		ts = k.now()
	}
	s.LastEntryTime = ts
	if p.Reservation.LotKey != "" {
		s.LastEntryBySize[p.Reservation.LotKey] = ts
	}
	s.LastEntryCandle = p.Fill.CandleTime
	s.LastEntryPrice = p.Fill.Price
	return nil
}

func (k *Keeper) rollback(res Reservation) error {
	if !k.matches(res) {
		return ErrStaleReservation
	}
	k.state.Pending = nil
	return nil
}

func (k *Keeper) reset(reason string) {
	prev := k.state
	next := newState(k.maxSteps)
	next.Epoch = prev.Epoch + 1
	k.state = next
	logger.Infof("ladder reset: step %d -> 0 (epoch %d, reason=%s)", prev.Step, next.Epoch, reason)
}

func (k *Keeper) reconstruct(p reconstructPayload) {
	count := p.Count
	if count < 0 {
		count = 0
	}
	if count > k.maxSteps {
		count = k.maxSteps
	}
	s := k.state
	s.Step = count
	s.Pending = nil
	if count > 0 {
		s.LastEntryTime = p.LastOpen
		s.LastEntryPrice = p.LastPrice
	}
	logger.Infof("ladder reconstructed: step=%d last_price=%.5f", s.Step, s.LastEntryPrice)
}

func (k *Keeper) refreshSnapshot() {
	k.snapshot.Store(k.state.clone())
}
