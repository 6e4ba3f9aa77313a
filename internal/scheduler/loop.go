package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"gridbot/internal/logger"
)

// Task 为一次 tick 的执行体；返回的错误只记录，不会终止循环。
type Task func(ctx context.Context) error

// Loop 以固定节拍运行 Task。节拍锚定在启动时刻，
// 某次执行超时后跳过错过的节拍，不会补跑。
type Loop struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
	// OnTick 在每次执行后回调，err 为 Task 返回值或 panic 转换的错误。
	OnTick func(name string, err error, elapsed time.Duration)

	nowFn func() time.Time
}

func NewLoop(name string, interval time.Duration) *Loop {
	return &Loop{
		Name:           name,
		Interval:       interval,
		RunImmediately: true,
		nowFn:          time.Now,
	}
}

// Run 阻塞直到 ctx 结束，返回 ctx.Err()。
func (l *Loop) Run(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("scheduler[%s]: task is nil", l.Name)
	}
	if l.Interval <= 0 {
		return fmt.Errorf("scheduler[%s]: invalid interval=%s", l.Name, l.Interval)
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}
	anchor := l.nowFn()
	logger.Infof("scheduler[%s]: started interval=%s run_immediately=%v", l.Name, l.Interval, l.RunImmediately)

	if l.RunImmediately {
		l.runOnce(ctx, task)
	}
	for {
		next := nextFixedTimeAfter(anchor, l.Interval, l.nowFn())
		if !waitUntil(ctx, next.Sub(l.nowFn())) {
			logger.Infof("scheduler[%s]: ctx done, exit", l.Name)
			return ctx.Err()
		}
		l.runOnce(ctx, task)
	}
}

func (l *Loop) runOnce(ctx context.Context, task Task) {
	start := l.nowFn()
	err := safeRun(ctx, l.Name, task)
	elapsed := l.nowFn().Sub(start)
	if err != nil && ctx.Err() == nil {
		logger.Warnf("scheduler[%s]: tick failed after %s: %v", l.Name, elapsed.Truncate(time.Millisecond), err)
	}
	if l.OnTick != nil {
		l.OnTick(l.Name, err, elapsed)
	}
}

func safeRun(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("scheduler[%s]: tick panic: %v", name, r)
			debug.PrintStack()
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return task(ctx)
}

func waitUntil(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextFixedTimeAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}
