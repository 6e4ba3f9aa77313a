// Package risk 实现入场前的风控闸门：浮亏熔断、权益止损、日内亏损与交易次数上限。
package risk

import (
	"fmt"
	"sync"
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/config"
)

type Action int

const (
	None Action = iota
	// BlockEntries 仅禁止本轮开仓。
	BlockEntries
	// CloseAll 强制平掉整个篮子，本轮不再开仓。
	CloseAll
	// CloseAllAndPause 强制平仓并进入较长的暂停期。
	CloseAllAndPause
)

func (a Action) String() string {
	switch a {
	case BlockEntries:
		return "block_entries"
	case CloseAll:
		return "close_all"
	case CloseAllAndPause:
		return "close_all_and_pause"
	default:
		return "none"
	}
}

// Liquidates 表示该动作需要平仓。
func (a Action) Liquidates() bool {
	return a == CloseAll || a == CloseAllAndPause
}

const (
	KindFloatingKill = "floating_kill"
	KindEquityStop   = "equity_stop"
	KindDailyLoss    = "daily_loss"
	KindDailyTrades  = "daily_trades"
	KindPaused       = "paused"
)

// Decision 为单轮风控结论。
type Decision struct {
	Action Action `json:"action"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (d Decision) Allowed() bool { return d.Action == None }

// Limits 启动后只读。
type Limits struct {
	FloatingKill    float64
	EquityStopPct   float64
	EquityPause     time.Duration
	DailyLossPct    float64
	MaxTradesPerDay int
	DailyPause      bool
	MaxSteps        int
	Location        *time.Location
}

func LimitsFromConfig(cfg config.RiskConfig) Limits {
	return Limits{
		FloatingKill:    cfg.FloatingKill,
		EquityStopPct:   cfg.EquityStopPct,
		EquityPause:     time.Duration(cfg.EquityPauseMinutes) * time.Minute,
		DailyLossPct:    cfg.DailyLossPct,
		MaxTradesPerDay: cfg.MaxTradesPerDay,
		DailyPause:      cfg.DailyPause,
		MaxSteps:        cfg.MaxSteps,
		Location:        cfg.Location(),
	}
}

// Account 为风控所需的账户视图。
type Account struct {
	Equity  float64
	Balance float64
}

// View 为对外展示的只读状态。
type View struct {
	Day                string    `json:"day"`
	TradesToday        int       `json:"trades_today"`
	MaxTradesPerDay    int       `json:"max_trades_per_day"`
	SessionStartEquity float64   `json:"session_start_equity"`
	DayStartEquity     float64   `json:"day_start_equity"`
	LastEquity         float64   `json:"last_equity"`
	DailyDrawdownPct   float64   `json:"daily_drawdown_pct"`
	PausedUntil        time.Time `json:"paused_until,omitempty"`
	PauseKind          string    `json:"pause_kind,omitempty"`
}

// Paused 判断 now 时刻是否处于暂停期。
func (v View) Paused(now time.Time) bool {
	return !v.PausedUntil.IsZero() && now.Before(v.PausedUntil)
}

// Governor 的计数器只由决策循环修改；锁用于状态接口的并发读取。
type Governor struct {
	limits Limits

	mu             sync.Mutex
	sessionStart   float64
	day            string
	dayStartEquity float64
	lastEquity     float64
	trades         int
	pausedUntil    time.Time
	pauseKind      string
	// stopLatched 在权益止损触发后置位，直到篮子确认清空。
	stopLatched bool
}

func NewGovernor(limits Limits) *Governor {
	if limits.Location == nil {
		limits.Location = time.Local
	}
	return &Governor{limits: limits}
}

func (g *Governor) Limits() Limits { return g.limits }

// Evaluate 在每轮开仓判断前调用。
func (g *Governor) Evaluate(now time.Time, acct Account, agg basket.Aggregate) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	equity := acct.Equity
	g.rollover(now, equity)
	if equity > 0 {
		g.lastEquity = equity
		if g.sessionStart <= 0 {
			g.sessionStart = equity
		}
	}
	if g.stopLatched {
		if agg.Count > 0 {
			// 平仓未完成：每轮重发，直到持仓清空。
			return Decision{
				Action: CloseAllAndPause,
				Kind:   KindEquityStop,
				Reason: fmt.Sprintf("equity stop liquidation pending, %d positions open", agg.Count),
			}
		}
		if equity > 0 {
			// 篮子已清空，以当前权益开始新的会话。
			g.sessionStart = equity
			g.stopLatched = false
		}
	}

	floating := agg.FloatingPnL
	if agg.Count > 0 && floating <= g.limits.FloatingKill {
		return Decision{
			Action: CloseAll,
			Kind:   KindFloatingKill,
			Reason: fmt.Sprintf("floating pnl %.2f <= kill threshold %.2f", floating, g.limits.FloatingKill),
		}
	}

	if g.limits.EquityStopPct > 0 && g.sessionStart > 0 && equity > 0 {
		dd := drawdownPct(g.sessionStart, equity)
		if dd >= g.limits.EquityStopPct {
			start := g.sessionStart
			if g.pauseKind != KindEquityStop || !now.Before(g.pausedUntil) {
				g.pausedUntil = now.Add(g.limits.EquityPause)
				g.pauseKind = KindEquityStop
			}
			g.stopLatched = true
			return Decision{
				Action: CloseAllAndPause,
				Kind:   KindEquityStop,
				Reason: fmt.Sprintf("equity %.2f down %.2f%% from session start %.2f", equity, dd, start),
			}
		}
	}

	if now.Before(g.pausedUntil) {
		return Decision{
			Action: BlockEntries,
			Kind:   KindPaused,
			Reason: fmt.Sprintf("%s pause until %s", g.pauseKind, g.pausedUntil.In(g.limits.Location).Format(time.RFC3339)),
		}
	}

	if g.limits.DailyLossPct > 0 && g.dayStartEquity > 0 && equity > 0 {
		dd := drawdownPct(g.dayStartEquity, equity)
		if dd >= g.limits.DailyLossPct {
			g.pauseForDay(now, KindDailyLoss)
			return Decision{
				Action: BlockEntries,
				Kind:   KindDailyLoss,
				Reason: fmt.Sprintf("daily drawdown %.2f%% >= %.2f%%", dd, g.limits.DailyLossPct),
			}
		}
	}

	if g.limits.MaxTradesPerDay > 0 && g.trades >= g.limits.MaxTradesPerDay {
		g.pauseForDay(now, KindDailyTrades)
		return Decision{
			Action: BlockEntries,
			Kind:   KindDailyTrades,
			Reason: fmt.Sprintf("daily trades %d >= %d", g.trades, g.limits.MaxTradesPerDay),
		}
	}
	return Decision{Action: None}
}

// RecordTrade 在一笔入场确认成交后调用。
func (g *Governor) RecordTrade(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now, g.lastEquity)
	g.trades++
}

// View 返回当前状态快照。
func (g *Governor) View(now time.Time) View {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := View{
		Day:                g.day,
		TradesToday:        g.trades,
		MaxTradesPerDay:    g.limits.MaxTradesPerDay,
		SessionStartEquity: g.sessionStart,
		DayStartEquity:     g.dayStartEquity,
		LastEquity:         g.lastEquity,
		PauseKind:          g.pauseKind,
	}
	if g.dayStartEquity > 0 && g.lastEquity > 0 {
		v.DailyDrawdownPct = drawdownPct(g.dayStartEquity, g.lastEquity)
	}
	if now.Before(g.pausedUntil) {
		v.PausedUntil = g.pausedUntil
	} else {
		v.PauseKind = ""
	}
	return v
}

// rollover 在本地日切时重置日内计数与日初权益。
func (g *Governor) rollover(now time.Time, equity float64) {
	day := now.In(g.limits.Location).Format("2006-01-02")
	if day == g.day {
		if g.dayStartEquity <= 0 && equity > 0 {
			g.dayStartEquity = equity
		}
		return
	}
	g.day = day
	g.trades = 0
	g.dayStartEquity = equity
	if g.pauseKind == KindDailyLoss || g.pauseKind == KindDailyTrades {
		g.pausedUntil = time.Time{}
		g.pauseKind = ""
	}
}

func (g *Governor) pauseForDay(now time.Time, kind string) {
	if !g.limits.DailyPause {
		return
	}
	local := now.In(g.limits.Location)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, g.limits.Location)
	if next.After(g.pausedUntil) {
		g.pausedUntil = next
		g.pauseKind = kind
	}
}

func drawdownPct(start, current float64) float64 {
	if start <= 0 {
		return 0
	}
	return (start - current) / start * 100
}
