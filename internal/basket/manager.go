// Package basket 管理整篮持仓的止盈止损与 EMPTY/ACTIVE 状态切换。
package basket

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gridbot/internal/config"
	"gridbot/internal/indicator"
	"gridbot/internal/regime"
)

type State int

const (
	StateEmpty State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "empty"
}

type Transition int

const (
	NoChange Transition = iota
	// Opened EMPTY -> ACTIVE
	Opened
	// Emptied ACTIVE -> EMPTY，调用方需重置阶梯。
	Emptied
)

const (
	ModeProfit = "profit"
	ModePoints = "points"

	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
)

// Targets 为当前篮子的动态止盈/止损（以账户货币计的浮动盈亏）。
type Targets struct {
	Mode       string  `json:"mode"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	HasStop    bool    `json:"has_stop"`
	MinGainPct float64 `json:"min_gain_pct,omitempty"`
}

// Exit 为一次评估的结论。
type Exit struct {
	Close   bool    `json:"close"`
	Reason  string  `json:"reason,omitempty"`
	Detail  string  `json:"detail,omitempty"`
	Targets Targets `json:"targets"`
}

type Settings struct {
	Mode              string
	BaseProfit        float64
	MinTarget         float64
	CountTiers        []config.CountTier
	CountFloor        float64
	RegimeMultipliers map[string]float64
	Tiers             []config.BasketTier
	ATRScaleMin       float64
	ATRScaleMax       float64
	MinGainPct        float64
	StopMultiplier    float64
	PointValue        float64
}

func SettingsFromConfig(cfg config.BasketConfig, pointValue float64) Settings {
	tiers := append([]config.BasketTier(nil), cfg.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MaxCount < tiers[j].MaxCount })
	counts := append([]config.CountTier(nil), cfg.CountTiers...)
	sort.Slice(counts, func(i, j int) bool { return counts[i].MaxCount < counts[j].MaxCount })
	mult := make(map[string]float64, len(cfg.RegimeMultipliers))
	for k, v := range cfg.RegimeMultipliers {
		mult[k] = v
	}
	if pointValue <= 0 {
		pointValue = 1
	}
	return Settings{
		Mode:              cfg.TPMode,
		BaseProfit:        cfg.BaseProfit,
		MinTarget:         cfg.MinTarget,
		CountTiers:        counts,
		CountFloor:        cfg.CountFloor,
		RegimeMultipliers: mult,
		Tiers:             tiers,
		ATRScaleMin:       cfg.ATRScaleMin,
		ATRScaleMax:       cfg.ATRScaleMax,
		MinGainPct:        cfg.MinGainPct,
		StopMultiplier:    cfg.StopMultiplier,
		PointValue:        pointValue,
	}
}

// Manager 由 watcher 循环驱动，State 可被状态接口并发读取。
type Manager struct {
	settings Settings

	mu    sync.RWMutex
	state State
	last  Targets
}

func NewManager(settings Settings) *Manager {
	if settings.PointValue <= 0 {
		settings.PointValue = 1
	}
	return &Manager{settings: settings}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastTargets 返回最近一次计算的目标。
func (m *Manager) LastTargets() Targets {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Observe 根据持仓数量推进状态机。
func (m *Manager) Observe(agg Aggregate) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.state == StateEmpty && agg.Count > 0:
		m.state = StateActive
		return Opened
	case m.state == StateActive && agg.Count == 0:
		m.state = StateEmpty
		m.last = Targets{}
		return Emptied
	}
	return NoChange
}

// MarkEmpty 在整篮平仓成功后调用。
func (m *Manager) MarkEmpty() {
	m.mu.Lock()
	m.state = StateEmpty
	m.last = Targets{}
	m.mu.Unlock()
}

// Targets 计算当前止盈止损。
func (m *Manager) Targets(agg Aggregate, snap indicator.Snapshot, c regime.Classification) Targets {
	s := m.settings
	t := Targets{Mode: s.Mode}
	switch s.Mode {
	case ModePoints:
		points := s.tierPoints(agg.Count)
		t.TakeProfit = points * s.atrScale(snap) * agg.TotalVolume * s.PointValue
		t.MinGainPct = s.MinGainPct
	default:
		t.Mode = ModeProfit
		tp := s.BaseProfit * s.countMultiplier(agg.Count) * s.regimeMultiplier(c)
		t.TakeProfit = math.Max(tp, s.MinTarget)
	}
	if snap.ATR > 0 && s.StopMultiplier > 0 && agg.TotalVolume > 0 {
		t.StopLoss = -(snap.ATR * s.StopMultiplier * agg.TotalVolume * s.PointValue)
		t.HasStop = true
	}
	return t
}

// Evaluate 判断是否需要整篮平仓，price 为当前可平仓价格（bid）。
func (m *Manager) Evaluate(agg Aggregate, snap indicator.Snapshot, c regime.Classification, price float64) Exit {
	if agg.Empty() {
		return Exit{}
	}
	t := m.Targets(agg, snap, c)
	m.mu.Lock()
	m.last = t
	m.mu.Unlock()

	exit := Exit{Targets: t}
	if t.HasStop && agg.FloatingPnL <= t.StopLoss {
		exit.Close = true
		exit.Reason = ReasonStopLoss
		exit.Detail = fmt.Sprintf("floating %.2f <= stop %.2f", agg.FloatingPnL, t.StopLoss)
		return exit
	}
	if t.TakeProfit > 0 && agg.FloatingPnL >= t.TakeProfit {
		if t.Mode == ModePoints && t.MinGainPct > 0 {
			gain := gainPct(agg.VWAP, price)
			if gain < t.MinGainPct {
				return exit
			}
		}
		exit.Close = true
		exit.Reason = ReasonTakeProfit
		exit.Detail = fmt.Sprintf("floating %.2f >= target %.2f (%s)", agg.FloatingPnL, t.TakeProfit, c)
	}
	return exit
}

// countMultiplier 按持仓数量分档，超出最后一档时取 CountFloor。
func (s Settings) countMultiplier(count int) float64 {
	for _, tier := range s.CountTiers {
		if count <= tier.MaxCount {
			return tier.Multiplier
		}
	}
	if s.CountFloor > 0 {
		return s.CountFloor
	}
	return 1
}

func (s Settings) regimeMultiplier(c regime.Classification) float64 {
	if v, ok := s.RegimeMultipliers[c.String()]; ok && v > 0 {
		return v
	}
	if v, ok := s.RegimeMultipliers[string(c.Regime)]; ok && v > 0 {
		return v
	}
	return 1
}

// tierPoints 选取 count 落入的第一个档位，超出最大档位时沿用最后一档。
func (s Settings) tierPoints(count int) float64 {
	if len(s.Tiers) == 0 {
		return 0
	}
	for _, tier := range s.Tiers {
		if count <= tier.MaxCount {
			return tier.Points
		}
	}
	return s.Tiers[len(s.Tiers)-1].Points
}

func (s Settings) atrScale(snap indicator.Snapshot) float64 {
	if snap.ATR <= 0 || snap.ATRAverage <= 0 {
		return 1
	}
	scale := snap.ATR / snap.ATRAverage
	if s.ATRScaleMin > 0 && scale < s.ATRScaleMin {
		scale = s.ATRScaleMin
	}
	if s.ATRScaleMax > 0 && scale > s.ATRScaleMax {
		scale = s.ATRScaleMax
	}
	return scale
}

func gainPct(vwap, price float64) float64 {
	if vwap <= 0 {
		return 0
	}
	return (price - vwap) / vwap * 100
}
