// Package metrics 定义 Prometheus 指标，init 时注册到默认 registry，
// 由状态服务在 /metrics 暴露。
//
//   - gridbot_ticks_total{loop,outcome}    循环执行次数（outcome: ok|skip|error）
//   - gridbot_gate_denials_total{gate}     各闸门拒绝次数
//   - gridbot_orders_total{action,result}  下单结果（action: buy|close）
//   - gridbot_basket_closes_total{reason}  整篮平仓原因
//   - gridbot_ladder_step                  当前网格层数
//   - gridbot_floating_pnl                 篮子浮动盈亏
//   - gridbot_equity                       账户权益
//   - gridbot_regime{regime,strength}      当前行情状态（当前为 1）
//   - gridbot_risk_halts_total{kind}       风控触发次数
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	LoopDecision = "decision"
	LoopWatcher  = "watcher"

	OutcomeOK    = "ok"
	OutcomeSkip  = "skip"
	OutcomeError = "error"

	ActionBuy   = "buy"
	ActionClose = "close"

	ResultFilled   = "filled"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_ticks_total",
			Help: "Loop ticks by outcome",
		},
		[]string{"loop", "outcome"},
	)

	GateDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_gate_denials_total",
			Help: "Entry filter denials by gate",
		},
		[]string{"gate"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_total",
			Help: "Orders submitted by action and result",
		},
		[]string{"action", "result"},
	)

	BasketCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_basket_closes_total",
			Help: "Basket liquidations by reason",
		},
		[]string{"reason"},
	)

	LadderStep = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_ladder_step",
			Help: "Committed grid steps in the current basket",
		},
	)

	FloatingPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_floating_pnl",
			Help: "Floating profit of the open basket",
		},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbot_equity",
			Help: "Account equity",
		},
	)

	// 只保留当前分类一条序列，便于面板直接展示。
	Regime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_regime",
			Help: "Current market regime (1 for the active label pair)",
		},
		[]string{"regime", "strength"},
	)

	RiskHalts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_risk_halts_total",
			Help: "Risk governor interventions by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(Ticks, GateDenials, Orders, BasketCloses, LadderStep, FloatingPnL, Equity, Regime, RiskHalts)
}

func ObserveTick(loop, outcome string) {
	Ticks.WithLabelValues(loop, outcome).Inc()
}

func ObserveDenials(gates []string) {
	for _, g := range gates {
		GateDenials.WithLabelValues(g).Inc()
	}
}

func ObserveOrder(action, result string) {
	Orders.WithLabelValues(action, result).Inc()
}

func ObserveBasketClose(reason string) {
	BasketCloses.WithLabelValues(reason).Inc()
}

func ObserveRiskHalt(kind string) {
	RiskHalts.WithLabelValues(kind).Inc()
}

// SetRegime 清空旧序列后标记当前分类。
func SetRegime(regime, strength string) {
	Regime.Reset()
	Regime.WithLabelValues(regime, strength).Set(1)
}

func SetBasket(step int, floating float64) {
	LadderStep.Set(float64(step))
	FloatingPnL.Set(floating)
}

func SetEquity(v float64) { Equity.Set(v) }
