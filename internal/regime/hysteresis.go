package regime

import "sync"

// Hysteresis 抑制阈值附近的来回切换：候选分类需连续出现 Ticks 次才替换当前分类。
// volatile 总是立即生效。Ticks <= 1 时等价于无记忆分类。
// 每个评估循环应持有自己的 Hysteresis。
type Hysteresis struct {
	Ticks int

	mu        sync.Mutex
	current   Classification
	candidate Classification
	streak    int
}

func NewHysteresis(ticks int) *Hysteresis {
	return &Hysteresis{Ticks: ticks}
}

// Apply 输入本轮原始分类，返回平滑后的分类。
func (h *Hysteresis) Apply(raw Classification) Classification {
	if h == nil || h.Ticks <= 1 {
		return raw
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current.Regime == "" || raw.Regime == Volatile || raw == h.current {
		h.current = raw
		h.candidate = Classification{}
		h.streak = 0
		return h.current
	}
	if raw == h.candidate {
		h.streak++
	} else {
		h.candidate = raw
		h.streak = 1
	}
	if h.streak >= h.Ticks {
		h.current = raw
		h.candidate = Classification{}
		h.streak = 0
	}
	return h.current
}

// Current 返回当前生效的分类。
func (h *Hysteresis) Current() Classification {
	if h == nil {
		return Classification{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
