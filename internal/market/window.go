package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidWindow 表示窗口时间戳不满足严格递增。
var ErrInvalidWindow = errors.New("market: invalid candle window")

// ValidateWindow 检查 OpenTime 严格递增且价格区间有效。
func ValidateWindow(w Window) error {
	for i, c := range w {
		if c.High < c.Low {
			return fmt.Errorf("%w: bar %d high %.5f < low %.5f", ErrInvalidWindow, i, c.High, c.Low)
		}
		if i == 0 {
			continue
		}
		if c.OpenTime <= w[i-1].OpenTime {
			return fmt.Errorf("%w: bar %d open_time %d not after %d", ErrInvalidWindow, i, c.OpenTime, w[i-1].OpenTime)
		}
	}
	return nil
}

// Sanitize 按 OpenTime 排序并去重（同一时间戳保留最后出现的一根），
// 返回新的窗口，不修改入参。
func Sanitize(w Window) Window {
	if len(w) == 0 {
		return nil
	}
	out := make(Window, len(w))
	copy(out, w)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	dedup := out[:0]
	for _, c := range out {
		n := len(dedup)
		if n > 0 && dedup[n-1].OpenTime == c.OpenTime {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Merge 将 incoming 合并进 base：同一 OpenTime 覆盖，新 K 线追加，
// 结果只保留最近 max 根。
func Merge(base, incoming Window, max int) Window {
	cur := base.Clone()
	for _, c := range incoming {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == c.OpenTime {
			cur[n-1] = c
			continue
		}
		if n > 0 && c.OpenTime < cur[n-1].OpenTime {
			continue
		}
		cur = append(cur, c)
	}
	if max > 0 && len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	return cur
}

// DefaultKlineGrace 为交易所收盘后的宽限时间。
const DefaultKlineGrace = 2 * time.Second

// DropUnclosed 丢弃仍在形成中的最后一根 K 线。
// 交易所返回的最后一根通常是当前未收盘的 bar。
func DropUnclosed(w Window, interval time.Duration, now time.Time, grace time.Duration) Window {
	if len(w) == 0 || interval <= 0 {
		return w
	}
	if grace < 0 {
		grace = 0
	}
	last := w[len(w)-1]
	if last.OpenTime <= 0 {
		return w
	}
	closeMs := last.OpenTime + interval.Milliseconds()
	if now.UnixMilli() < closeMs+grace.Milliseconds() {
		return w[:len(w)-1]
	}
	return w
}
