package notifier

import (
	"fmt"
	"strings"
	"time"
)

const maxMessageLen = 3800

// Section 表示通知中的一个段落。
type Section struct {
	Title string
	Lines []string
}

// Message 描述统一格式的 Telegram 推送。
type Message struct {
	Icon      string
	Title     string
	Sections  []Section
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本，超长时截断。
func (m Message) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	b.WriteString(renderSections(m.Sections))
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}

func renderSections(secs []Section) string {
	var b strings.Builder
	written := 0
	for _, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if written > 0 {
			b.WriteString("\n")
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(sanitize(title) + "\n")
		}
		for _, line := range lines {
			b.WriteString("- " + sanitize(line) + "\n")
		}
		written++
	}
	if written == 0 {
		return ""
	}
	return "```\n" + b.String() + "```\n\n"
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

// RiskMessage 为风控熔断 / 暂停通知。
func RiskMessage(symbol, kind, action, reason string, equity, floating float64, at time.Time) Message {
	return Message{
		Icon:  "🛑",
		Title: fmt.Sprintf("%s 风控触发: %s", symbol, kind),
		Sections: []Section{{
			Lines: []string{
				"动作: " + action,
				"原因: " + reason,
				fmt.Sprintf("权益: %.2f", equity),
				fmt.Sprintf("浮动盈亏: %.2f", floating),
			},
		}},
		Timestamp: at,
	}
}

// CloseMessage 为整篮平仓通知。
func CloseMessage(symbol, reason string, count int, volume, pnl float64, failed int, at time.Time) Message {
	icon := "✅"
	if pnl < 0 {
		icon = "⚠️"
	}
	lines := []string{
		"原因: " + reason,
		fmt.Sprintf("持仓: %d 笔 / %.4f 手", count, volume),
		fmt.Sprintf("已实现盈亏: %.2f", pnl),
	}
	if failed > 0 {
		lines = append(lines, fmt.Sprintf("平仓失败: %d 笔，下个周期重试", failed))
	}
	return Message{
		Icon:      icon,
		Title:     symbol + " 篮子平仓",
		Sections:  []Section{{Lines: lines}},
		Timestamp: at,
	}
}
