// Package notifier 推送风控与平仓事件。
package notifier

import (
	"context"

	"gridbot/internal/logger"
)

// TextNotifier 为最小的文本推送接口。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Send 推送一条结构化消息；n 为 nil 时不做任何事，失败只记录日志。
func Send(ctx context.Context, n TextNotifier, msg Message) {
	if n == nil {
		return
	}
	if err := n.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("notifier: send %q failed: %v", msg.Title, err)
	}
}
