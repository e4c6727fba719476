package notify

import "context"

// Notifier 抽象一条通知渠道。每个已配置的渠道独立尝试发送，
// 一条渠道失败不影响其它渠道。
type Notifier interface {
	Name() string
	SendBriefing(ctx context.Context, title, summary, link string, articleCount int) error
}
