package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramDefaultAPIBase = "https://api.telegram.org"

// Telegram 通过 Bot API 推送简报
type Telegram struct {
	APIBase string

	token  string
	chatID string
	client *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		APIBase: telegramDefaultAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) SendBriefing(ctx context.Context, title, summary, link string, articleCount int) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📰 <b>%s</b>\n\n", title)
	fmt.Fprintf(&b, "📊 %s\n\n", summary)
	fmt.Fprintf(&b, "📝 文章数：%d", articleCount)
	if link != "" {
		fmt.Fprintf(&b, "\n\n🔗 查看完整简报：%s", link)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.APIBase, t.token)
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", b.String())
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
