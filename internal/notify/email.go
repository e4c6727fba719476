package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email 通过 SMTP 推送简报邮件
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	// 便于测试替换真实的 SMTP 发送
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) SendBriefing(ctx context.Context, title, summary, link string, articleCount int) error {
	if e.host == "" || e.from == "" {
		return fmt.Errorf("email notifier misconfigured")
	}
	if len(e.to) == 0 {
		return fmt.Errorf("email notifier has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := title
	if summary != "" {
		short := summary
		if rs := []rune(short); len(rs) > 30 {
			short = string(rs[:30]) + "..."
		}
		subject = title + " - " + short
	}

	msg := buildEmailMessage(e.from, e.to, subject, buildBriefingHTML(title, summary, link, articleCount))

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	// smtp.SendMail 不感知 context，后台执行以便调用方超时后及时返回
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	errCh := make(chan error, 1)
	go func() { errCh <- e.send(addr, auth, e.from, e.to, msg) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildEmailMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func buildBriefingHTML(title, summary, link string, articleCount int) string {
	linkBlock := ""
	if link != "" {
		linkBlock = fmt.Sprintf(`<p><a href="%s">查看完整简报</a></p>`, link)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
  <div style="max-width:600px;margin:0 auto;padding:20px;font-family:Arial,sans-serif;color:#333;">
    <div style="background:#667eea;color:#fff;padding:20px;text-align:center;"><h1>%s</h1></div>
    <div style="padding:20px;background:#f9f9f9;">
      <h2>今日概览</h2>
      <p>%s</p>
      <p><strong>文章数量：</strong>%d</p>
      %s
    </div>
    <div style="padding:20px;text-align:center;color:#666;font-size:12px;">由AI自动生成 | 每日科技简报</div>
  </div>
</body>
</html>`, title, summary, articleCount, linkBlock)
}
