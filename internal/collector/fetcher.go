package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	maxResponseBytes = 1 << 20 // 1MB
	userAgent        = "BriefingHubBot/1.0"
)

// Article 统一采集后的基础结构；URL 是全系统的去重键，入库后不再修改
type Article struct {
	Title       string
	URL         string
	Source      string
	Content     string
	PublishedAt time.Time
	Author      string
	Tags        []string
	RawData     map[string]any
}

// Fetcher 抽象每一个数据源；limit 为返回文章数上限。
// 实现内部可以并发发起子请求，但必须自行限流，单个子请求失败不影响其余结果。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]Article, error)
}

// RetryConfig 网络请求的有界重试策略
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration // 基础退避间隔，每次失败后翻倍
	Timeout    time.Duration // 单次请求超时
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// errRateLimited 表示远端返回了 429，需要比普通失败更长的退避
type errRateLimited struct {
	status int
}

func (e *errRateLimited) Error() string {
	return fmt.Sprintf("rate limited (status %d)", e.status)
}

// 测试里替换掉真实等待
var sleep = sleepCtx

// fetchWithRetry 带重试地 GET 一个 URL 并返回响应体。
// 普通失败按 Delay 翻倍退避；命中限流时改为等待 5*Delay*attempt（取代常规
// 退避，两者不叠加）；重试次数耗尽后返回最后一次错误，由调用方决定兜底行为。
func fetchWithRetry(ctx context.Context, client *http.Client, url string, cfg RetryConfig) ([]byte, error) {
	cfg = cfg.withDefaults()

	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		body, err := doGet(ctx, client, url, cfg.Timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}

		wait := delay
		delay *= 2
		if rl, ok := err.(*errRateLimited); ok {
			wait = 5 * cfg.Delay * time.Duration(attempt)
			log.Printf("rate limited (status %d) fetching %s, waiting %v", rl.status, url, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, cfg.MaxRetries, lastErr)
}

func doGet(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errRateLimited{status: resp.StatusCode}
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// sleepCtx 可被 context 打断的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
