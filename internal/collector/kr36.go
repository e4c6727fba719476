package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const kr36DefaultNewsURL = "https://36kr.com/newsflashes"

// Kr36Fetcher 抓取 36氪快讯页。页面结构可能调整，解析是尽力而为：
// 优先用主选择器，失败时退回更宽松的备选选择器。
type Kr36Fetcher struct {
	NewsURL string
	Retry   RetryConfig
}

func NewKr36Fetcher(retry RetryConfig) *Kr36Fetcher {
	return &Kr36Fetcher{
		NewsURL: kr36DefaultNewsURL,
		Retry:   retry,
	}
}

func (k *Kr36Fetcher) Name() string {
	return "36kr"
}

func (k *Kr36Fetcher) Fetch(ctx context.Context, limit int) ([]Article, error) {
	log.Println("fetch 36kr newsflashes...")

	base, err := url.Parse(k.NewsURL)
	if err != nil {
		return nil, fmt.Errorf("36kr: parse news url: %w", err)
	}

	cfg := k.Retry.withDefaults()
	now := time.Now()

	collect := func() ([]Article, error) {
		c := colly.NewCollector(
			colly.AllowedDomains(base.Hostname(), base.Host),
			colly.UserAgent(userAgent),
		)
		c.SetRequestTimeout(cfg.Timeout)

		results := make([]Article, 0, limit)

		c.OnHTML(".news-item, .newsflash-item", func(e *colly.HTMLElement) {
			if limit > 0 && len(results) >= limit {
				return
			}

			titleSel := e.DOM.Find(".news-title a, .item-title a, a.article-item-title").First()
			title := strings.TrimSpace(titleSel.Text())
			if title == "" {
				return
			}

			href, _ := titleSel.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" {
				return
			}
			if !strings.HasPrefix(href, "http") {
				href = base.Scheme + "://" + base.Host + href
			}

			content := strings.TrimSpace(e.DOM.Find(".news-summary, .item-desc, .article-item-description").First().Text())
			timeText := strings.TrimSpace(e.DOM.Find(".news-time, .time, .item-other").First().Text())

			results = append(results, Article{
				Title:       title,
				URL:         href,
				Source:      "36kr",
				Content:     content,
				PublishedAt: parseRelativeTime(timeText, now),
				RawData: map[string]any{
					"time_text": timeText,
				},
			})
		})

		if err := c.Visit(k.NewsURL); err != nil {
			return nil, err
		}
		return results, nil
	}

	// colly 不感知 context，整页抓取放到后台执行，ctx 到期时立刻返回
	type pageResult struct {
		items []Article
		err   error
	}
	collectCtx := func() ([]Article, error) {
		ch := make(chan pageResult, 1)
		go func() {
			items, err := collect()
			ch <- pageResult{items: items, err: err}
		}()
		select {
		case r := <-ch:
			return r.items, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// colly 自身不做重试，这里在整页抓取层面套有界重试
	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
		results, err := collectCtx()
		if err == nil {
			if len(results) == 0 {
				log.Println("36kr: no items parsed")
			}
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("36kr: fetch attempt %d/%d failed: %v", attempt, cfg.MaxRetries, err)
	}

	return nil, fmt.Errorf("36kr: fetch after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// parseRelativeTime 解析"2小时前"、"30分钟前"、"3天前"这类相对时间；
// 解析失败时返回 now
func parseRelativeTime(text string, now time.Time) time.Time {
	text = strings.TrimSpace(text)
	for suffix, unit := range map[string]time.Duration{
		"分钟前": time.Minute,
		"小时前": time.Hour,
		"天前":  24 * time.Hour,
	} {
		if !strings.HasSuffix(text, suffix) {
			continue
		}
		numText := strings.TrimSpace(strings.TrimSuffix(text, suffix))
		n, err := strconv.Atoi(numText)
		if err != nil {
			break
		}
		return now.Add(-time.Duration(n) * unit)
	}
	return now
}
