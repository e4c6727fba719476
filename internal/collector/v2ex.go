package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const v2exDefaultBaseURL = "https://www.v2ex.com"

// V2EXFetcher 抓取 V2EX 热门话题（官方 hot.json API）
type V2EXFetcher struct {
	BaseURL string
	Retry   RetryConfig

	client *http.Client
}

func NewV2EXFetcher(retry RetryConfig) *V2EXFetcher {
	return &V2EXFetcher{
		BaseURL: v2exDefaultBaseURL,
		Retry:   retry,
		client:  &http.Client{},
	}
}

func (v *V2EXFetcher) Name() string {
	return "v2ex"
}

type v2exTopic struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Created int64  `json:"created"`
	Member  struct {
		Username string `json:"username"`
	} `json:"member"`
	Node struct {
		Title string `json:"title"`
	} `json:"node"`
}

func (v *V2EXFetcher) Fetch(ctx context.Context, limit int) ([]Article, error) {
	log.Println("fetch V2EX hot topics...")

	client := v.client
	if client == nil {
		client = &http.Client{}
	}

	body, err := fetchWithRetry(ctx, client, v.BaseURL+"/api/topics/hot.json", v.Retry)
	if err != nil {
		return nil, fmt.Errorf("v2ex: fetch hot topics: %w", err)
	}

	var topics []v2exTopic
	if err := json.Unmarshal(body, &topics); err != nil {
		return nil, fmt.Errorf("v2ex: unmarshal hot topics: %w", err)
	}
	if limit > 0 && len(topics) > limit {
		topics = topics[:limit]
	}

	results := make([]Article, 0, len(topics))
	for _, t := range topics {
		if t.Title == "" {
			continue
		}

		var tags []string
		if t.Node.Title != "" {
			tags = strings.Split(t.Node.Title, ",")
		}

		results = append(results, Article{
			Title:       stripHTML(t.Title),
			URL:         fmt.Sprintf("%s/t/%d", v.BaseURL, t.ID),
			Source:      "v2ex",
			Content:     stripHTML(t.Content),
			PublishedAt: time.Unix(t.Created, 0),
			Author:      t.Member.Username,
			Tags:        tags,
			RawData: map[string]any{
				"v2ex_id": t.ID,
				"node":    t.Node.Title,
			},
		})
	}

	return results, nil
}

// stripHTML 去掉内容中的 HTML 标签，只保留文本
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
