package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	hnDefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	hnWebBaseURL     = "https://news.ycombinator.com"
	hnConcurrency    = 10
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	BaseURL     string
	Retry       RetryConfig
	Concurrency int

	client *http.Client
}

func NewHackerNewsFetcher(retry RetryConfig, concurrency int) *HackerNewsFetcher {
	if concurrency <= 0 {
		concurrency = hnConcurrency
	}
	return &HackerNewsFetcher{
		BaseURL:     hnDefaultBaseURL,
		Retry:       retry,
		Concurrency: concurrency,
		client:      &http.Client{},
	}
}

func (h *HackerNewsFetcher) Name() string {
	return "hackernews"
}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context, limit int) ([]Article, error) {
	log.Println("fetch Hacker News Top Stories...")

	client := h.client
	if client == nil {
		client = &http.Client{}
	}

	body, err := fetchWithRetry(ctx, client, h.BaseURL+"/topstories.json", h.Retry)
	if err != nil {
		return nil, fmt.Errorf("hackernews: fetch top stories: %w", err)
	}

	var ids []int
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: unmarshal top stories: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	// 并发获取每篇文章详情，信号量限制在途请求数；单条失败不影响其余条目
	type indexedItem struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, h.Concurrency)
		items = make([]indexedItem, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			it, err := h.fetchItem(ctx, client, id)
			if err != nil {
				log.Printf("hackernews: fetch item %d: %v", id, err)
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}

			mu.Lock()
			items = append(items, indexedItem{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	results := make([]Article, 0, len(items))
	for _, ii := range items {
		it := ii.item

		itemURL := it.URL
		if itemURL == "" {
			itemURL = fmt.Sprintf("%s/item?id=%d", hnWebBaseURL, it.ID)
		}

		results = append(results, Article{
			Title:       it.Title,
			URL:         itemURL,
			Source:      "hackernews",
			Content:     it.Text,
			PublishedAt: time.Unix(it.Time, 0),
			Author:      it.By,
			Tags:        []string{it.Type},
			RawData: map[string]any{
				"hn_id":    it.ID,
				"comments": it.Descendants,
				"score":    it.Score,
				"rank":     ii.idx + 1,
			},
		})
	}

	if len(results) == 0 {
		log.Println("hackernews: no items fetched")
	}

	return results, nil
}

func (h *HackerNewsFetcher) fetchItem(ctx context.Context, client *http.Client, id int) (hnItem, error) {
	body, err := fetchWithRetry(ctx, client, fmt.Sprintf("%s/item/%d.json", h.BaseURL, id), h.Retry)
	if err != nil {
		return hnItem{}, err
	}

	var it hnItem
	if err := json.Unmarshal(body, &it); err != nil {
		return hnItem{}, err
	}
	return it, nil
}
