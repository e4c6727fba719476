package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LJTian/BriefingHub/internal/collector"
)

// Prepared 是写入存储层前的统一结构
type Prepared struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Content     string
	PublishedAt time.Time
	Author      string
	Tags        []string
	RawData     map[string]any
}

// SimpleProcessor 做最基础的数据清洗、批内去重与 ID 生成。
// 跨批次 / 跨数据源的 URL 去重由存储层的唯一索引保证，这里只处理单批。
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

func (p *SimpleProcessor) Process(items []collector.Article) []Prepared {
	out := make([]Prepared, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		url := strings.TrimSpace(it.URL)
		if url == "" {
			continue
		}

		id := hashURL(url)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}

		out = append(out, Prepared{
			ID:          id,
			Title:       title,
			URL:         url,
			Source:      it.Source,
			Content:     strings.TrimSpace(it.Content),
			PublishedAt: it.PublishedAt,
			Author:      strings.TrimSpace(it.Author),
			Tags:        it.Tags,
			RawData:     it.RawData,
		})
	}

	return out
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
