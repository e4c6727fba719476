package processor

import (
	"testing"
	"time"

	"github.com/LJTian/BriefingHub/internal/collector"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://example.com/a"
	url2 := "https://example.com/b"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
}

func TestSimpleProcessorDeduplicatesByURL(t *testing.T) {
	p := NewSimpleProcessor()
	now := time.Now()

	items := []collector.Article{
		{
			Title:       "Title 1",
			URL:         "https://example.com/1",
			Source:      "test",
			Content:     "content 1",
			PublishedAt: now,
		},
		{
			Title:       "Title 1 duplicate by URL",
			URL:         "https://example.com/1",
			Source:      "test",
			Content:     "content 1 dup",
			PublishedAt: now,
		},
		{
			Title:       "  Title 2 with spaces  ",
			URL:         "https://example.com/2",
			Source:      "test",
			PublishedAt: now,
		},
	}

	out := p.Process(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 prepared items after dedupe, got %d", len(out))
	}

	// 先到者保留，重复 URL 的后续条目被丢弃
	if out[0].Content != "content 1" {
		t.Fatalf("first writer should win: %q", out[0].Content)
	}
	if out[1].Title != "Title 2 with spaces" {
		t.Fatalf("title should be trimmed: %q", out[1].Title)
	}
}

func TestSimpleProcessorSkipsInvalidItems(t *testing.T) {
	p := NewSimpleProcessor()

	items := []collector.Article{
		{Title: "no url", URL: "  "},
		{Title: "", URL: "https://example.com/no-title"},
		{Title: "ok", URL: "https://example.com/ok", Source: "test"},
	}

	out := p.Process(items)
	if len(out) != 1 {
		t.Fatalf("expected 1 valid item, got %d", len(out))
	}
	if out[0].URL != "https://example.com/ok" {
		t.Fatalf("unexpected survivor: %q", out[0].URL)
	}
}
