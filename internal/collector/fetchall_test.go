package collector

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	name  string
	items []Article
	err   error
	delay time.Duration
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context, limit int) ([]Article, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.items) > limit {
		return s.items[:limit], nil
	}
	return s.items, nil
}

func makeArticles(source string, n int) []Article {
	out := make([]Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Article{
			Title:  "title",
			URL:    source + "/article/" + string(rune('a'+i)),
			Source: source,
		})
	}
	return out
}

func TestFetchAllIsolatesPerSourceFailures(t *testing.T) {
	fetchers := []Fetcher{
		&stubFetcher{name: "a", items: makeArticles("a", 5)},
		&stubFetcher{name: "b", err: errors.New("connection refused")},
		&stubFetcher{name: "c"},
	}

	results, failures := FetchAll(context.Background(), fetchers, 10, time.Minute)

	if len(results) != 3 {
		t.Fatalf("expected one entry per registered source, got %d", len(results))
	}
	if len(results["a"]) != 5 {
		t.Fatalf("source a returned %d items, want 5", len(results["a"]))
	}
	if len(results["b"]) != 0 {
		t.Fatalf("failed source b should yield empty list, got %d", len(results["b"]))
	}
	if len(results["c"]) != 0 {
		t.Fatalf("empty source c should yield empty list, got %d", len(results["c"]))
	}

	// 只有真正失败的源出现在 failures 里，合法的空结果不算失败
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want exactly one entry", failures)
	}
	if failures["b"] == nil {
		t.Fatal("source b should be reported as failed")
	}
}

func TestFetchAllEnforcesLimit(t *testing.T) {
	fetchers := []Fetcher{
		&stubFetcher{name: "a", items: makeArticles("a", 8)},
	}

	results, _ := FetchAll(context.Background(), fetchers, 3, time.Minute)
	if len(results["a"]) != 3 {
		t.Fatalf("expected limit 3 to apply, got %d items", len(results["a"]))
	}
}

func TestFetchAllCeilingCancelsSlowFetchers(t *testing.T) {
	fetchers := []Fetcher{
		&stubFetcher{name: "fast", items: makeArticles("fast", 2)},
		&stubFetcher{name: "slow", items: makeArticles("slow", 2), delay: time.Minute},
	}

	start := time.Now()
	results, failures := FetchAll(context.Background(), fetchers, 10, 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("FetchAll took %v, ceiling should have cut the slow fetcher off", elapsed)
	}

	if len(results["fast"]) != 2 {
		t.Fatalf("fast source should still deliver, got %d items", len(results["fast"]))
	}
	if len(results["slow"]) != 0 {
		t.Fatalf("slow source should be treated as empty, got %d items", len(results["slow"]))
	}
	if failures["slow"] == nil {
		t.Fatal("slow source should be reported as failed after ceiling")
	}
}
