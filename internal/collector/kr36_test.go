package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const kr36Page = `<html><body>
<div class="news-item">
  <div class="news-title"><a href="/p/111">AI 创业公司完成新一轮融资</a></div>
  <div class="news-summary">该公司主要做大模型推理加速。</div>
  <div class="news-time">2小时前</div>
</div>
<div class="news-item">
  <div class="news-title"><a href="https://36kr.example/p/222">新款芯片发布</a></div>
  <div class="news-summary">性能提升明显。</div>
  <div class="news-time">30分钟前</div>
</div>
<div class="news-item">
  <div class="news-title"><a href="/p/333"></a></div>
</div>
</body></html>`

func TestKr36FetchParsesNewsflashes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(kr36Page))
	}))
	defer srv.Close()

	f := NewKr36Fetcher(testRetryConfig())
	f.NewsURL = srv.URL + "/newsflashes"

	articles, err := f.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	// 空标题条目被跳过
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}

	first := articles[0]
	if first.Title != "AI 创业公司完成新一轮融资" {
		t.Fatalf("title = %q", first.Title)
	}
	// 相对链接被补全为绝对链接
	if first.URL != srv.URL+"/p/111" {
		t.Fatalf("url = %q", first.URL)
	}
	if first.Content != "该公司主要做大模型推理加速。" {
		t.Fatalf("content = %q", first.Content)
	}
	if first.Source != "36kr" {
		t.Fatalf("source = %q", first.Source)
	}
}

func TestKr36FetchEnforcesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(kr36Page))
	}))
	defer srv.Close()

	f := NewKr36Fetcher(testRetryConfig())
	f.NewsURL = srv.URL + "/newsflashes"

	articles, err := f.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
}

func TestKr36FetchReturnsOnContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(kr36Page))
	}))
	defer srv.Close()

	f := NewKr36Fetcher(testRetryConfig())
	f.NewsURL = srv.URL + "/newsflashes"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, 10)
	if err == nil {
		t.Fatal("expected error on expired context")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Fetch took %v, should return as soon as the deadline passes", elapsed)
	}
}

func TestParseRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		text string
		want time.Time
	}{
		{"2小时前", now.Add(-2 * time.Hour)},
		{"30分钟前", now.Add(-30 * time.Minute)},
		{"3天前", now.Add(-72 * time.Hour)},
		{"昨天 18:00", now}, // 无法解析的格式回退为 now
		{"", now},
	}
	for _, c := range cases {
		if got := parseRelativeTime(c.text, now); !got.Equal(c.want) {
			t.Fatalf("parseRelativeTime(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}
