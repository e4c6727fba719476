package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Delay: time.Millisecond, Timeout: time.Second}
}

func TestFetchWithRetryRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	body, err := fetchWithRetry(context.Background(), srv.Client(), srv.URL, testRetryConfig())
	if err != nil {
		t.Fatalf("fetchWithRetry error: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q, want %q", body, "ok")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server called %d times, want 3", got)
	}
}

func TestFetchWithRetryHandlesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	body, err := fetchWithRetry(context.Background(), srv.Client(), srv.URL, testRetryConfig())
	if err != nil {
		t.Fatalf("fetchWithRetry error after rate limit: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q, want %q", body, "ok")
	}
}

func TestFetchWithRetryRateLimitWaitReplacesBackoff(t *testing.T) {
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	defer func() { sleep = orig }()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxRetries: 3, Delay: 10 * time.Millisecond, Timeout: time.Second}
	if _, err := fetchWithRetry(context.Background(), srv.Client(), srv.URL, cfg); err != nil {
		t.Fatalf("fetchWithRetry error: %v", err)
	}

	// 每次 429 只等一次限流间隔，不再叠加常规退避
	want := []time.Duration{5 * cfg.Delay, 10 * cfg.Delay}
	if len(waits) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(waits), waits, len(want))
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestFetchWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testRetryConfig()
	_, err := fetchWithRetry(context.Background(), srv.Client(), srv.URL, cfg)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != int32(cfg.MaxRetries) {
		t.Fatalf("server called %d times, want %d", got, cfg.MaxRetries)
	}
}

func TestFetchWithRetryRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 5, Delay: time.Hour, Timeout: time.Second}
	start := time.Now()
	_, err := fetchWithRetry(ctx, srv.Client(), srv.URL, cfg)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled fetch took %v, should return promptly", elapsed)
	}
}
