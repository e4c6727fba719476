package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	if err := os.Setenv(key, "8080"); err != nil {
		t.Fatalf("Setenv error: %v", err)
	}
	defer os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntFallsBackOnInvalid(t *testing.T) {
	const key = "TEST_FETCH_MAX_RETRIES"

	_ = os.Unsetenv(key)
	if got := getEnvInt(key, 3); got != 3 {
		t.Fatalf("getEnvInt(%q) = %d, want 3", key, got)
	}

	_ = os.Setenv(key, "5")
	defer os.Unsetenv(key)
	if got := getEnvInt(key, 3); got != 5 {
		t.Fatalf("getEnvInt(%q) = %d, want 5", key, got)
	}

	// 非法数字应回退到默认值
	_ = os.Setenv(key, "abc")
	if got := getEnvInt(key, 3); got != 3 {
		t.Fatalf("getEnvInt(%q) with invalid value = %d, want 3", key, got)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Fatalf("splitList(\"\") = %v, want nil", got)
	}
	got := splitList("a@example.com, b@example.com ,,c@example.com")
	if len(got) != 3 {
		t.Fatalf("splitList returned %d items, want 3: %v", len(got), got)
	}
	if got[1] != "b@example.com" {
		t.Fatalf("splitList did not trim spaces: %q", got[1])
	}
}

func TestLoadReadsScheduleAndRetries(t *testing.T) {
	// 使用专用的 env key，避免影响其它测试
	_ = os.Setenv("APP_PORT", "1234")
	_ = os.Setenv("BRIEFING_CRON", "30 8 * * *")
	_ = os.Setenv("FETCH_RETRY_DELAY_MS", "250")
	defer func() {
		_ = os.Unsetenv("APP_PORT")
		_ = os.Unsetenv("BRIEFING_CRON")
		_ = os.Unsetenv("FETCH_RETRY_DELAY_MS")
	}()

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BriefingCron != "30 8 * * *" {
		t.Fatalf("BriefingCron = %q, want %q", cfg.BriefingCron, "30 8 * * *")
	}
	if cfg.FetchRetryDelay != 250*time.Millisecond {
		t.Fatalf("FetchRetryDelay = %v, want 250ms", cfg.FetchRetryDelay)
	}
}
