package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 简报定时任务的 cron 表达式，默认每天 09:00 生成
	BriefingCron  string
	BriefingTitle string

	// 每个数据源抓取的最大文章数
	MaxArticlesPerSource int

	// 抓取重试策略
	FetchMaxRetries int
	FetchRetryDelay time.Duration
	FetchTimeout    time.Duration
	// 所有数据源并发抓取的整体上限时间
	FetchCeiling time.Duration
	// 单个数据源内部并发子请求 / 逐篇 AI 分析的并发上限
	Concurrency int

	// AI 服务（OpenRouter，兼容 OpenAI Chat Completions 协议）
	OpenRouterEndpoint string
	OpenRouterAPIKey   string
	OpenRouterModel    string

	// Telegram 通知
	TelegramBotToken string
	TelegramChatID   string

	// 邮件通知
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string

	// 简报 HTML 输出目录
	OutputDir string

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=briefinghub password=briefinghub dbname=briefinghub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),

		BriefingCron:  getEnv("BRIEFING_CRON", "0 9 * * *"),
		BriefingTitle: getEnv("BRIEFING_TITLE", "每日科技简报"),

		MaxArticlesPerSource: getEnvInt("MAX_ARTICLES_PER_SOURCE", 10),

		FetchMaxRetries: getEnvInt("FETCH_MAX_RETRIES", 3),
		FetchRetryDelay: time.Duration(getEnvInt("FETCH_RETRY_DELAY_MS", 1000)) * time.Millisecond,
		FetchTimeout:    time.Duration(getEnvInt("FETCH_TIMEOUT_SEC", 30)) * time.Second,
		FetchCeiling:    time.Duration(getEnvInt("FETCH_CEILING_SEC", 180)) * time.Second,
		Concurrency:     getEnvInt("FETCH_CONCURRENCY", 10),

		OpenRouterEndpoint: getEnv("OPENROUTER_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", ""),
		EmailTo:      splitList(getEnv("EMAIL_TO", "")),

		OutputDir: getEnv("OUTPUT_DIR", "./output"),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s cron=%q sources_limit=%d", cfg.AppPort, cfg.BriefingCron, cfg.MaxArticlesPerSource)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: invalid int for %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

// splitList 解析逗号分隔的收件人列表，忽略空白项
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
