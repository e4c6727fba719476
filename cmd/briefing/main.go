package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/LJTian/BriefingHub/internal/ai"
	"github.com/LJTian/BriefingHub/internal/collector"
	"github.com/LJTian/BriefingHub/internal/config"
	"github.com/LJTian/BriefingHub/internal/notify"
	"github.com/LJTian/BriefingHub/internal/pipeline"
	"github.com/LJTian/BriefingHub/internal/render"
	"github.com/LJTian/BriefingHub/internal/storage"
	"github.com/joho/godotenv"
)

// 命令行一次性执行入口：抓取 → 入库 → 增强 → 聚合 → 渲染 → 通知，
// 执行完即退出，便于在 CI 或 crontab 里调用。
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	if _, err := store.EnsureChannel("hackernews", "Hacker News", "https://news.ycombinator.com"); err != nil {
		log.Fatalf("ensure channel hackernews failed: %v", err)
	}
	if _, err := store.EnsureChannel("v2ex", "V2EX", "https://www.v2ex.com"); err != nil {
		log.Fatalf("ensure channel v2ex failed: %v", err)
	}
	if _, err := store.EnsureChannel("36kr", "36氪", "https://36kr.com"); err != nil {
		log.Fatalf("ensure channel 36kr failed: %v", err)
	}

	retry := collector.RetryConfig{
		MaxRetries: cfg.FetchMaxRetries,
		Delay:      cfg.FetchRetryDelay,
		Timeout:    cfg.FetchTimeout,
	}
	fetchers := []collector.Fetcher{
		collector.NewHackerNewsFetcher(retry, cfg.Concurrency),
		collector.NewV2EXFetcher(retry),
		collector.NewKr36Fetcher(retry),
	}

	analyzer := ai.NewClient(cfg.OpenRouterEndpoint, cfg.OpenRouterModel, cfg.OpenRouterAPIKey)

	renderer, err := render.NewHTMLRenderer(cfg.OutputDir)
	if err != nil {
		log.Fatalf("init renderer failed: %v", err)
	}

	var notifiers []notify.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.SMTPHost != "" && len(cfg.EmailTo) > 0 {
		notifiers = append(notifiers, notify.NewEmail(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailTo))
	}

	p := pipeline.New(fetchers, store, analyzer, renderer, notifiers, pipeline.Options{
		Title:             cfg.BriefingTitle,
		ArticlesPerSource: cfg.MaxArticlesPerSource,
		FetchCeiling:      cfg.FetchCeiling,
		EnrichConcurrency: cfg.Concurrency,
	})

	out := p.Run(context.Background())

	fmt.Printf("date=%s status=%s fetched=%d persisted=%d enriched=%d elapsed=%s\n",
		out.Date, out.Status, out.Fetched, out.Persisted, out.Enriched, out.Elapsed)
	for _, e := range out.Errors {
		fmt.Printf("  error: %s\n", e)
	}

	if out.Status == pipeline.StatusFailed {
		os.Exit(1)
	}
}
