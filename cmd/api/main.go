package main

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/LJTian/BriefingHub/internal/ai"
	"github.com/LJTian/BriefingHub/internal/api"
	"github.com/LJTian/BriefingHub/internal/collector"
	"github.com/LJTian/BriefingHub/internal/config"
	"github.com/LJTian/BriefingHub/internal/notify"
	"github.com/LJTian/BriefingHub/internal/pipeline"
	"github.com/LJTian/BriefingHub/internal/render"
	"github.com/LJTian/BriefingHub/internal/scheduler"
	"github.com/LJTian/BriefingHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时忽略，线上环境直接用环境变量
	_ = godotenv.Load()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保各个渠道存在
	if _, err := store.EnsureChannel("hackernews", "Hacker News", "https://news.ycombinator.com"); err != nil {
		log.Fatalf("ensure channel hackernews failed: %v", err)
	}
	if _, err := store.EnsureChannel("v2ex", "V2EX", "https://www.v2ex.com"); err != nil {
		log.Fatalf("ensure channel v2ex failed: %v", err)
	}
	if _, err := store.EnsureChannel("36kr", "36氪", "https://36kr.com"); err != nil {
		log.Fatalf("ensure channel 36kr failed: %v", err)
	}

	p := buildPipeline(cfg, store)

	s, err := scheduler.New(cfg.BriefingCron, p, cfg.FetchCeiling*4)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, s)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// buildPipeline 按配置组装每日简报管道
func buildPipeline(cfg *config.Config, store *storage.Store) *pipeline.Pipeline {
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
	if len(notifiers) == 0 {
		log.Println("warn: no notifier configured, briefings will not be pushed")
	}

	return pipeline.New(fetchers, store, analyzer, renderer, notifiers, pipeline.Options{
		Title:             cfg.BriefingTitle,
		ArticlesPerSource: cfg.MaxArticlesPerSource,
		FetchCeiling:      cfg.FetchCeiling,
		EnrichConcurrency: cfg.Concurrency,
	})
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
