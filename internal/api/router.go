package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/BriefingHub/internal/pipeline"
	"github.com/LJTian/BriefingHub/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Store API 需要的只读查询，由 storage.Store 实现
type Store interface {
	ListRecentBriefings(limit int) ([]storage.Briefing, error)
	GetBriefingByDate(date string) (*storage.Briefing, error)
	ListArticlesByDate(date string) ([]storage.Article, error)
	ListArticlesBySource(source string, limit int) ([]storage.Article, error)
	ListChannelStatus() ([]storage.ChannelStatus, error)
	ListRecentRuns(limit int) ([]storage.PipelineRun, error)
}

// Runner 手动触发一轮简报管道
type Runner interface {
	RunOnce() pipeline.Outcome
}

type Server struct {
	store  Store
	runner Runner
}

func NewServer(store Store, runner Runner) *Server {
	return &Server{store: store, runner: runner}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/briefings/run", s.runBriefing)
		v1.GET("/briefings/recent", s.listRecentBriefings)
		v1.GET("/briefings/:date", s.getBriefing)
		v1.GET("/articles/today", s.listTodayArticles)
		v1.GET("/articles/source/:source", s.listArticlesBySource)
		v1.GET("/channels/status", s.channelStatus)
		v1.GET("/runs/recent", s.listRecentRuns)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// runBriefing 同步执行一轮管道并返回结果；耗时由管道自身的超时控制
func (s *Server) runBriefing(c *gin.Context) {
	out := s.runner.RunOnce()

	status := http.StatusOK
	if out.Status == pipeline.StatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

func (s *Server) listRecentBriefings(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "7")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 7
	}

	items, err := s.store.ListRecentBriefings(limit)
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) getBriefing(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "date must be YYYY-MM-DD",
		})
		return
	}

	b, err := s.store.GetBriefingByDate(date)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no briefing for " + date,
		})
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	ok(c, b)
}

func (s *Server) listTodayArticles(c *gin.Context) {
	date := storage.BriefingDateOf(time.Now())
	items, err := s.store.ListArticlesByDate(date)
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) listArticlesBySource(c *gin.Context) {
	source := c.Param("source")
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListArticlesBySource(source, limit)
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) channelStatus(c *gin.Context) {
	items, err := s.store.ListChannelStatus()
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) listRecentRuns(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	items, err := s.store.ListRecentRuns(limit)
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
