package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/BriefingHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Channel 描述一个数据源，例如 hackernews / v2ex / 36kr
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article 一篇采集的文章；URL 唯一索引保证跨数据源、跨批次去重
type Article struct {
	ID      string `gorm:"primaryKey;size:40" json:"id"`
	Title   string `gorm:"size:512" json:"title"`
	URL     string `gorm:"size:1024;uniqueIndex" json:"url"`
	Source  string `gorm:"size:64;index" json:"source"`
	Content string `gorm:"type:text" json:"content"`

	// AI 增强字段，入库时为空，由管道的增强阶段填充一次
	Summary   string                      `gorm:"type:text" json:"summary"`
	Keywords  datatypes.JSONSlice[string] `json:"keywords"`
	Category  string                      `gorm:"size:64" json:"category"`
	Sentiment string                      `gorm:"size:16" json:"sentiment"`
	Score     float64                     `gorm:"index" json:"score"`

	PublishedAt time.Time `json:"publishedAt"`
	// 文章归属的简报日期 YYYY-MM-DD（按东八区的采集日期）
	BriefingDate string                      `gorm:"size:10;index" json:"briefingDate"`
	Author       string                      `gorm:"size:128" json:"author"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	ExtraData    datatypes.JSONMap           `gorm:"type:jsonb" json:"extraData"`

	EnrichedAt *time.Time `json:"enrichedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Briefing 每天至多一份的简报记录，date 唯一索引保证幂等
type Briefing struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	Date           string                      `gorm:"size:10;uniqueIndex" json:"date"`
	TotalArticles  int                         `json:"totalArticles"`
	Summary        string                      `gorm:"type:text" json:"summary"`
	TrendingTopics datatypes.JSONSlice[string] `json:"trendingTopics"`
	HTMLPath       string                      `gorm:"size:512" json:"htmlPath"`

	CreatedAt time.Time `json:"createdAt"`
}

// PipelineRun 一次管道执行的结果记录，只追加、不更新
type PipelineRun struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Date      string                      `gorm:"size:10;index" json:"date"`
	Status    string                      `gorm:"size:16;index" json:"status"` // success / partial / failed
	Fetched   int                         `json:"fetched"`
	Persisted int                         `json:"persisted"`
	Enriched  int                         `json:"enriched"`
	ElapsedMS int64                       `json:"elapsedMs"`
	Errors    datatypes.JSONSlice[string] `json:"errors"`

	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	// TranslateError 把唯一索引冲突统一成 gorm.ErrDuplicatedKey，
	// 并发写入的竞争在各写入方法里按"已存在"处理
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Channel{}, &Article{}, &Briefing{}, &PipelineRun{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureChannel 确保某个渠道存在
func (s *Store) EnsureChannel(code, name, baseURL string) (*Channel, error) {
	ch := &Channel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// ChannelStatus 渠道的运行状态快照，供 API 展示
type ChannelStatus struct {
	Channel
	TodayArticles int        `json:"todayArticles"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
}

// ListChannelStatus 返回各渠道的状态，附带当日入库条数与最近一次入库时间
func (s *Store) ListChannelStatus() ([]ChannelStatus, error) {
	var channels []Channel
	if err := s.DB.Order("id ASC").Find(&channels).Error; err != nil {
		return nil, err
	}

	today := BriefingDateOf(time.Now())
	out := make([]ChannelStatus, 0, len(channels))
	for _, ch := range channels {
		st := ChannelStatus{Channel: ch}

		var count int64
		if err := s.DB.Model(&Article{}).
			Where("source = ? AND briefing_date = ?", ch.Code, today).
			Count(&count).Error; err != nil {
			return nil, err
		}
		st.TodayArticles = int(count)

		var last Article
		if err := s.DB.Where("source = ?", ch.Code).
			Order("created_at DESC").
			First(&last).Error; err == nil {
			t := last.CreatedAt
			st.LastFetchedAt = &t
		}

		out = append(out, st)
	}
	return out, nil
}

// 东八区，用于简报日期的归属与筛选
var locEast8 *time.Location

func init() {
	locEast8, _ = time.LoadLocation("Asia/Shanghai")
	if locEast8 == nil {
		locEast8 = time.FixedZone("CST", 8*3600)
	}
}

// BriefingDateOf 返回某个时间点对应的简报日期（东八区 YYYY-MM-DD）
func BriefingDateOf(t time.Time) string {
	return t.In(locEast8).Format("2006-01-02")
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunes 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// CreateArticleIfAbsent 以 URL 为幂等键写入一篇文章。
// 已存在时不做任何更新（先写者胜），返回 false 表示跳过。
func (s *Store) CreateArticleIfAbsent(p processor.Prepared) (bool, error) {
	a := &Article{
		ID:           p.ID,
		Title:        truncateRunes(toValidUTF8(p.Title), 512),
		URL:          p.URL,
		Source:       p.Source,
		Content:      toValidUTF8(p.Content),
		PublishedAt:  p.PublishedAt,
		BriefingDate: BriefingDateOf(time.Now()),
		Author:       truncateRunes(toValidUTF8(p.Author), 128),
		Tags:         datatypes.NewJSONSlice(p.Tags),
		ExtraData:    datatypes.JSONMap(p.RawData),
	}

	res := s.DB.Where("url = ?", p.URL).FirstOrCreate(a)
	return createdOrSkipped(res.RowsAffected, res.Error)
}

// createdOrSkipped 解释 FirstOrCreate 的结果。两轮并发执行可能同时没查到
// 再抢写同一行，输掉唯一索引竞争等价于"已存在、跳过"，不作为错误上报。
func createdOrSkipped(rowsAffected int64, err error) (bool, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return rowsAffected > 0, nil
}

// ListArticlesByDate 返回某个简报日期的全部文章，按评分倒序
func (s *Store) ListArticlesByDate(date string) ([]Article, error) {
	var list []Article
	err := s.DB.Model(&Article{}).
		Where("briefing_date = ?", date).
		Order("score DESC").Order("published_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListArticlesBySource 返回某个数据源的最新文章
func (s *Store) ListArticlesBySource(source string, limit int) ([]Article, error) {
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	var list []Article
	err := s.DB.Model(&Article{}).
		Where("source = ?", source).
		Order("score DESC").Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateEnrichment 回写 AI 增强结果；文章不存在时返回 gorm.ErrRecordNotFound
func (s *Store) UpdateEnrichment(id, summary string, keywords []string, score float64) error {
	now := time.Now()
	res := s.DB.Model(&Article{}).Where("id = ?", id).Updates(map[string]any{
		"summary":     toValidUTF8(summary),
		"keywords":    datatypes.NewJSONSlice(keywords),
		"score":       score,
		"enriched_at": &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertBriefing 按日期幂等创建简报：第一次执行创建，之后返回已有记录
func (s *Store) UpsertBriefing(date string, totalArticles int, summary string, topics []string, htmlPath string) (*Briefing, bool, error) {
	b := &Briefing{
		Date:           date,
		TotalArticles:  totalArticles,
		Summary:        summary,
		TrendingTopics: datatypes.NewJSONSlice(topics),
		HTMLPath:       htmlPath,
	}
	res := s.DB.Where("date = ?", date).FirstOrCreate(b)
	if res.Error != nil {
		// 另一轮并发执行抢先插入了同一天的简报，回读已有记录
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			existing, err := s.GetBriefingByDate(date)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, res.Error
	}
	return b, res.RowsAffected > 0, nil
}

// GetBriefingByDate 返回指定日期的简报，没有则返回 gorm.ErrRecordNotFound
func (s *Store) GetBriefingByDate(date string) (*Briefing, error) {
	b := &Briefing{}
	if err := s.DB.Where("date = ?", date).First(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

const listCacheTTL = 5 * time.Minute

// ListRecentBriefings 返回最近的简报列表，并使用 Redis 做简单缓存
func (s *Store) ListRecentBriefings(limit int) ([]Briefing, error) {
	if limit <= 0 || limit > 365 {
		limit = 7
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("briefing:recent:%d", limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Briefing
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Briefing
	err := s.DB.Model(&Briefing{}).
		Order("date DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// SaveRun 追加一条管道执行记录
func (s *Store) SaveRun(run *PipelineRun) error {
	return s.DB.Create(run).Error
}

// ListRecentRuns 返回最近的管道执行记录
func (s *Store) ListRecentRuns(limit int) ([]PipelineRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var list []PipelineRun
	err := s.DB.Model(&PipelineRun{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
