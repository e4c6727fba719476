package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/BriefingHub/internal/ai"
	"github.com/LJTian/BriefingHub/internal/collector"
	"github.com/LJTian/BriefingHub/internal/notify"
	"github.com/LJTian/BriefingHub/internal/processor"
	"github.com/LJTian/BriefingHub/internal/render"
	"github.com/LJTian/BriefingHub/internal/storage"
)

// ErrNoArticles 所有数据源都没抓到任何文章，是唯一让整轮直接失败的条件
var ErrNoArticles = errors.New("no articles fetched from any source")

// State 管道所处的阶段，只能单向推进
type State string

const (
	StateFetching    State = "FETCHING"
	StatePersisting  State = "PERSISTING"
	StateEnriching   State = "ENRICHING"
	StateAggregating State = "AGGREGATING"
	StateRendering   State = "RENDERING"
	StateNotifying   State = "NOTIFYING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Status 一轮执行的最终状态
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// 聚合阶段最多取评分最高的 20 篇
const maxAggregateArticles = 20

// 聚合失败时的兜底摘要
const fallbackBriefingSummary = "无法生成摘要"

// Store 是管道依赖的存储契约，由 storage.Store 实现
type Store interface {
	CreateArticleIfAbsent(p processor.Prepared) (bool, error)
	ListArticlesByDate(date string) ([]storage.Article, error)
	UpdateEnrichment(id, summary string, keywords []string, score float64) error
	UpsertBriefing(date string, totalArticles int, summary string, topics []string, htmlPath string) (*storage.Briefing, bool, error)
	SaveRun(run *storage.PipelineRun) error
}

// Analyzer 是管道依赖的 AI 分析契约，由 ai.Client 实现
type Analyzer interface {
	AnalyzeArticle(ctx context.Context, in ai.ArticleInput) (ai.Analysis, error)
	SummarizeArticles(ctx context.Context, ins []ai.ArticleInput, maxLen int) (ai.BriefingSummary, error)
}

// Renderer 把简报数据渲染为静态页面
type Renderer interface {
	Render(data render.BriefingData) (string, error)
}

// Options 管道的运行参数
type Options struct {
	Title             string
	ArticlesPerSource int
	FetchCeiling      time.Duration
	EnrichConcurrency int
	MaxSummaryLen     int
	NotifySummaryLen  int
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "每日科技简报"
	}
	if o.ArticlesPerSource <= 0 {
		o.ArticlesPerSource = 10
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = 3
	}
	if o.MaxSummaryLen <= 0 {
		o.MaxSummaryLen = 500
	}
	if o.NotifySummaryLen <= 0 {
		o.NotifySummaryLen = 200
	}
	return o
}

// Outcome 一轮执行的结果；执行结束后不再修改
type Outcome struct {
	Date      string
	State     State
	Status    Status
	Fetched   int
	Persisted int
	Enriched  int
	Elapsed   time.Duration
	HTMLPath  string
	Errors    []string
}

// Pipeline 按 抓取 → 入库 → 增强 → 聚合 → 渲染 → 通知 的顺序执行每日简报任务。
// 除了"一篇都没抓到"，任何单个阶段的失败都走降级路径，不中断后续阶段。
type Pipeline struct {
	fetchers  []collector.Fetcher
	processor *processor.SimpleProcessor
	store     Store
	analyzer  Analyzer
	renderer  Renderer
	notifiers []notify.Notifier
	opts      Options
}

func New(fetchers []collector.Fetcher, store Store, analyzer Analyzer, renderer Renderer, notifiers []notify.Notifier, opts Options) *Pipeline {
	return &Pipeline{
		fetchers:  fetchers,
		processor: processor.NewSimpleProcessor(),
		store:     store,
		analyzer:  analyzer,
		renderer:  renderer,
		notifiers: notifiers,
		opts:      opts.withDefaults(),
	}
}

// Run 执行一轮每日简报管道并返回结果。
// 对同一天重复执行是幂等的：文章按 URL 去重，简报按日期复用已有记录。
func (p *Pipeline) Run(ctx context.Context) Outcome {
	start := time.Now()
	date := storage.BriefingDateOf(start)

	out := Outcome{Date: date, Status: StatusSuccess}
	degraded := false
	addErr := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Printf("pipeline: %s", msg)
		out.Errors = append(out.Errors, msg)
	}
	finish := func(status Status, state State) Outcome {
		out.Status = status
		out.State = state
		out.Elapsed = time.Since(start)
		p.saveRun(&out)
		return out
	}

	log.Printf("briefing run started for %s", date)

	// 1. 并发抓取所有数据源
	out.State = StateFetching
	bySource, failures := collector.FetchAll(ctx, p.fetchers, p.opts.ArticlesPerSource, p.opts.FetchCeiling)
	for name, err := range failures {
		degraded = true
		addErr("source %s failed: %v", name, err)
	}

	var fetched []collector.Article
	for _, items := range bySource {
		fetched = append(fetched, items...)
	}
	out.Fetched = len(fetched)
	if len(fetched) == 0 {
		addErr("%v", ErrNoArticles)
		return finish(StatusFailed, StateFailed)
	}

	// 2. 清洗去重后入库；重复 URL 按已存在跳过，单条写入失败不阻塞其余条目
	out.State = StatePersisting
	for _, pr := range p.processor.Process(fetched) {
		created, err := p.store.CreateArticleIfAbsent(pr)
		if err != nil {
			degraded = true
			addErr("persist %s: %v", pr.URL, err)
			continue
		}
		if created {
			out.Persisted++
		}
	}
	log.Printf("persisted %d new articles (fetched %d)", out.Persisted, out.Fetched)

	// 取当日全部文章；存储读取失败没有兜底，整轮终止
	todays, err := p.store.ListArticlesByDate(date)
	if err != nil {
		addErr("list articles for %s: %v", date, err)
		return finish(StatusFailed, StateFailed)
	}

	// 3. 逐篇 AI 增强，带并发上限；失败的条目降级但仍标记为已处理
	out.State = StateEnriching
	enrichedCount, enrichDegraded := p.enrichAll(ctx, todays)
	out.Enriched = enrichedCount
	degraded = degraded || enrichDegraded

	// 4. 整体摘要与热点话题
	out.State = StateAggregating
	sortByScore(todays)
	summary, aggDegraded := p.aggregate(ctx, todays, addErr)
	degraded = degraded || aggDegraded

	// 5. 渲染 HTML 页面；失败只影响本轮的降级标记，不影响已入库的数据
	out.State = StateRendering
	htmlPath, err := p.renderer.Render(render.BriefingData{
		Date:           date,
		Title:          p.opts.Title,
		Summary:        summary.Summary,
		TrendingTopics: summary.TrendingTopics,
		Articles:       todays,
	})
	if err != nil {
		degraded = true
		addErr("render briefing: %v", err)
		htmlPath = ""
	}
	out.HTMLPath = htmlPath

	// 6. 按日期幂等保存简报记录；已存在时复用首轮生成的结果
	briefing, created, err := p.store.UpsertBriefing(date, len(todays), summary.Summary, summary.TrendingTopics, htmlPath)
	if err != nil {
		addErr("save briefing for %s: %v", date, err)
		return finish(StatusFailed, StateFailed)
	}
	if !created {
		log.Printf("briefing for %s already exists, reusing", date)
		out.HTMLPath = briefing.HTMLPath
	}

	// 7. 各通知渠道独立发送，失败互不影响
	out.State = StateNotifying
	degraded = p.notifyAll(ctx, briefing, addErr) || degraded

	status := StatusSuccess
	if degraded {
		status = StatusPartial
	}
	result := finish(status, StateDone)
	log.Printf("briefing run finished: status=%s fetched=%d persisted=%d enriched=%d elapsed=%s",
		result.Status, result.Fetched, result.Persisted, result.Enriched, result.Elapsed.Round(time.Millisecond))
	return result
}

// enrichAll 为尚未增强的文章生成摘要、关键词与评分。
// AI 失败时降级为正文截断摘要 + 0 分，并依然回写，避免下一轮重复重试；
// 兜底条目不计入 enriched 计数。
func (p *Pipeline) enrichAll(ctx context.Context, articles []storage.Article) (int, bool) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, p.opts.EnrichConcurrency)
		enriched int
		degraded bool
	)

	for i := range articles {
		a := &articles[i]
		if a.Summary != "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(a *storage.Article) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.analyzer.AnalyzeArticle(ctx, ai.ArticleInput{
				Title:   a.Title,
				Source:  a.Source,
				Content: a.Content,
				URL:     a.URL,
			})
			fellBack := err != nil
			if fellBack {
				log.Printf("pipeline: enrich %s degraded: %v", a.ID, err)
				res = ai.Analysis{Summary: fallbackSummary(a), Score: 0}
				mu.Lock()
				degraded = true
				mu.Unlock()
			}

			if err := p.store.UpdateEnrichment(a.ID, res.Summary, res.Keywords, res.Score); err != nil {
				log.Printf("pipeline: persist enrichment %s: %v", a.ID, err)
				mu.Lock()
				degraded = true
				mu.Unlock()
				return
			}

			// 回填内存中的副本，供聚合与渲染直接使用
			a.Summary = res.Summary
			a.Keywords = res.Keywords
			a.Score = res.Score

			if !fellBack {
				mu.Lock()
				enriched++
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	return enriched, degraded
}

// aggregate 对当日评分最高的文章做一次整体总结；失败时退回中性兜底
func (p *Pipeline) aggregate(ctx context.Context, articles []storage.Article, addErr func(string, ...any)) (ai.BriefingSummary, bool) {
	top := articles
	if len(top) > maxAggregateArticles {
		top = top[:maxAggregateArticles]
	}

	ins := make([]ai.ArticleInput, 0, len(top))
	for _, a := range top {
		ins = append(ins, ai.ArticleInput{
			Title:   a.Title,
			Source:  a.Source,
			Content: a.Summary,
			URL:     a.URL,
		})
	}

	summary, err := p.analyzer.SummarizeArticles(ctx, ins, p.opts.MaxSummaryLen)
	if err != nil {
		addErr("aggregate summary: %v", err)
		return ai.BriefingSummary{Summary: fallbackBriefingSummary}, true
	}
	return summary, false
}

// notifyAll 依次尝试每个通知渠道，返回是否有渠道失败
func (p *Pipeline) notifyAll(ctx context.Context, b *storage.Briefing, addErr func(string, ...any)) bool {
	if len(p.notifiers) == 0 {
		return false
	}

	title := fmt.Sprintf("%s - %s", p.opts.Title, b.Date)
	short := truncateRunes(b.Summary, p.opts.NotifySummaryLen)

	anyFailed := false
	for _, n := range p.notifiers {
		if err := n.SendBriefing(ctx, title, short, b.HTMLPath, b.TotalArticles); err != nil {
			anyFailed = true
			addErr("notify %s: %v", n.Name(), err)
			continue
		}
		log.Printf("briefing sent via %s", n.Name())
	}
	return anyFailed
}

func (p *Pipeline) saveRun(out *Outcome) {
	run := &storage.PipelineRun{
		Date:      out.Date,
		Status:    string(out.Status),
		Fetched:   out.Fetched,
		Persisted: out.Persisted,
		Enriched:  out.Enriched,
		ElapsedMS: out.Elapsed.Milliseconds(),
		Errors:    out.Errors,
	}
	if err := p.store.SaveRun(run); err != nil {
		log.Printf("pipeline: save run record: %v", err)
	}
}

// sortByScore 评分倒序，评分相同时发布时间新者优先
func sortByScore(articles []storage.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Score != articles[j].Score {
			return articles[i].Score > articles[j].Score
		}
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}

// fallbackSummary AI 不可用时用正文前缀兜底，正文为空时退回标题
func fallbackSummary(a *storage.Article) string {
	if s := truncateRunes(a.Content, 200); s != "" {
		return s
	}
	return a.Title
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
