package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedResponse 表示模型返回了无法解析的内容。
// 这类错误不重试，由调用方走降级路径。
var ErrMalformedResponse = errors.New("ai: malformed response")

const (
	defaultClientTimeout = 60 * time.Second
	maxAggregateArticles = 20
	defaultMaxSummaryLen = 500
)

// Client 调用兼容 OpenAI Chat Completions 协议的服务（OpenRouter 等）
type Client struct {
	endpoint string
	model    string
	apiKey   string

	httpClient *http.Client
}

func NewClient(endpoint, model, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// ArticleInput 是喂给模型的文章上下文
type ArticleInput struct {
	Title   string
	Source  string
	Content string
	URL     string
}

// Analysis 单篇文章的分析结果，Score 保证在 [0,1] 区间内
type Analysis struct {
	Summary   string   `json:"summary"`
	Keywords  []string `json:"keywords"`
	Category  string   `json:"category"`
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"-"`
}

// BriefingSummary 全天文章的整体摘要与热点话题
type BriefingSummary struct {
	Summary        string   `json:"summary"`
	TrendingTopics []string `json:"trending_topics"`
	Category       string   `json:"category"`
}

// AnalyzeArticle 分析单篇文章，返回摘要、关键词与重要性评分
func (c *Client) AnalyzeArticle(ctx context.Context, in ArticleInput) (Analysis, error) {
	prompt := fmt.Sprintf(analyzePromptTemplate, buildArticleContext(in))

	content, err := c.chat(ctx, prompt, 0.7, 2000)
	if err != nil {
		return Analysis{}, err
	}

	var raw struct {
		Summary   string   `json:"summary"`
		Keywords  []string `json:"keywords"`
		Category  string   `json:"category"`
		Sentiment string   `json:"sentiment"`
		Score     any      `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Summary == "" {
		return Analysis{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}

	return Analysis{
		Summary:   raw.Summary,
		Keywords:  raw.Keywords,
		Category:  raw.Category,
		Sentiment: raw.Sentiment,
		Score:     clampScore(coerceScore(raw.Score)),
	}, nil
}

// SummarizeArticles 对全天文章做一次整体总结；最多取前 20 篇
func (c *Client) SummarizeArticles(ctx context.Context, ins []ArticleInput, maxLen int) (BriefingSummary, error) {
	if maxLen <= 0 {
		maxLen = defaultMaxSummaryLen
	}
	if len(ins) > maxAggregateArticles {
		ins = ins[:maxAggregateArticles]
	}

	var b strings.Builder
	for i, in := range ins {
		body := in.Content
		if body == "" {
			body = in.URL
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n\n", i+1, in.Title, body)
	}

	prompt := fmt.Sprintf(summarizePromptTemplate, len(ins), b.String(), maxLen)

	content, err := c.chat(ctx, prompt, 0.5, 2000)
	if err != nil {
		return BriefingSummary{}, err
	}

	var out BriefingSummary
	if err := json.Unmarshal([]byte(extractJSON(content)), &out); err != nil {
		return BriefingSummary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Summary == "" {
		return BriefingSummary{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}

	return out, nil
}

func (c *Client) chat(ctx context.Context, userPrompt string, temperature float64, maxTokens int) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("ai client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ai service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ai service error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return out.Choices[0].Message.Content, nil
}

func buildArticleContext(in ArticleInput) string {
	body := in.Content
	if body == "" {
		body = in.URL
	}
	return fmt.Sprintf("标题: %s\n来源: %s\n内容: %s", in.Title, in.Source, body)
}

// extractJSON 剥掉模型常见的 ```json 代码块包装
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// coerceScore 兼容模型把 score 返回成字符串的情况，解析失败按 0 处理
func coerceScore(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
