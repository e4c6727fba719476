package render

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"

	"github.com/LJTian/BriefingHub/internal/storage"
)

// 每页最多展示的文章数
const maxArticlesPerPage = 50

// BriefingData 渲染一份简报所需的全部数据
type BriefingData struct {
	Date           string
	Title          string
	Summary        string
	TrendingTopics []string
	Articles       []storage.Article
}

// HTMLRenderer 将简报渲染为静态 HTML 页面
type HTMLRenderer struct {
	outputDir string
	tmpl      *template.Template
}

func NewHTMLRenderer(outputDir string) (*HTMLRenderer, error) {
	tmpl, err := template.New("briefing").Parse(briefingTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse briefing template: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &HTMLRenderer{outputDir: outputDir, tmpl: tmpl}, nil
}

// Render 生成简报页面并返回文件路径
func (r *HTMLRenderer) Render(data BriefingData) (string, error) {
	if len(data.Articles) > maxArticlesPerPage {
		data.Articles = data.Articles[:maxArticlesPerPage]
	}

	path := filepath.Join(r.outputDir, fmt.Sprintf("briefing-%s.html", data.Date))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create briefing file: %w", err)
	}
	defer f.Close()

	if err := r.tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render briefing: %w", err)
	}

	log.Printf("briefing rendered to %s (%d articles)", path, len(data.Articles))
	return path, nil
}

const briefingTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} - {{.Date}}</title>
<style>
  body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; line-height: 1.6; color: #333; margin: 0; }
  .container { max-width: 760px; margin: 0 auto; padding: 20px; }
  .header { background: #667eea; color: #fff; padding: 24px; text-align: center; border-radius: 8px; }
  .summary { background: #f5f6fa; padding: 16px; border-radius: 8px; margin: 20px 0; }
  .topics span { display: inline-block; background: #eef; color: #445; padding: 2px 10px; margin: 2px; border-radius: 10px; font-size: 13px; }
  .article { border-bottom: 1px solid #eee; padding: 14px 0; }
  .article h3 { margin: 0 0 6px; }
  .article .meta { color: #888; font-size: 13px; }
  .footer { text-align: center; color: #999; font-size: 12px; padding: 20px 0; }
  a { color: #667eea; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>{{.Title}}</h1>
    <p>{{.Date}}</p>
  </div>
  <div class="summary">
    <h2>今日概览</h2>
    <p>{{.Summary}}</p>
    {{if .TrendingTopics}}<div class="topics">{{range .TrendingTopics}}<span>{{.}}</span>{{end}}</div>{{end}}
  </div>
  {{range .Articles}}
  <div class="article">
    <h3><a href="{{.URL}}">{{.Title}}</a></h3>
    {{if .Summary}}<p>{{.Summary}}</p>{{end}}
    <div class="meta">{{.Source}}{{if .Author}} · {{.Author}}{{end}} · 评分 {{printf "%.2f" .Score}}</div>
  </div>
  {{end}}
  <div class="footer">由 AI 自动生成 | 共 {{len .Articles}} 篇文章</div>
</div>
</body>
</html>
`
