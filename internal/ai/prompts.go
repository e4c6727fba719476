package ai

const systemPrompt = "你是一个专业的科技资讯分析师。"

const analyzePromptTemplate = `请分析以下科技文章，并以JSON格式返回分析结果：

%s

请返回以下格式的JSON：
{
    "summary": "一句话总结文章核心内容（30-50字）",
    "keywords": ["关键词1", "关键词2", "关键词3"],
    "category": "文章类别（如：人工智能、移动开发、前端技术、云计算等）",
    "sentiment": "情感倾向（positive/neutral/negative）",
    "score": 0.8
}

注意：
- summary要简洁准确
- keywords提取3-5个最重要的技术关键词
- score范围0-1，表示文章重要性和热度
`

const summarizePromptTemplate = `请分析以下%d篇科技文章，生成今日科技简报：

%s

请以JSON格式返回：
{
    "summary": "今日科技热点概述（不超过%d字），涵盖主要趋势和重要事件",
    "trending_topics": ["热点话题1", "热点话题2", "热点话题3"],
    "category": "主要分类（如：人工智能、云计算等）"
}

要求：
- summary要简洁全面，突出重点
- trending_topics提取3-5个今日最热技术话题
- 按重要性排序
`
