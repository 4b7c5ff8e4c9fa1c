package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const promptVersion = "v1"
const systemPrompt = `你是一名北京教育系统舆情编辑。请阅读一篇教育新闻，完成以下工作：

1. 用一到两句话写出新闻摘要，保留关键事实（机构名、数字、日期），语气平实。
2. 判断新闻的情感倾向：positive、neutral 或 negative。涉及事故、投诉、违规、处分、安全隐患的一律为 negative。
3. 判断新闻是否与北京市教育系统相关（市教委、各区教育局、北京市属学校和高校）。
4. 给出重要性分数 0-10：重大政策发布或安全事件为 8-10，常规工作动态为 3-5，一般活动报道为 0-3。
5. 提取命中的加分关键词（如"双减"、"校园安全"、"招生"、"师德"），没有则为空数组。
6. 识别新闻的原始发布来源名称（如"北京日报"、"首都教育"），无法识别则留空。

只输出 JSON，不要其他文字：
{
  "summary": "新闻摘要",
  "source_name": "原始来源名称",
  "sentiment": "positive | neutral | negative",
  "is_beijing_related": true,
  "importance": 7.5,
  "keywords": ["关键词"]
}`

type OpenAIClient struct {
	client    *openai.Client
	model     openai.ChatModel
	modelName string
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client:    &client,
		model:     openai.ChatModelGPT4oMini,
		modelName: "gpt-4o-mini",
	}
}

func (c *OpenAIClient) Score(input ScoreInput) (*ScoreResult, error) {
	userPrompt := fmt.Sprintf("标题：%s\n来源：%s\n正文：%s", input.Title, input.Source, input.Content)

	resp, err := c.client.Chat.Completions.New(context.Background(), openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})

	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	parsed, err := parseScorePayload(content)
	if err != nil {
		return nil, err
	}

	parsed.PromptVersion = promptVersion
	parsed.ModelUsed = c.modelName
	return parsed, nil
}

func parseScorePayload(content string) (*ScoreResult, error) {
	var parsed struct {
		Summary        string   `json:"summary"`
		SourceName     string   `json:"source_name"`
		Sentiment      string   `json:"sentiment"`
		BeijingRelated bool     `json:"is_beijing_related"`
		Importance     float64  `json:"importance"`
		Keywords       []string `json:"keywords"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	return &ScoreResult{
		Summary:        parsed.Summary,
		SourceName:     parsed.SourceName,
		Sentiment:      parsed.Sentiment,
		BeijingRelated: parsed.BeijingRelated,
		Importance:     parsed.Importance,
		Keywords:       parsed.Keywords,
	}, nil
}
