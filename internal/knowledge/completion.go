package knowledge

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
)

var (
	errNotConfigured = errors.New("api key not configured")
	errEmptyResponse = errors.New("upstream returned empty response")
)

// ChatMessage 补全请求中的一条消息
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionClient 定义生成式补全服务接口。
// 每次调用对应一次上游请求，失败不在内部重试。
type CompletionClient interface {
	Complete(ctx context.Context, messages []ChatMessage, temperature float32) (string, error)
	Ready() bool
}

// completionAPI 抽象上游补全服务，便于测试替换
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompletion 使用OpenAI Chat Completion API
type OpenAICompletion struct {
	client completionAPI
	model  string
}

// NewOpenAICompletion 创建OpenAI补全客户端
func NewOpenAICompletion(apiKey, model string) *OpenAICompletion {
	if model == "" {
		model = "gpt-4.1-mini"
	}

	var client completionAPI
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}

	return &OpenAICompletion{
		client: client,
		model:  model,
	}
}

// Complete 发起一次补全请求并返回生成文本
func (c *OpenAICompletion) Complete(ctx context.Context, messages []ChatMessage, temperature float32) (string, error) {
	if c.client == nil {
		return "", apperrors.NewProviderError("completion", errNotConfigured)
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: temperature,
	})
	if err != nil {
		return "", apperrors.NewProviderError("completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewProviderError("completion", errEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// Ready 检查客户端是否可用
func (c *OpenAICompletion) Ready() bool {
	return c.client != nil
}
