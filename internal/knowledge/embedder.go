package knowledge

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
)

// 单条文本嵌入缓存容量（最近最少使用淘汰）
const embeddingCacheSize = 2048

// Embedder 定义文本向量化接口
type Embedder interface {
	// EmbedOne 生成单条文本的向量。空白文本返回空向量，不访问上游。
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 批量生成向量，保序，输入与输出一一对应。
	// 批量路径不走缓存，批内重复文本不去重。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ready() bool
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// embeddingAPI 抽象上游嵌入服务，便于测试替换
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     embeddingAPI
	model      string
	dimensions int
	cache      *lru.Cache[string, []float32]
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-large"
	}

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	// 容量固定为正数，构造不会失败
	cache, _ := lru.New[string, []float32](embeddingCacheSize)

	var client embeddingAPI
	if strings.TrimSpace(apiKey) != "" {
		client = openai.NewClient(strings.TrimSpace(apiKey))
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dims,
		cache:      cache,
	}
}

// EmbedOne 生成单条文本的向量。
// 缓存键为去除首尾空白后的原文，命中时不发起上游请求。
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return []float32{}, nil
	}

	if cached, ok := e.cache.Get(stripped); ok {
		result := make([]float32, len(cached))
		copy(result, cached)
		return result, nil
	}

	if e.client == nil {
		return nil, apperrors.NewProviderError("embedding", errNotConfigured)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{stripped},
	})
	if err != nil {
		return nil, apperrors.NewProviderError("embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewProviderError("embedding", errEmptyResponse)
	}

	embedding := resp.Data[0].Embedding
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	e.cache.Add(stripped, stored)

	result := make([]float32, len(stored))
	copy(result, stored)
	return result, nil
}

// EmbedBatch 批量生成向量，保序。
// 空白文本在本地占位为空向量，不发送上游；非空文本每次调用都会请求上游。
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	inputs := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		stripped := strings.TrimSpace(text)
		if stripped == "" {
			results[i] = []float32{}
			continue
		}
		inputs = append(inputs, stripped)
		positions = append(positions, i)
	}

	if len(inputs) == 0 {
		return results, nil
	}

	if e.client == nil {
		return nil, apperrors.NewProviderError("embedding", errNotConfigured)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: inputs,
	})
	if err != nil {
		return nil, apperrors.NewProviderError("embedding", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, apperrors.NewProviderError("embedding", errEmptyResponse)
	}

	for j, data := range resp.Data {
		embedding := make([]float32, len(data.Embedding))
		copy(embedding, data.Embedding)
		results[positions[j]] = embedding
	}

	return results, nil
}

// Dimensions 返回模型的向量维度
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Ready 检查客户端是否可用
func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

// CacheLen 返回当前缓存条目数（用于监控与测试）
func (e *OpenAIEmbedder) CacheLen() int {
	return e.cache.Len()
}
