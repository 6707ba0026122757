package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
	"github.com/kunledollar/multiagent-policy-compliance-rag/internal/knowledge"
)

// fakeEmbedder 把预置文本映射为固定向量
type fakeEmbedder struct {
	byText map[string][]float32
	dim    int
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.byText[strings.TrimSpace(text)]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dim }
func (f *fakeEmbedder) Ready() bool     { return true }

// countingCompletion 记录每次补全调用的提示词与温度
type countingCompletion struct {
	calls        int
	temperatures []float32
	prompts      []string
}

func (f *countingCompletion) Complete(ctx context.Context, messages []knowledge.ChatMessage, temperature float32) (string, error) {
	f.calls++
	f.temperatures = append(f.temperatures, temperature)
	var joined strings.Builder
	for _, m := range messages {
		joined.WriteString(m.Content)
		joined.WriteString("\n")
	}
	f.prompts = append(f.prompts, joined.String())
	return "generated response citing policy A", nil
}

func (f *countingCompletion) Ready() bool { return true }

func newTestStoreWithPolicies(t *testing.T) knowledge.VectorStore {
	dir := t.TempDir()
	store := knowledge.NewFlatVectorStore(
		filepath.Join(dir, "vector_index.gob"),
		filepath.Join(dir, "metadata.json"),
		zap.NewNop(),
	)

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	metas := []knowledge.ChunkMeta{
		{Text: "data retention period is 30 days", Source: "data/A_retention.txt", PolicyID: "A", ChunkID: 0},
		{Text: "access requires manager approval", Source: "data/B_access.txt", PolicyID: "B", ChunkID: 0},
		{Text: "incidents reported within 24 hours", Source: "data/C_incident.txt", PolicyID: "C", ChunkID: 0},
	}
	require.NoError(t, store.Add(context.Background(), vectors, metas))
	return store
}

func TestAnswerQueryEndToEnd(t *testing.T) {
	store := newTestStoreWithPolicies(t)
	embedder := &fakeEmbedder{
		dim: 3,
		byText: map[string][]float32{
			"how long is data retained?": {0.95, 0.05, 0},
		},
	}
	completion := &countingCompletion{}

	svc := NewRAGService(store, embedder, completion, 2, 0, zap.NewNop())

	result, err := svc.AnswerQuery(context.Background(), "how long is data retained?")
	require.NoError(t, err)
	require.NotNil(t, result)

	// 检索+重排后策略A排在最前
	require.Len(t, result.Contexts, 2)
	assert.Equal(t, "A", result.Contexts[0].PolicyID)
	assert.Equal(t, "B", result.Contexts[1].PolicyID)

	// 四个生成阶段各调用一次补全
	assert.Equal(t, 4, completion.calls)
	assert.Equal(t, "generated response citing policy A", result.Answer)
	assert.NotEmpty(t, result.Reasoning)
	assert.NotEmpty(t, result.FactCheck)

	// 来源与重排结果同序
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "data/A_retention.txt", result.Sources[0])

	// 摘要阶段的提示词携带策略标识
	assert.Contains(t, completion.prompts[0], "[A] data retention period is 30 days")
}

func TestAnswerQueryStageTemperatures(t *testing.T) {
	store := newTestStoreWithPolicies(t)
	embedder := &fakeEmbedder{
		dim:    3,
		byText: map[string][]float32{"q": {1, 0, 0}},
	}
	completion := &countingCompletion{}

	svc := NewRAGService(store, embedder, completion, 3, 0, zap.NewNop())

	_, err := svc.AnswerQuery(context.Background(), "q")
	require.NoError(t, err)

	// 摘要、推理、写作0.2，事实核查0.0
	require.Len(t, completion.temperatures, 4)
	assert.Equal(t, float32(0.2), completion.temperatures[0])
	assert.Equal(t, float32(0.2), completion.temperatures[1])
	assert.Equal(t, float32(0.0), completion.temperatures[2])
	assert.Equal(t, float32(0.2), completion.temperatures[3])
}

func TestAnswerQueryEmptyEvidenceShortCircuits(t *testing.T) {
	dir := t.TempDir()
	store := knowledge.NewFlatVectorStore(
		filepath.Join(dir, "vector_index.gob"),
		filepath.Join(dir, "metadata.json"),
		zap.NewNop(),
	)
	embedder := &fakeEmbedder{dim: 3}
	completion := &countingCompletion{}

	svc := NewRAGService(store, embedder, completion, 6, 0, zap.NewNop())

	result, err := svc.AnswerQuery(context.Background(), "anything")
	require.NoError(t, err)
	require.NotNil(t, result)

	// 无证据时不得调用补全服务
	assert.Equal(t, 0, completion.calls)
	assert.Equal(t, "I could not find any relevant policy excerpts for this question.", result.Answer)
	assert.Equal(t, "No documents retrieved", result.FactCheck)
	assert.Empty(t, result.Contexts)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Reasoning)
}

func TestAnswerQueryEmptyQuery(t *testing.T) {
	store := newTestStoreWithPolicies(t)
	svc := NewRAGService(store, &fakeEmbedder{dim: 3}, &countingCompletion{}, 6, 0, zap.NewNop())

	_, err := svc.AnswerQuery(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsAppError(err))
}

func TestRerankStableSortByScore(t *testing.T) {
	svc := NewRAGService(nil, nil, nil, 6, 0, zap.NewNop())

	candidates := []knowledge.RetrievalResult{
		{ChunkMeta: knowledge.ChunkMeta{PolicyID: "C"}, Score: 0.9},
		{ChunkMeta: knowledge.ChunkMeta{PolicyID: "A"}, Score: 0.1},
		{ChunkMeta: knowledge.ChunkMeta{PolicyID: "B1"}, Score: 0.5},
		{ChunkMeta: knowledge.ChunkMeta{PolicyID: "B2"}, Score: 0.5},
	}

	reranked := svc.rerank("q", candidates)

	assert.Equal(t, "A", reranked[0].PolicyID)
	// 同分保持原有相对顺序
	assert.Equal(t, "B1", reranked[1].PolicyID)
	assert.Equal(t, "B2", reranked[2].PolicyID)
	assert.Equal(t, "C", reranked[3].PolicyID)

	// 原切片不被就地修改
	assert.Equal(t, "C", candidates[0].PolicyID)
}

func TestContextBudgetLimitsStageContext(t *testing.T) {
	store := newTestStoreWithPolicies(t)
	embedder := &fakeEmbedder{
		dim:    3,
		byText: map[string][]float32{"q": {1, 0, 0}},
	}
	completion := &countingCompletion{}

	// 预算10个字符，摘要阶段只能看到上下文的开头
	svc := NewRAGService(store, embedder, completion, 1, 10, zap.NewNop())

	_, err := svc.AnswerQuery(context.Background(), "q")
	require.NoError(t, err)

	require.NotEmpty(t, completion.prompts)
	assert.Contains(t, completion.prompts[0], "[A] data r")
	assert.NotContains(t, completion.prompts[0], "30 days")
}

func TestContextBudgetDefault(t *testing.T) {
	svc := NewRAGService(nil, nil, nil, 6, 0, zap.NewNop())
	assert.Equal(t, defaultContextBudget, svc.contextBudget)

	svc = NewRAGService(nil, nil, nil, 6, 1234, zap.NewNop())
	assert.Equal(t, 1234, svc.contextBudget)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "ab", truncateRunes("abcdef", 2))
	assert.Equal(t, "abcdef", truncateRunes("abcdef", 0))
}
