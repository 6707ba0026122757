package knowledge

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kunledollar/multiagent-policy-compliance-rag/internal/errors"
)

// fakeEmbeddingAPI 记录调用次数并返回确定性向量
type fakeEmbeddingAPI struct {
	calls int
	fail  bool
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.fail {
		return openai.EmbeddingResponse{}, errors.New("upstream unavailable")
	}

	req := conv.Convert()
	inputs, ok := req.Input.([]string)
	if !ok {
		return openai.EmbeddingResponse{}, errors.New("unexpected input type")
	}

	resp := openai.EmbeddingResponse{}
	for i, text := range inputs {
		resp.Data = append(resp.Data, openai.Embedding{
			Embedding: []float32{float32(len(text)), float32(i)},
		})
	}
	return resp, nil
}

func newTestEmbedder(fake *fakeEmbeddingAPI) *OpenAIEmbedder {
	e := NewOpenAIEmbedder("", "text-embedding-3-large")
	e.client = fake
	return e
}

func TestEmbedOneCachesByStrippedText(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	first, err := e.EmbedOne(context.Background(), "data retention")
	require.NoError(t, err)

	// 首尾空白不同但正文相同，必须命中缓存
	second, err := e.EmbedOne(context.Background(), "  data retention \n")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 1, e.CacheLen())
}

func TestEmbedOneBlankTextSkipsUpstream(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	vec, err := e.EmbedOne(context.Background(), "   \t\n ")
	require.NoError(t, err)
	assert.Empty(t, vec)
	assert.Equal(t, 0, fake.calls)
	assert.Equal(t, 0, e.CacheLen())
}

func TestEmbedOneCachedResultIsACopy(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	first, err := e.EmbedOne(context.Background(), "policy")
	require.NoError(t, err)
	first[0] = 999

	second, err := e.EmbedOne(context.Background(), "policy")
	require.NoError(t, err)
	assert.NotEqual(t, float32(999), second[0])
}

func TestEmbedOneProviderFailure(t *testing.T) {
	fake := &fakeEmbeddingAPI{fail: true}
	e := newTestEmbedder(fake)

	_, err := e.EmbedOne(context.Background(), "policy")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderError(err))
}

func TestEmbedBatchPreservesOrderAndBlanks(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	results, err := e.EmbedBatch(context.Background(), []string{"alpha", "   ", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 空白文本占位为空向量，不发送上游
	assert.NotEmpty(t, results[0])
	assert.Empty(t, results[1])
	assert.NotEmpty(t, results[2])
	assert.Equal(t, 1, fake.calls)
}

func TestEmbedBatchDoesNotDeduplicate(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	results, err := e.EmbedBatch(context.Background(), []string{"same", "same"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 两条重复输入都原样发给上游（fake按批内位置区分返回值）
	assert.Equal(t, []float32{4, 0}, results[0])
	assert.Equal(t, []float32{4, 1}, results[1])

	// 批量路径不写单条缓存
	assert.Equal(t, 0, e.CacheLen())
}

func TestEmbedBatchAllBlank(t *testing.T) {
	fake := &fakeEmbeddingAPI{}
	e := newTestEmbedder(fake)

	results, err := e.EmbedBatch(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0])
	assert.Empty(t, results[1])
	assert.Equal(t, 0, fake.calls)
}

func TestEmbedderDimensions(t *testing.T) {
	assert.Equal(t, 3072, NewOpenAIEmbedder("", "text-embedding-3-large").Dimensions())
	assert.Equal(t, 1536, NewOpenAIEmbedder("", "text-embedding-3-small").Dimensions())
	assert.Equal(t, 1536, NewOpenAIEmbedder("", "unknown-model").Dimensions())
}

func TestEmbedderNotConfigured(t *testing.T) {
	e := NewOpenAIEmbedder("", "text-embedding-3-large")
	assert.False(t, e.Ready())

	_, err := e.EmbedOne(context.Background(), "policy")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderError(err))
}
