package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAnswerCacheDisabled(t *testing.T) {
	cache := NewAnswerCache(nil, false, 0, zap.NewNop())

	result, ok := cache.Get(context.Background(), "any query")
	assert.False(t, ok)
	assert.Nil(t, result)

	// 未启用时写入是空操作，不会崩溃
	cache.Set(context.Background(), "any query", &PipelineResult{Answer: "a"})

	stats := cache.Stats()
	assert.Equal(t, false, stats["enabled"])
}

func TestAnswerCacheNilClientForcesDisabled(t *testing.T) {
	// 即使请求启用，没有Redis客户端时也保持关闭
	cache := NewAnswerCache(nil, true, 0, zap.NewNop())

	_, ok := cache.Get(context.Background(), "q")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, false, stats["enabled"])
}

func TestCacheHitCountsAsQueryOutcome(t *testing.T) {
	cache := NewAnswerCache(nil, false, 0, zap.NewNop())

	before := testutil.ToFloat64(queryTotal.WithLabelValues("cache_hit"))
	cache.markCacheHit()

	// 命中缓存的查询也要出现在查询总数指标里
	assert.Equal(t, before+1, testutil.ToFloat64(queryTotal.WithLabelValues("cache_hit")))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats["hits"])
}

func TestAnswerCacheKeyIsStable(t *testing.T) {
	cache := NewAnswerCache(nil, false, 0, zap.NewNop())

	assert.Equal(t, cache.key("same question"), cache.key("same question"))
	assert.NotEqual(t, cache.key("question a"), cache.key("question b"))
}
