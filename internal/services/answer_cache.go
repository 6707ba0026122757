package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AnswerCache 基于Redis的查询结果缓存。
// 未启用或Redis不可用时所有操作静默降级为未命中，
// 不改变流水线本身的语义。
type AnswerCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
	logger  *zap.Logger

	hitStats *CacheHitStats
}

// CacheHitStats 缓存命中率统计
type CacheHitStats struct {
	hits   int64
	misses int64
	mu     sync.RWMutex
}

// NewAnswerCache 创建查询结果缓存
func NewAnswerCache(client *redis.Client, enabled bool, ttl time.Duration, logger *zap.Logger) *AnswerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.L()
	}
	return &AnswerCache{
		client:   client,
		enabled:  enabled && client != nil,
		ttl:      ttl,
		logger:   logger,
		hitStats: &CacheHitStats{},
	}
}

// Get 查询缓存，未启用或未命中时返回false
func (c *AnswerCache) Get(ctx context.Context, query string) (*PipelineResult, bool) {
	if !c.enabled {
		return nil, false
	}

	payload, err := c.client.Get(ctx, c.key(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("answer cache read failed", zap.Error(err))
		}
		c.hitStats.recordMiss()
		return nil, false
	}

	var result PipelineResult
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Warn("answer cache entry corrupted, dropping", zap.Error(err))
		c.client.Del(ctx, c.key(query))
		c.hitStats.recordMiss()
		return nil, false
	}

	c.markCacheHit()
	return &result, true
}

// markCacheHit 命中计数，并在查询总数指标里记一次cache_hit，
// 否则命中缓存的查询会从计数器里消失
func (c *AnswerCache) markCacheHit() {
	c.hitStats.recordHit()
	queryTotal.WithLabelValues("cache_hit").Inc()
}

// Set 写入缓存，失败只记录不报错
func (c *AnswerCache) Set(ctx context.Context, query string, result *PipelineResult) {
	if !c.enabled || result == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("failed to encode cached answer", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(query), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("answer cache write failed", zap.Error(err))
	}
}

// Stats 返回命中率统计
func (c *AnswerCache) Stats() map[string]interface{} {
	c.hitStats.mu.RLock()
	defer c.hitStats.mu.RUnlock()

	total := c.hitStats.hits + c.hitStats.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hitStats.hits) / float64(total)
	}
	return map[string]interface{}{
		"enabled":  c.enabled,
		"hits":     c.hitStats.hits,
		"misses":   c.hitStats.misses,
		"hit_rate": hitRate,
	}
}

func (c *AnswerCache) key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "compliance:answer:" + hex.EncodeToString(sum[:])
}

func (s *CacheHitStats) recordHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *CacheHitStats) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}
