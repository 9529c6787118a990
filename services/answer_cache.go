package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"

	"github.com/redis/go-redis/v9"
)

// AnswerCache keeps successful query answers in Redis for a bounded TTL.
// Cache failures degrade to uncached operation, never to request failures.
type AnswerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnswerCache(rdb *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{rdb: rdb, ttl: ttl}
}

// Enabled reports whether caching is active.
func (ac *AnswerCache) Enabled() bool {
	return ac != nil && ac.rdb != nil && ac.ttl > 0
}

func (ac *AnswerCache) Get(ctx context.Context, question string) (models.QueryResult, bool) {
	if !ac.Enabled() {
		return models.QueryResult{}, false
	}

	data, err := ac.rdb.Get(ctx, cacheKey(question)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Answer cache read failed", "error", err)
		}
		return models.QueryResult{}, false
	}

	var result models.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("Answer cache entry corrupted, ignoring", "error", err)
		return models.QueryResult{}, false
	}
	return result, true
}

// Set stores a successful result. Sentinel failure responses are never
// cached.
func (ac *AnswerCache) Set(ctx context.Context, question string, result models.QueryResult) {
	if !ac.Enabled() || result.Failed {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := ac.rdb.Set(ctx, cacheKey(question), data, ac.ttl).Err(); err != nil {
		logger.Warn("Answer cache write failed", "error", err)
	}
}

func cacheKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return "answer:" + hex.EncodeToString(sum[:])
}
