package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// estimationCacheTTL bounds staleness of the read-through cache. Entries
// are immutable for a given version pair, so the TTL exists only to bound
// memory.
const estimationCacheTTL = 24 * time.Hour

// EstimationCache is a read-through Redis cache in front of the append-only
// estimation log. All methods are nil-safe: with no Redis configured every
// Get is a miss and every Set is a no-op.
type EstimationCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewEstimationCache creates the cache. client may be nil.
func NewEstimationCache(client *redis.Client, logger *zap.Logger) *EstimationCache {
	return &EstimationCache{client: client, logger: logger.Named("estimation-cache")}
}

func cacheKey(sourceID string, geometryVersion, drawingVersion int) string {
	return fmt.Sprintf("estimation:%s:%d:%d", sourceID, geometryVersion, drawingVersion)
}

// Get returns the cached result or nil on miss.
func (c *EstimationCache) Get(ctx context.Context, sourceID string, geometryVersion, drawingVersion int) *models.EstimationResult {
	if c.client == nil {
		return nil
	}
	data, err := c.client.Get(ctx, cacheKey(sourceID, geometryVersion, drawingVersion)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil
	}
	var result models.EstimationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", zap.Error(err))
		return nil
	}
	return &result
}

// Set stores a result. Failures are logged, not fatal: the Postgres log is
// the source of truth.
func (c *EstimationCache) Set(ctx context.Context, result *models.EstimationResult) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	key := cacheKey(result.SourceID, result.GeometryVersion, result.DrawingVersion)
	if err := c.client.Set(ctx, key, data, estimationCacheTTL).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}
