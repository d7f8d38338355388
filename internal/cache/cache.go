package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/monitoring"
)

// KeyClass groups cache keys sharing one TTL policy
type KeyClass string

const (
	ClassDashboard KeyClass = "dashboard"
	ClassSummary   KeyClass = "summary"
)

// DashboardSourceKey is the cache key for a single source's dashboard view
func DashboardSourceKey(sourceID uuid.UUID) string {
	return fmt.Sprintf("dashboard:source:%s", sourceID)
}

// DashboardBrandKey is the cache key for a brand's all-sources dashboard view
func DashboardBrandKey(brandID uuid.UUID) string {
	return fmt.Sprintf("dashboard:brand:%s", brandID)
}

// SummaryKey is the cache key for a source's latest AI summary
func SummaryKey(sourceID uuid.UUID) string {
	return fmt.Sprintf("summary:source:%s", sourceID)
}

// Store is the cache port the pipeline depends on. Set and Invalidate are
// best-effort: a cache outage degrades read latency, never correctness.
type Store interface {
	Get(ctx context.Context, class KeyClass, key string) (string, bool)
	Set(ctx context.Context, class KeyClass, key, value string)
	Invalidate(ctx context.Context, keys ...string)
}

// RedisStore implements Store over Redis with a TTL per key class
type RedisStore struct {
	redis *Redis
	ttls  map[KeyClass]time.Duration
}

// NewStore creates a Redis-backed cache store
func NewStore(r *Redis, cfg *config.CacheConfig) *RedisStore {
	return &RedisStore{
		redis: r,
		ttls: map[KeyClass]time.Duration{
			ClassDashboard: cfg.DashboardTTL,
			ClassSummary:   cfg.SummaryTTL,
		},
	}
}

// Get fetches a cached value. A Redis error counts as a miss.
func (s *RedisStore) Get(ctx context.Context, class KeyClass, key string) (string, bool) {
	val, err := s.redis.Client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		monitoring.RecordCacheMiss(string(class))
		return "", false
	}
	monitoring.RecordCacheHit(string(class))
	return val, true
}

// Set stores a value with the TTL of its key class
func (s *RedisStore) Set(ctx context.Context, class KeyClass, key, value string) {
	ttl := s.ttls[class]
	if err := s.redis.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Invalidate removes the given keys, fire-and-forget
func (s *RedisStore) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.redis.Client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Cache invalidation failed")
	}
}
