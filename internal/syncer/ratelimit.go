package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/monitoring"
)

// RateLimitError is returned when a manual trigger hits the per-source
// cooldown. RetryAt is the next instant a trigger will be accepted.
type RateLimitError struct {
	RetryAt time.Time
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("manual sync rate limit exceeded, retry at %s", e.RetryAt.Format(time.RFC3339))
}

// ManualLimiter enforces the rolling per-source cooldown between manual
// triggers using a Redis key with TTL
type ManualLimiter struct {
	redis    *cache.Redis
	cooldown time.Duration
}

// NewManualLimiter creates a manual trigger rate limiter
func NewManualLimiter(r *cache.Redis, cooldown time.Duration) *ManualLimiter {
	return &ManualLimiter{redis: r, cooldown: cooldown}
}

func manualKey(sourceID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:manual_sync:%s", sourceID)
}

// Reserve consumes the source's manual trigger slot. Returns a
// *RateLimitError when the slot was used within the cooldown window.
// On Redis errors the request is allowed (fail open); the storage-level
// active-job constraint still prevents duplicate jobs.
func (l *ManualLimiter) Reserve(ctx context.Context, sourceID uuid.UUID) error {
	key := manualKey(sourceID)

	ok, err := l.redis.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.cooldown).Result()
	if err != nil {
		log.Error().Err(err).Str("source_id", sourceID.String()).Msg("Failed to check manual sync rate limit")
		return nil
	}
	if ok {
		return nil
	}

	ttl, err := l.redis.Client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.cooldown
	}

	monitoring.RecordRateLimitHit()
	return &RateLimitError{RetryAt: time.Now().Add(ttl)}
}

// Release frees a reservation that did not result in a job, so a rejected
// trigger does not burn the user's daily slot
func (l *ManualLimiter) Release(ctx context.Context, sourceID uuid.UUID) {
	if err := l.redis.Client.Del(ctx, manualKey(sourceID)).Err(); err != nil {
		log.Warn().Err(err).Str("source_id", sourceID.String()).Msg("Failed to release manual sync slot")
	}
}
