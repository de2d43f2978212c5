// Package cache implements the fast-cache layer on Redis. Entries are a
// derived, possibly stale projection of the durable record, bounded by TTL.
// Every error is surfaced to the tracker, which treats it as non-fatal.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/tracker"
)

// RedisCache implements tracker.Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached record for a meeting.
// Returns tracker.ErrCacheMiss for absent or expired keys. A corrupt entry
// is reported as an error, not a miss; the tracker logs it and falls back.
func (c *RedisCache) Get(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error) {
	data, err := c.client.Get(ctx, buildKey(meetingID)).Bytes()
	if err == redis.Nil {
		return domain.StatusRecord{}, tracker.ErrCacheMiss
	}
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec domain.StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.StatusRecord{}, fmt.Errorf("decode cached record: %w", err)
	}
	return rec, nil
}

// Set stores the record under the meeting's key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, rec domain.StatusRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err := c.client.Set(ctx, buildKey(rec.MeetingID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping reports cache connectivity for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func buildKey(meetingID uuid.UUID) string {
	return fmt.Sprintf("meeting:%s:status", meetingID)
}

var _ tracker.Cache = (*RedisCache)(nil)
