package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rentkar/pkg/model"

	"github.com/redis/go-redis/v9"
)

const (
	rateKeyFormat    = "gps:rate:%s:%d"
	historyKeyFormat = "gps:history:%s"
)

// TrackingClient is the subset of redis commands the tracking store uses.
// *redis.Client satisfies it.
type TrackingClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

type TrackingStore interface {
	IncrementRateWindow(ctx context.Context, partnerID string, at time.Time, window time.Duration) (int64, error)
	PushHistory(ctx context.Context, partnerID string, update model.GPSUpdate, size int, ttl time.Duration) error
	History(ctx context.Context, partnerID string, limit int) ([]model.GPSUpdate, error)
}

type redisTrackingStore struct {
	client TrackingClient
}

func NewRedisTrackingStore(client TrackingClient) TrackingStore {
	return &redisTrackingStore{client: client}
}

// IncrementRateWindow bumps the partner's fixed-window counter and returns
// the post-increment count. The window key embeds the unix minute of the
// window start, so counters from different windows never collide; the TTL
// set on first increment garbage-collects stale windows. The increment is
// never rolled back, even when the caller goes on to reject the update.
func (s *redisTrackingStore) IncrementRateWindow(ctx context.Context, partnerID string, at time.Time, window time.Duration) (int64, error) {
	windowStart := at.Unix() / int64(window.Seconds())
	key := fmt.Sprintf(rateKeyFormat, partnerID, windowStart)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate window: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to expire rate window: %w", err)
		}
	}

	return count, nil
}

func (s *redisTrackingStore) PushHistory(ctx context.Context, partnerID string, update model.GPSUpdate, size int, ttl time.Duration) error {
	key := fmt.Sprintf(historyKeyFormat, partnerID)

	entry, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode gps update: %w", err)
	}

	if err := s.client.LPush(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("failed to push gps history: %w", err)
	}
	if err := s.client.LTrim(ctx, key, 0, int64(size-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim gps history: %w", err)
	}
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire gps history: %w", err)
	}

	return nil
}

// History returns the most recent accepted updates, newest first.
func (s *redisTrackingStore) History(ctx context.Context, partnerID string, limit int) ([]model.GPSUpdate, error) {
	key := fmt.Sprintf(historyKeyFormat, partnerID)

	entries, err := s.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read gps history: %w", err)
	}

	updates := make([]model.GPSUpdate, 0, len(entries))
	for _, entry := range entries {
		var update model.GPSUpdate
		if err := json.Unmarshal([]byte(entry), &update); err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		updates = append(updates, update)
	}

	return updates, nil
}
