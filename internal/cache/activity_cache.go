// Package cache keeps activity details in Redis between reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sunnyside/internal/domain"
)

const (
	keyActivity        = "activity:"
	keyActivityVersion = "activity:version:"
	// keyGeneration feeds version numbers. It only grows, so a version key
	// that expired and was rewritten never repeats a value a reader holds.
	keyGeneration = "activity:generation"
)

// ActivityCache caches activity details as JSON in Redis. Each activity has a
// version key bumped by Invalidate; Set writes only under the version its
// loader read.
type ActivityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewActivityCache returns a new ActivityCache.
func NewActivityCache(rdb *redis.Client, ttl time.Duration) *ActivityCache {
	return &ActivityCache{rdb: rdb, ttl: ttl}
}

// Get returns cached details, nil on a miss, and the activity's current version.
func (c *ActivityCache) Get(ctx context.Context, activityID string) (*domain.ActivityDetails, int64, error) {
	pipe := c.rdb.Pipeline()
	dataCmd := pipe.Get(ctx, keyActivity+activityID)
	versionCmd := pipe.Get(ctx, keyActivityVersion+activityID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	version, err := versionOf(versionCmd)
	if err != nil {
		return nil, 0, err
	}
	b, err := dataCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var d domain.ActivityDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, 0, err
	}
	return &d, version, nil
}

// Set stores details under the activity ID when the activity's version still
// equals version. A stale write is dropped without error. The rendered
// deadline is not stored since it depends on the time of the read.
func (c *ActivityCache) Set(ctx context.Context, d *domain.ActivityDetails, version int64) error {
	stored := *d
	stored.Deadline = nil
	b, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	versionKey := keyActivityVersion + d.Activity.ID
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := versionOf(tx.Get(ctx, versionKey))
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyActivity+d.Activity.ID, b, c.ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate removes the cached details and moves the activity to a new version.
func (c *ActivityCache) Invalidate(ctx context.Context, activityID string) error {
	gen, err := c.rdb.Incr(ctx, keyGeneration).Result()
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyActivityVersion+activityID, gen, c.ttl)
		pipe.Del(ctx, keyActivity+activityID)
		return nil
	})
	return err
}

func versionOf(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
