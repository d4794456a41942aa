package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache keeps rendered capability tables in Redis with per-user versioned
// keys. Mutations bump the user's version instead of deleting entries, so
// stale keys simply age out with the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Table loads the cached table for a user or populates it via loader.
// Concurrent builds for the same key are collapsed.
func (c *Cache) Table(ctx context.Context, userID int64, loader func(context.Context) ([]GroupView, error)) ([]GroupView, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.buildKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []GroupView
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		// Corrupt entry; rebuild below.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		table, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(table)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]GroupView), nil
}

// Bump invalidates cached tables for one user by incrementing its version.
func (c *Cache) Bump(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(userID)).Err()
}

func (c *Cache) buildKey(ctx context.Context, userID int64) (string, error) {
	ver, err := c.version(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("capabilities:table:%d:%d", userID, ver), nil
}

func (c *Cache) version(ctx context.Context, userID int64) (int64, error) {
	ver, err := c.client.Get(ctx, c.versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, c.versionKey(userID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) versionKey(userID int64) string {
	return fmt.Sprintf("capabilities:version:%d", userID)
}
