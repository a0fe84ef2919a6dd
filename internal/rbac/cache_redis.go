package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	permissionsVersionKey = "rbac:permissions:version"
	// InvalidateChannel receives the new global version after InvalidateAll.
	InvalidateChannel = "rbac.invalidate"
)

// RedisCache stores permission sets under versioned keys. The entry key
// embeds the global and per-user versions, so bumping either version orphans
// old entries and a late Put lands on a key nobody reads.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache instantiates the cache helper.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func userVersionKey(userID int64) string {
	return fmt.Sprintf("rbac:permissions:user:%d:version", userID)
}

func entryKey(userID int64, stamp string) string {
	return fmt.Sprintf("rbac:permissions:user:%d:%s", userID, stamp)
}

func (c *RedisCache) stamp(ctx context.Context, userID int64) (string, error) {
	vals, err := c.client.MGet(ctx, permissionsVersionKey, userVersionKey(userID)).Result()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = "0"
		if s, ok := v.(string); ok && s != "" {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				return "", fmt.Errorf("rbac: corrupt cache version %q", s)
			}
			parts[i] = s
		}
	}
	return strings.Join(parts, "."), nil
}

// Get loads the cached set for the current versions.
func (c *RedisCache) Get(ctx context.Context, userID int64) (CacheEntry, error) {
	stamp, err := c.stamp(ctx, userID)
	if err != nil {
		return CacheEntry{UserID: userID}, err
	}
	entry := CacheEntry{UserID: userID, Stamp: stamp}
	payload, err := c.client.Get(ctx, entryKey(userID, stamp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry, nil
	}
	if err != nil {
		return entry, err
	}
	var perms []string
	if err := json.Unmarshal(payload, &perms); err != nil {
		return entry, err
	}
	entry.Permissions = perms
	entry.Found = true
	return entry, nil
}

// Put writes the set under the key named by its stamp.
func (c *RedisCache) Put(ctx context.Context, entry CacheEntry) error {
	if entry.Stamp == "" {
		return nil
	}
	perms := entry.Permissions
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(entry.UserID, entry.Stamp), raw, c.ttl).Err()
}

// Invalidate bumps the user's version.
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	return c.client.Incr(ctx, userVersionKey(userID)).Err()
}

// InvalidateAll bumps the global version and publishes it.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	ver, err := c.client.Incr(ctx, permissionsVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, InvalidateChannel, strconv.FormatInt(ver, 10)).Err()
}
