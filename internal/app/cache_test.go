package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/hrflow/hrflow/internal/rbac"
)

func TestNewPermissionCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{RBACCache: "memory", RBACCacheSize: 8, RBACCacheTTL: time.Minute}

	assert.IsType(t, &rbac.MemoryCache{}, NewPermissionCache(cfg, nil, logger))

	cfg.RBACCache = "none"
	assert.IsType(t, rbac.NoopCache{}, NewPermissionCache(cfg, nil, logger))

	cfg.RBACCache = "redis"
	assert.IsType(t, &rbac.MemoryCache{}, NewPermissionCache(cfg, nil, logger))

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &rbac.RedisCache{}, NewPermissionCache(cfg, client, logger))
}
