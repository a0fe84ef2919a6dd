package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hrflow/hrflow/internal/rbac"
)

// NewPermissionCache picks the permission cache named by RBAC_CACHE. The
// redis variant falls back to the in-process cache when no client is given.
func NewPermissionCache(cfg *Config, client *redis.Client, logger *slog.Logger) rbac.PermissionCache {
	switch cfg.RBACCache {
	case "none":
		return rbac.NoopCache{}
	case "redis":
		if client != nil {
			return rbac.NewRedisCache(client, cfg.RBACCacheTTL)
		}
		logger.Warn("redis permission cache unavailable, using memory cache")
	}
	return rbac.NewMemoryCache(cfg.RBACCacheSize, cfg.RBACCacheTTL)
}
