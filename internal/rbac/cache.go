package rbac

import "context"

// CacheEntry is a cached permission set. Stamp is opaque: Get returns the
// stamp current at read time, and Put only stores an entry whose stamp is
// still current, so a set loaded before an invalidation is never served after it.
type CacheEntry struct {
	UserID      int64
	Permissions []string
	Found       bool
	Stamp       string
}

// PermissionCache caches effective permission sets keyed by user id.
type PermissionCache interface {
	Get(ctx context.Context, userID int64) (CacheEntry, error)
	Put(ctx context.Context, entry CacheEntry) error
	Invalidate(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(_ context.Context, userID int64) (CacheEntry, error) {
	return CacheEntry{UserID: userID}, nil
}

func (NoopCache) Put(context.Context, CacheEntry) error { return nil }

func (NoopCache) Invalidate(context.Context, int64) error { return nil }

func (NoopCache) InvalidateAll(context.Context) error { return nil }
