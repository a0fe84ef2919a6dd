package rbac

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	permissions []string
	stamp       string
}

// MemoryCache is an in-process PermissionCache backed by an expirable LRU.
// A global generation covers InvalidateAll and a per-user generation covers
// Invalidate; both are folded into the stamp. Per-user generations are
// tracked for at most size users; past that the global generation rolls.
type MemoryCache struct {
	mu         sync.Mutex
	entries    *expirable.LRU[int64, memoryEntry]
	generation uint64
	users      map[int64]uint64
	maxTracked int
}

// NewMemoryCache builds a cache holding up to size users for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		entries:    expirable.NewLRU[int64, memoryEntry](size, nil, ttl),
		users:      make(map[int64]uint64),
		maxTracked: size,
	}
}

func (c *MemoryCache) stampFor(userID int64) string {
	return strconv.FormatUint(c.generation, 10) + "." + strconv.FormatUint(c.users[userID], 10)
}

// Get returns the cached set and the current stamp.
func (c *MemoryCache) Get(_ context.Context, userID int64) (CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := c.stampFor(userID)
	entry := CacheEntry{UserID: userID, Stamp: stamp}
	if v, ok := c.entries.Get(userID); ok && v.stamp == stamp {
		entry.Permissions = clonePermissions(v.permissions)
		entry.Found = true
	}
	return entry, nil
}

// Put stores entry unless an invalidation happened since its stamp was issued.
func (c *MemoryCache) Put(_ context.Context, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.Stamp != c.stampFor(entry.UserID) {
		return nil
	}
	c.entries.Add(entry.UserID, memoryEntry{permissions: clonePermissions(entry.Permissions), stamp: entry.Stamp})
	return nil
}

// Invalidate drops one user's entry.
func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tracked := c.users[userID]; !tracked && len(c.users) >= c.maxTracked {
		c.resetLocked()
		return nil
	}
	c.users[userID]++
	c.entries.Remove(userID)
	return nil
}

// InvalidateAll drops every entry.
func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return nil
}

// resetLocked starts a new generation. Every stamp issued before it is stale,
// so the per-user generations can be forgotten.
func (c *MemoryCache) resetLocked() {
	c.generation++
	c.users = make(map[int64]uint64)
	c.entries.Purge()
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

func clonePermissions(perms []string) []string {
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
