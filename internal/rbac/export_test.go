package rbac

// TrackedUsers reports how many per-user generations the cache holds.
func (c *MemoryCache) TrackedUsers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}
