// Package cache provides the TTL-bounded read cache used by the workflow
// engine. Entries expire lazily; eviction happens through typed invalidation
// scopes so mutation paths never guess at key strings.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// Scope identifies one cache entry. Constructors below are the only way to
// build a scope, which keeps the key space enumerable.
type Scope struct {
	key string
}

// Key returns the concrete cache key for logging and tests.
func (s Scope) Key() string {
	return s.key
}

// DepartmentList scopes the active-activity list of one department.
func DepartmentList(department string) Scope {
	return Scope{key: "activities_by_dept_" + department}
}

// DepartmentHistory scopes the completed-activity history of one department.
func DepartmentHistory(department string) Scope {
	return Scope{key: "completed_by_dept_" + department}
}

// Stats scopes the aggregate workflow statistics.
func Stats() Scope {
	return Scope{key: "activity_stats"}
}

// UserNotifications scopes one user's notification feed.
func UserNotifications(userID string) Scope {
	return Scope{key: "user_notifications_" + userID}
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an injected, process-wide TTL store. The key space is bounded
// (one entry per department list plus a handful of global keys), so TTL alone
// governs staleness; there is no size-based eviction.
type Cache struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]entry
}

// New constructs a cache with an injected clock.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		clock:   clock,
		entries: map[string]entry{},
	}
}

// Get returns the unexpired value for a scope. An expired entry is a miss and
// is removed.
func (c *Cache) Get(scope Scope) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[scope.key]
	if !ok {
		return nil, false
	}
	if !c.clock().Before(e.expiresAt) {
		delete(c.entries, scope.key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value under a scope with a per-entry TTL.
func (c *Cache) Set(scope Scope, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[scope.key] = entry{
		value:     value,
		expiresAt: c.clock().Add(ttl),
	}
}

// Invalidate evicts every named scope. Evicting a scope that is not cached is
// a no-op; mutation paths over-invalidate freely.
func (c *Cache) Invalidate(scopes ...Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, scope := range scopes {
		delete(c.entries, scope.key)
	}
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]entry{}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Query returns the cached value for a scope, or computes, stores, and
// returns it. A failing compute never populates the cache.
func Query[T any](c *Cache, scope Scope, ttl time.Duration, compute func() (T, error)) (T, error) {
	if cached, ok := c.Get(scope); ok {
		if value, ok := cached.(T); ok {
			return value, nil
		}
	}
	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(scope, value, ttl)
	return value, nil
}
