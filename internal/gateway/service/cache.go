package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheKey identifies one cached query result: an operation name plus its
// filter parameters. Keys canonicalise to "op|k=v|k=v" with parameters in
// sorted order, so equal queries collide and prefix invalidation can target
// a whole operation with "op|".
type CacheKey struct {
	Op     string
	Params map[string]string
}

// String returns the canonical key form.
func (k CacheKey) String() string {
	if len(k.Params) == 0 {
		return k.Op + "|"
	}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Op)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Params[name])
	}
	b.WriteByte('|')
	return b.String()
}

// Loader fetches a payload from the backend on a cache miss.
type Loader func(ctx context.Context) (any, error)

type cacheEntry struct {
	payload   any
	fetchedAt time.Time
}

// QueryCache layers a staleness-windowed request cache over the backend
// query API. A read inside the TTL returns the cached payload without a
// remote call; concurrent identical misses collapse into one loader run;
// loader failures propagate to the awaiting callers and are never cached.
//
// Change notifications feed Invalidate rather than patching entries: coarse
// whole-collection invalidation trades hit-rate for immunity to partial and
// out-of-order updates, which is the right trade for ticket inventory.
type QueryCache struct {
	notify *NotificationStore
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func NewQueryCache(notify *NotificationStore, logger *slog.Logger) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{
		notify:  notify,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch returns the payload for key, loading it when the cached copy is
// absent or older than ttl. All coalesced callers receive the same payload
// or the same error.
func (c *QueryCache) Fetch(ctx context.Context, key CacheKey, ttl time.Duration, loader Loader) (any, error) {
	keyStr := key.String()

	c.mu.RLock()
	entry, ok := c.entries[keyStr]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < ttl {
		return entry.payload, nil
	}

	payload, err, _ := c.group.Do(keyStr, func() (any, error) {
		// Re-check under the flight: a coalesced caller may arrive after
		// the winner already stored a fresh entry.
		c.mu.RLock()
		entry, ok := c.entries[keyStr]
		c.mu.RUnlock()
		if ok && time.Since(entry.fetchedAt) < ttl {
			return entry.payload, nil
		}

		// The winning caller's context must not take the coalesced
		// callers down with it, so the loader runs detached from its
		// cancellation, bounded by the usual remote-call timeout.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteCallTimeout)
		defer cancel()

		payload, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[keyStr] = cacheEntry{payload: payload, fetchedAt: time.Now()}
		c.mu.Unlock()

		return payload, nil
	})
	if err != nil {
		c.logger.Warn("cache load failed", "key", keyStr, "err", err)
		if c.notify != nil {
			c.notify.Error("Failed to load data", friendlyMessage(err), 0)
		}
		return nil, fmt.Errorf("loading %s: %w", keyStr, err)
	}

	return payload, nil
}

// Invalidate drops every entry whose canonical key starts with prefix and
// forgets any in-flight load for them, so the next fetch reloads. It is
// idempotent: re-invalidating an empty prefix range changes nothing.
func (c *QueryCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for keyStr := range c.entries {
		if strings.HasPrefix(keyStr, prefix) {
			delete(c.entries, keyStr)
			c.group.Forget(keyStr)
		}
	}
}

// InvalidateOp drops every cached result of the named operation.
func (c *QueryCache) InvalidateOp(op string) {
	c.Invalidate(op + "|")
}

// Len reports the number of live entries. Test hook.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
