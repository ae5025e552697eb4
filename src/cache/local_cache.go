package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindroute-ai/mindroute/src/models"
)

// LocalCache is the process-local tier: bounded by entry count with LRU
// eviction. Entries also honor their TTL on read.
type LocalCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

type localEntry struct {
	fingerprint string
	entry       *models.CacheEntry
}

func NewLocalCache(maxEntries int) *LocalCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &LocalCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *LocalCache) Name() string {
	return models.TierLocal
}

func (c *LocalCache) Get(_ context.Context, fingerprint string) (*models.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}

	entry := elem.Value.(*localEntry).entry
	if entry.Expired(time.Now()) {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		c.misses.Add(1)
		return nil, nil
	}

	c.order.MoveToFront(elem)
	entry.HitCount++
	c.hits.Add(1)

	copied := *entry
	return &copied, nil
}

func (c *LocalCache) Set(_ context.Context, entry *models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *entry
	if elem, ok := c.entries[entry.Fingerprint]; ok {
		elem.Value.(*localEntry).entry = &copied
		c.order.MoveToFront(elem)
		return nil
	}

	elem := c.order.PushFront(&localEntry{fingerprint: entry.Fingerprint, entry: &copied})
	c.entries[entry.Fingerprint] = elem

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*localEntry).fingerprint)
	}
	return nil
}

func (c *LocalCache) Delete(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fingerprint]; ok {
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
	}
	return nil
}

func (c *LocalCache) Stats() models.TierStats {
	c.mu.Lock()
	entries := int64(c.order.Len())
	c.mu.Unlock()

	return models.TierStats{
		Tier:    c.Name(),
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *LocalCache) Close() error {
	return nil
}
