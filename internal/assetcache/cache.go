// Package assetcache implements the bounded in-memory store of decoded
// images and downloaded page bytes shared by the decode scheduler and the
// streaming downloader.
//
// The cache enforces two independent limits, entry count and total bytes,
// with strict least-recently-used eviction performed synchronously inside
// Put and SetLimits. Entries belong to a group (usually a gallery ID) so a
// whole gallery can be dropped at once.
//
// All methods are safe for concurrent use. Critical sections only touch the
// index and the LRU list; logging and metrics happen after the lock is
// released.
package assetcache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

// Default limits
const (
	DefaultMaxEntries = 512
	DefaultMaxBytes   = 256 * 1024 * 1024
)

var (
	// ErrInvalidLimits is returned by SetLimits and New for non-positive limits.
	ErrInvalidLimits = errors.New("cache limits must be positive")

	// ErrInvalidSize is returned by Put for negative sizes.
	ErrInvalidSize = errors.New("entry size must not be negative")

	// ErrEntryTooLarge is returned by Put when a single entry exceeds the
	// byte limit on its own.
	ErrEntryTooLarge = errors.New("entry larger than cache byte limit")
)

type entry struct {
	key        string
	asset      *model.Asset
	size       int64
	group      string
	lastAccess uint64
}

// Cache is a count- and byte-bounded LRU of decoded assets.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List // front = most recently used
	groups   map[string]int
	bytes    int64
	maxCount int
	maxBytes int64
	tick     uint64
	metrics  Metrics
}

// Option configures a Cache
type Option func(*Cache)

// WithMetrics attaches a metrics sink; nil disables collection.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache with the given limits.
func New(maxCount int, maxBytes int64, opts ...Option) (*Cache, error) {
	if maxCount <= 0 || maxBytes <= 0 {
		return nil, fmt.Errorf("%w: count=%d bytes=%d", ErrInvalidLimits, maxCount, maxBytes)
	}
	c := &Cache{
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		groups:   make(map[string]int),
		maxCount: maxCount,
		maxBytes: maxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TryGet returns the asset for key and marks it most recently used.
func (c *Cache) TryGet(key string) (*model.Asset, bool) {
	c.mu.Lock()
	el, ok := c.items[key]
	var asset *model.Asset
	if ok {
		e := el.Value.(*entry)
		c.tick++
		e.lastAccess = c.tick
		c.lru.MoveToFront(el)
		asset = e.asset
	}
	c.mu.Unlock()

	if ok {
		ObserveHit(c.metrics)
	} else {
		ObserveMiss(c.metrics)
	}
	return asset, ok
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Put inserts or replaces the asset for key, then evicts least recently used
// entries until both limits hold. The entry written by this call is never
// evicted by it; an entry that cannot fit on its own is rejected instead.
func (c *Cache) Put(key string, asset *model.Asset, size int64, group string) error {
	if size < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	c.mu.Lock()
	if size > c.maxBytes {
		limit := c.maxBytes
		c.mu.Unlock()
		return fmt.Errorf("%w: %s > %s", ErrEntryTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}

	c.tick++
	el, exists := c.items[key]
	if exists {
		e := el.Value.(*entry)
		c.bytes += size - e.size
		if e.group != group {
			c.decGroup(e.group)
			c.groups[group]++
		}
		e.asset = asset
		e.size = size
		e.group = group
		e.lastAccess = c.tick
		c.lru.MoveToFront(el)
	} else {
		e := &entry{key: key, asset: asset, size: size, group: group, lastAccess: c.tick}
		el = c.lru.PushFront(e)
		c.items[key] = el
		c.bytes += size
		c.groups[group]++
	}

	evicted := c.evictLocked(el)
	count, bytes := c.lru.Len(), c.bytes
	c.mu.Unlock()

	c.report(evicted, count, bytes)
	return nil
}

// Remove deletes a single entry. It returns false if key was not cached.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeLocked(el)
	}
	count, bytes := c.lru.Len(), c.bytes
	c.mu.Unlock()

	if ok {
		RecordUsage(c.metrics, count, bytes)
	}
	return ok
}

// ClearGroup removes every entry of group and returns how many were removed.
func (c *Cache) ClearGroup(group string) int {
	c.mu.Lock()
	removed := 0
	if c.groups[group] > 0 {
		for el := c.lru.Front(); el != nil; {
			next := el.Next()
			if el.Value.(*entry).group == group {
				c.removeLocked(el)
				removed++
			}
			el = next
		}
	}
	count, bytes := c.lru.Len(), c.bytes
	c.mu.Unlock()

	if removed > 0 {
		logger.Debug("cache group cleared", logger.KeyGroup, group, logger.KeyEvicted, removed)
		RecordUsage(c.metrics, count, bytes)
	}
	return removed
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.groups = make(map[string]int)
	c.bytes = 0
	c.mu.Unlock()

	RecordUsage(c.metrics, 0, 0)
}

// SetLimits replaces both limits and evicts down to them immediately.
// Non-positive limits are rejected and the previous limits stay in force.
func (c *Cache) SetLimits(maxCount int, maxBytes int64) error {
	if maxCount <= 0 || maxBytes <= 0 {
		return fmt.Errorf("%w: count=%d bytes=%d", ErrInvalidLimits, maxCount, maxBytes)
	}

	c.mu.Lock()
	c.maxCount = maxCount
	c.maxBytes = maxBytes
	evicted := c.evictLocked(nil)
	count, bytes := c.lru.Len(), c.bytes
	c.mu.Unlock()

	logger.Debug("cache limits updated",
		logger.KeyCacheCapacity, maxCount,
		logger.KeyCacheSize, humanize.IBytes(uint64(maxBytes)))
	c.report(evicted, count, bytes)
	return nil
}

// Limits returns the configured maximum entry count and byte size.
func (c *Cache) Limits() (int, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxCount, c.maxBytes
}

// Usage returns the current entry count and total bytes.
func (c *Cache) Usage() (int, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.bytes
}

// PerGroupCounts returns a snapshot of entry counts by group.
func (c *Cache) PerGroupCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.groups))
	for g, n := range c.groups {
		out[g] = n
	}
	return out
}

// evictLocked drops entries from the LRU end until both limits hold, never
// touching keep. Caller must hold c.mu.
func (c *Cache) evictLocked(keep *list.Element) []string {
	var evicted []string
	for c.lru.Len() > c.maxCount || c.bytes > c.maxBytes {
		victim := c.lru.Back()
		if victim == keep {
			victim = victim.Prev()
		}
		if victim == nil {
			break
		}
		evicted = append(evicted, victim.Value.(*entry).key)
		c.removeLocked(victim)
	}
	return evicted
}

// removeLocked unlinks an element and updates accounting. Caller must hold c.mu.
func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.items, e.key)
	c.bytes -= e.size
	c.decGroup(e.group)
}

func (c *Cache) decGroup(group string) {
	if c.groups[group] <= 1 {
		delete(c.groups, group)
		return
	}
	c.groups[group]--
}

func (c *Cache) report(evicted []string, count int, bytes int64) {
	if len(evicted) > 0 {
		RecordEvictions(c.metrics, len(evicted))
		logger.Debug("cache evicted entries",
			logger.KeyEvicted, len(evicted),
			logger.KeyCacheCount, count,
			logger.KeyCacheSize, humanize.IBytes(uint64(bytes)))
	}
	RecordUsage(c.metrics, count, bytes)
}
