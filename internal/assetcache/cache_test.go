package assetcache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/manga-reader/internal/model"
)

type countingMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	evictions int
	count     int
	bytes     int64
}

func (m *countingMetrics) ObserveHit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) ObserveMiss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) RecordEvictions(n int) {
	m.mu.Lock()
	m.evictions += n
	m.mu.Unlock()
}
func (m *countingMetrics) RecordUsage(count int, bytes int64) {
	m.mu.Lock()
	m.count, m.bytes = count, bytes
	m.mu.Unlock()
}

func newCache(t *testing.T, count int, bytes int64, opts ...Option) *Cache {
	t.Helper()
	c, err := New(count, bytes, opts...)
	require.NoError(t, err)
	return c
}

func asset(w, h int) *model.Asset {
	return &model.Asset{Width: w, Height: h}
}

func TestNew_InvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		count int
		bytes int64
	}{
		{"zero count", 0, 100},
		{"zero bytes", 10, 0},
		{"negative count", -1, 100},
		{"negative bytes", 10, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.count, tt.bytes)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidLimits))
		})
	}
}

func TestPut_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 2, 1<<20)

	require.NoError(t, c.Put("A", asset(1, 1), 10, "g"))
	require.NoError(t, c.Put("B", asset(1, 1), 10, "g"))
	require.NoError(t, c.Put("C", asset(1, 1), 10, "g"))

	assert.False(t, c.Contains("A"))
	assert.True(t, c.Contains("B"))
	assert.True(t, c.Contains("C"))

	// touching B makes C the eviction candidate
	_, ok := c.TryGet("B")
	require.True(t, ok)
	require.NoError(t, c.Put("D", asset(1, 1), 10, "g"))

	assert.True(t, c.Contains("B"))
	assert.False(t, c.Contains("C"))
	assert.True(t, c.Contains("D"))
}

func TestPut_ByteLimit(t *testing.T) {
	c := newCache(t, 100, 100)

	require.NoError(t, c.Put("a", asset(1, 1), 40, "g"))
	require.NoError(t, c.Put("b", asset(1, 1), 40, "g"))
	require.NoError(t, c.Put("c", asset(1, 1), 40, "g"))

	count, bytes := c.Usage()
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(80), bytes)
	assert.False(t, c.Contains("a"))
}

func TestPut_NeverEvictsInsertedEntry(t *testing.T) {
	c := newCache(t, 10, 100)

	require.NoError(t, c.Put("small1", asset(1, 1), 30, "g"))
	require.NoError(t, c.Put("small2", asset(1, 1), 30, "g"))
	require.NoError(t, c.Put("big", asset(1, 1), 100, "g"))

	assert.True(t, c.Contains("big"))
	assert.False(t, c.Contains("small1"))
	assert.False(t, c.Contains("small2"))

	count, bytes := c.Usage()
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(100), bytes)
}

func TestPut_RejectsOversizedEntry(t *testing.T) {
	c := newCache(t, 10, 100)
	require.NoError(t, c.Put("keep", asset(1, 1), 50, "g"))

	err := c.Put("huge", asset(1, 1), 101, "g")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEntryTooLarge))

	assert.False(t, c.Contains("huge"))
	assert.True(t, c.Contains("keep"))
}

func TestPut_RejectsNegativeSize(t *testing.T) {
	c := newCache(t, 10, 100)
	err := c.Put("neg", asset(1, 1), -1, "g")
	assert.True(t, errors.Is(err, ErrInvalidSize))
	count, _ := c.Usage()
	assert.Equal(t, 0, count)
}

func TestPut_ReplaceUpdatesAccounting(t *testing.T) {
	c := newCache(t, 10, 1000)

	require.NoError(t, c.Put("k", asset(1, 1), 100, "g1"))
	require.NoError(t, c.Put("k", asset(2, 2), 300, "g2"))

	count, bytes := c.Usage()
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(300), bytes)
	assert.Equal(t, map[string]int{"g2": 1}, c.PerGroupCounts())

	got, ok := c.TryGet("k")
	require.True(t, ok)
	assert.Equal(t, 2, got.Width)
}

func TestLimitsHoldAfterEveryPut(t *testing.T) {
	c := newCache(t, 7, 500)

	for i := 0; i < 200; i++ {
		size := int64((i*37)%120 + 1)
		require.NoError(t, c.Put(fmt.Sprintf("k%d", i), asset(1, 1), size, fmt.Sprintf("g%d", i%3)))

		count, bytes := c.Usage()
		assert.LessOrEqual(t, count, 7)
		assert.LessOrEqual(t, bytes, int64(500))

		total := 0
		for _, n := range c.PerGroupCounts() {
			total += n
		}
		assert.Equal(t, count, total)
	}
}

func TestClearGroup(t *testing.T) {
	c := newCache(t, 100, 1<<20)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("g1/%d", i), asset(1, 1), 10, "g1"))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("g2/%d", i), asset(1, 1), 10, "g2"))
	}

	removed := c.ClearGroup("g1")
	assert.Equal(t, 5, removed)

	for i := 0; i < 5; i++ {
		_, ok := c.TryGet(fmt.Sprintf("g1/%d", i))
		assert.False(t, ok)
	}
	count, bytes := c.Usage()
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(30), bytes)
	assert.Equal(t, map[string]int{"g2": 3}, c.PerGroupCounts())

	assert.Equal(t, 0, c.ClearGroup("missing"))
}

func TestClearAll(t *testing.T) {
	c := newCache(t, 10, 1000)
	require.NoError(t, c.Put("a", asset(1, 1), 10, "g"))
	require.NoError(t, c.Put("b", asset(1, 1), 10, "h"))

	c.ClearAll()

	count, bytes := c.Usage()
	assert.Zero(t, count)
	assert.Zero(t, bytes)
	assert.Empty(t, c.PerGroupCounts())
}

func TestRemove(t *testing.T) {
	c := newCache(t, 10, 1000)
	require.NoError(t, c.Put("a", asset(1, 1), 10, "g"))

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Empty(t, c.PerGroupCounts())
}

func TestSetLimits(t *testing.T) {
	c := newCache(t, 10, 1000)
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Put(fmt.Sprintf("k%d", i), asset(1, 1), 50, "g"))
	}

	require.NoError(t, c.SetLimits(4, 1000))
	count, _ := c.Usage()
	assert.Equal(t, 4, count)
	// the four most recent survive
	for i := 6; i < 10; i++ {
		assert.True(t, c.Contains(fmt.Sprintf("k%d", i)))
	}

	require.NoError(t, c.SetLimits(4, 100))
	count, bytes := c.Usage()
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(100), bytes)
}

func TestSetLimits_RejectsNonPositive(t *testing.T) {
	c := newCache(t, 10, 1000)

	err := c.SetLimits(0, 1000)
	assert.True(t, errors.Is(err, ErrInvalidLimits))
	err = c.SetLimits(10, -1)
	assert.True(t, errors.Is(err, ErrInvalidLimits))

	maxCount, maxBytes := c.Limits()
	assert.Equal(t, 10, maxCount)
	assert.Equal(t, int64(1000), maxBytes)
}

func TestContains_DoesNotTouchRecency(t *testing.T) {
	c := newCache(t, 2, 1000)
	require.NoError(t, c.Put("a", asset(1, 1), 1, "g"))
	require.NoError(t, c.Put("b", asset(1, 1), 1, "g"))

	assert.True(t, c.Contains("a"))
	require.NoError(t, c.Put("c", asset(1, 1), 1, "g"))

	assert.False(t, c.Contains("a"))
}

func TestMetrics(t *testing.T) {
	m := &countingMetrics{}
	c := newCache(t, 1, 1000, WithMetrics(m))

	_, _ = c.TryGet("a")
	require.NoError(t, c.Put("a", asset(1, 1), 10, "g"))
	_, _ = c.TryGet("a")
	require.NoError(t, c.Put("b", asset(1, 1), 20, "g"))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)
	assert.Equal(t, 1, m.evictions)
	assert.Equal(t, 1, m.count)
	assert.Equal(t, int64(20), m.bytes)
}

func TestConcurrentAccess(t *testing.T) {
	c := newCache(t, 50, 5000)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (w*31+i)%120)
				switch i % 4 {
				case 0, 1:
					_ = c.Put(key, asset(1, 1), int64(i%90+1), fmt.Sprintf("g%d", w%2))
				case 2:
					c.TryGet(key)
				case 3:
					if i%100 == 3 {
						c.ClearGroup("g0")
					}
				}
			}
		}(w)
	}
	wg.Wait()

	count, bytes := c.Usage()
	assert.LessOrEqual(t, count, 50)
	assert.LessOrEqual(t, bytes, int64(5000))
}
