package ui

import (
	"errors"
	"image"
	"sync"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/model"
)

type enqueueCall struct {
	key   string
	index int
	pivot int
}

type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []enqueueCall
	pivots   []int
	sweeps   [][]string
	resets   int
}

func (f *fakeScheduler) Enqueue(key string, sourceIndex, pivotIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, enqueueCall{key, sourceIndex, pivotIndex})
}

func (f *fakeScheduler) UpdateSelectedIndex(pivotIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pivots = append(f.pivots, pivotIndex)
}

func (f *fakeScheduler) Sweep(pivotIndex, count int, keyAt func(int) string) {
	keys := make([]string, count)
	for i := range keys {
		keys[i] = keyAt(i)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps = append(f.sweeps, keys)
}

func (f *fakeScheduler) Reset() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return uint64(f.resets)
}

func newTestView(t *testing.T) (*GalleryView, *fakeScheduler, *assetcache.Cache) {
	t.Helper()
	test.NewApp()
	cache, err := assetcache.New(64, 1<<20)
	require.NoError(t, err)
	sched := &fakeScheduler{}
	v := NewGalleryView(cache, sched)
	w := test.NewWindow(v.Content())
	t.Cleanup(w.Close)
	return v, sched, cache
}

func (f *fakeScheduler) calls() []enqueueCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueueCall(nil), f.enqueued...)
}

func TestThumbKey(t *testing.T) {
	assert.Equal(t, ThumbKeyPrefix+download.PageKey("g1", 4), ThumbKey("g1", 4))
	assert.NotEqual(t, download.PageKey("g1", 4), ThumbKey("g1", 4))
}

func TestGalleryView_ShowFolder(t *testing.T) {
	v, sched, _ := newTestView(t)
	files := []string{"/lib/a/1.jpg", "/lib/a/2.jpg", "/lib/a/3.jpg"}

	v.ShowFolder("/lib/a", files)

	assert.Equal(t, 3, v.Len())
	source, remote := v.Source()
	assert.Equal(t, "/lib/a", source)
	assert.False(t, remote)
	assert.Equal(t, 1, sched.resets)
	require.Len(t, sched.sweeps, 1)
	assert.Equal(t, files, sched.sweeps[0])
	assert.Empty(t, v.Pages())
}

func TestGalleryView_AppendBatch(t *testing.T) {
	v, sched, _ := newTestView(t)
	v.BeginGallery("g1")

	v.AppendBatch(model.Batch{GalleryID: "g1", Total: 3})
	assert.Equal(t, 0, v.Len())

	v.AppendBatch(model.Batch{
		GalleryID: "g1",
		Pages: []model.Page{
			{Index: 0, Name: "0001.jpg", Data: []byte("p0")},
			{Index: 1, Missing: true},
			{Index: 2, Name: "0003.jpg", Data: []byte("p2")},
		},
		Skipped:        []int{1},
		CompletedCount: 3,
		Total:          3,
	})

	assert.Equal(t, 3, v.Len())
	pages := v.Pages()
	require.Len(t, pages, 3)
	assert.True(t, pages[1].Missing)

	calls := sched.calls()
	assert.Contains(t, calls, enqueueCall{ThumbKey("g1", 0), 0, 0})
	assert.Contains(t, calls, enqueueCall{ThumbKey("g1", 2), 2, 0})
	for _, c := range calls {
		assert.NotEqual(t, 1, c.index, "missing page must not be decoded")
	}
	assert.True(t, v.failed[1])
}

func TestGalleryView_Lookup(t *testing.T) {
	v, _, cache := newTestView(t)
	v.BeginGallery("g1")
	v.AppendBatch(model.Batch{GalleryID: "g1", Pages: []model.Page{
		{Index: 0, Data: []byte("from-batch")},
		{Index: 1, Missing: true},
	}})

	data, ok := v.Lookup(ThumbKey("g1", 0))
	require.True(t, ok)
	assert.Equal(t, []byte("from-batch"), data)

	// The page cache wins over batch data
	require.NoError(t, cache.Put(download.PageKey("g1", 0), &model.Asset{Data: []byte("from-cache")}, 10, "g1"))
	data, ok = v.Lookup(ThumbKey("g1", 0))
	require.True(t, ok)
	assert.Equal(t, []byte("from-cache"), data)

	_, ok = v.Lookup(ThumbKey("g1", 1))
	assert.False(t, ok)
	_, ok = v.Lookup("/lib/a/1.jpg")
	assert.False(t, ok)
}

func TestGalleryView_SelectMovesPivot(t *testing.T) {
	v, sched, _ := newTestView(t)
	v.ShowFolder("/lib/a", []string{"/lib/a/1.jpg", "/lib/a/2.jpg", "/lib/a/3.jpg"})

	v.Select(2)

	assert.Equal(t, 2, v.Selected())
	assert.Equal(t, []int{2}, sched.pivots)
}

func TestGalleryView_OnDecoded(t *testing.T) {
	v, _, _ := newTestView(t)
	v.ShowFolder("/lib/a", []string{"/lib/a/1.jpg", "/lib/a/2.jpg"})

	// stale key for this index
	v.OnDecoded(decode.Result{Key: "/lib/old/1.jpg", SourceIndex: 0, Err: errors.New("bad")})
	assert.False(t, v.failed[0])

	v.OnDecoded(decode.Result{Key: "/lib/a/2.jpg", SourceIndex: 1, Err: errors.New("bad")})
	assert.True(t, v.failed[1])

	v.OnDecoded(decode.Result{Key: "/lib/a/1.jpg", SourceIndex: 0, Asset: &model.Asset{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}})
	assert.False(t, v.failed[0])
}

func TestGalleryView_UpdateItem(t *testing.T) {
	v, sched, cache := newTestView(t)
	v.ShowFolder("/lib/a", []string{"/lib/a/1.jpg", "/lib/a/2.jpg"})

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, cache.Put("/lib/a/1.jpg", &model.Asset{Image: img}, 16, ThumbGroup))

	cached := newThumbCell()
	v.updateItem(0, cached)
	assert.Equal(t, img, cached.image.Image)
	assert.Equal(t, "1", cached.label.Text)

	missing := newThumbCell()
	v.updateItem(1, missing)
	assert.Nil(t, missing.image.Image)
	calls := sched.calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "/lib/a/2.jpg", calls[len(calls)-1].key)
}
