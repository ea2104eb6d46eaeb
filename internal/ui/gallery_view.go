package ui

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

// ThumbnailScheduler is the part of the decode scheduler the view drives.
type ThumbnailScheduler interface {
	Enqueue(key string, sourceIndex, pivotIndex int)
	UpdateSelectedIndex(pivotIndex int)
	Sweep(pivotIndex, count int, keyAt func(int) string)
	Reset() uint64
}

// ThumbKey is the cache key of a remote page's thumbnail. It differs from
// the page key so decoded thumbnails never shadow page bytes.
func ThumbKey(galleryID string, index int) string {
	return ThumbKeyPrefix + download.PageKey(galleryID, index)
}

// GalleryView shows the pages of one gallery as a thumbnail grid with a
// preview of the selected page. It acts as the viewport tracker: bound grid
// cells enqueue decodes and selection moves the scheduler's pivot.
//
// All methods except Lookup must run on the UI thread.
type GalleryView struct {
	cache     *assetcache.Cache
	scheduler ThumbnailScheduler

	// guarded by mu; Lookup reads them from decode workers
	mu     sync.RWMutex
	source string
	remote bool
	keys   []string
	index  map[string]int
	pages  []model.Page

	failed   map[int]bool
	selected int

	grid    *widget.GridWrap
	preview *canvas.Image
	caption *widget.Label
	content fyne.CanvasObject
}

// NewGalleryView creates an empty view
func NewGalleryView(cache *assetcache.Cache, scheduler ThumbnailScheduler) *GalleryView {
	v := &GalleryView{
		cache:     cache,
		scheduler: scheduler,
		index:     make(map[string]int),
		failed:    make(map[int]bool),
	}

	v.grid = widget.NewGridWrap(v.Len, v.createItem, v.updateItem)
	v.grid.OnSelected = v.onSelected

	v.preview = canvas.NewImageFromImage(nil)
	v.preview.FillMode = canvas.ImageFillContain
	v.preview.SetMinSize(fyne.NewSize(PreviewMinWidth, PreviewMinWidth))
	v.caption = widget.NewLabel("")
	v.caption.Alignment = fyne.TextAlignCenter

	split := container.NewHSplit(v.grid, container.NewBorder(nil, v.caption, nil, nil, v.preview))
	split.Offset = GridSplitOffset
	v.content = split
	return v
}

// Content returns the view's root object
func (v *GalleryView) Content() fyne.CanvasObject {
	return v.content
}

// Source returns the shown gallery id or folder, and whether it is remote
func (v *GalleryView) Source() (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.source, v.remote
}

// Len returns the number of known pages
func (v *GalleryView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// Selected returns the selected page index
func (v *GalleryView) Selected() int {
	return v.selected
}

// Pages returns a copy of the downloaded pages of a remote gallery
func (v *GalleryView) Pages() []model.Page {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.Page, len(v.pages))
	copy(out, v.pages)
	return out
}

// ShowFolder replaces the view with the images of a local folder.
func (v *GalleryView) ShowFolder(dir string, files []string) {
	v.reset(dir, false)

	v.mu.Lock()
	v.keys = append(v.keys, files...)
	for i, f := range files {
		v.index[f] = i
	}
	v.mu.Unlock()

	v.grid.Refresh()
	v.grid.ScrollToTop()
	v.scheduler.Sweep(0, len(files), v.keyAt)
}

// BeginGallery clears the view for a remote gallery whose pages will arrive
// through AppendBatch.
func (v *GalleryView) BeginGallery(galleryID string) {
	v.reset(galleryID, true)
	v.grid.Refresh()
	v.grid.ScrollToTop()
}

// AppendBatch adds the pages of a delivered batch. Missing pages keep their
// cell and show as failed.
func (v *GalleryView) AppendBatch(b model.Batch) {
	type pending struct {
		key   string
		index int
	}
	var enqueue []pending

	v.mu.Lock()
	for _, p := range b.Pages {
		for len(v.pages) <= p.Index {
			i := len(v.pages)
			key := ThumbKey(b.GalleryID, i)
			v.pages = append(v.pages, model.Page{Index: i, Missing: true})
			v.keys = append(v.keys, key)
			v.index[key] = i
		}
		v.pages[p.Index] = p
		if p.Missing {
			v.failed[p.Index] = true
			continue
		}
		delete(v.failed, p.Index)
		enqueue = append(enqueue, pending{key: v.keys[p.Index], index: p.Index})
	}
	v.mu.Unlock()

	for _, e := range enqueue {
		v.scheduler.Enqueue(e.key, e.index, v.selected)
	}
	v.grid.Refresh()
	if len(b.Pages) > 0 && b.Pages[0].Index == 0 {
		v.showPreview(v.selected)
	}
}

// Select moves the selection and the decode pivot to index
func (v *GalleryView) Select(index int) {
	v.grid.Select(index)
}

// OnDecoded applies a scheduler result. Results for keys no longer shown
// are ignored.
func (v *GalleryView) OnDecoded(r decode.Result) {
	if v.keyAt(r.SourceIndex) != r.Key {
		return
	}
	if r.Err != nil {
		v.failed[r.SourceIndex] = true
		logger.Debug("thumbnail decode failed", append([]any{logger.KeyKey, r.Key}, logger.Err(r.Err)...)...)
	}
	v.grid.RefreshItem(r.SourceIndex)
}

// Lookup returns page bytes for a thumbnail key, from the page cache first
// and then from the delivered batches. Safe for concurrent use.
func (v *GalleryView) Lookup(key string) ([]byte, bool) {
	if !strings.HasPrefix(key, ThumbKeyPrefix) {
		return nil, false
	}
	if asset, ok := v.cache.TryGet(strings.TrimPrefix(key, ThumbKeyPrefix)); ok && len(asset.Data) > 0 {
		return asset.Data, true
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[key]
	if !ok || i >= len(v.pages) || v.pages[i].Missing {
		return nil, false
	}
	return v.pages[i].Data, true
}

func (v *GalleryView) reset(source string, remote bool) {
	v.scheduler.Reset()

	v.mu.Lock()
	v.source = source
	v.remote = remote
	v.keys = nil
	v.pages = nil
	v.index = make(map[string]int)
	v.mu.Unlock()

	v.failed = make(map[int]bool)
	v.selected = 0
	v.grid.UnselectAll()
	v.clearPreview()
}

func (v *GalleryView) keyAt(i int) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i < 0 || i >= len(v.keys) {
		return ""
	}
	return v.keys[i]
}

func (v *GalleryView) createItem() fyne.CanvasObject {
	return newThumbCell()
}

func (v *GalleryView) updateItem(id widget.GridWrapItemID, obj fyne.CanvasObject) {
	cell, ok := obj.(*thumbCell)
	if !ok {
		return
	}
	key := v.keyAt(id)
	if key == "" {
		return
	}
	caption := fmt.Sprintf("%d", id+1)

	if v.failed[id] {
		cell.show(nil, IconError+" "+caption)
		return
	}
	if asset, ok := v.cache.TryGet(key); ok && asset.Image != nil {
		cell.show(asset.Image, caption)
		return
	}
	cell.show(nil, IconLoading+" "+caption)
	v.scheduler.Enqueue(key, id, v.selected)
}

func (v *GalleryView) onSelected(id widget.GridWrapItemID) {
	v.selected = id
	v.scheduler.UpdateSelectedIndex(id)
	v.showPreview(id)
}

func (v *GalleryView) showPreview(index int) {
	v.mu.RLock()
	if index < 0 || index >= len(v.keys) {
		v.mu.RUnlock()
		v.clearPreview()
		return
	}
	key := v.keys[index]
	total := len(v.keys)
	var page model.Page
	if v.remote {
		page = v.pages[index]
	}
	remote := v.remote
	v.mu.RUnlock()

	v.preview.Image = nil
	v.preview.File = ""
	v.preview.Resource = nil
	caption := fmt.Sprintf(ProgressLabelFormat, index+1, total)
	switch {
	case !remote:
		v.preview.File = key
		caption += MiddleDotSeparator + filepath.Base(key)
	case page.Missing:
		caption += MiddleDotSeparator + IconError
	default:
		v.preview.Resource = fyne.NewStaticResource(page.Name, page.Data)
		caption += MiddleDotSeparator + page.Name
	}
	v.preview.Refresh()
	v.caption.SetText(caption)
}

func (v *GalleryView) clearPreview() {
	v.preview.Image = nil
	v.preview.File = ""
	v.preview.Resource = nil
	v.preview.Refresh()
	v.caption.SetText("")
}

// thumbCell is one grid cell: the thumbnail and its page number
type thumbCell struct {
	widget.BaseWidget
	image *canvas.Image
	label *widget.Label
}

func newThumbCell() *thumbCell {
	c := &thumbCell{
		image: canvas.NewImageFromImage(nil),
		label: widget.NewLabel(IconLoading),
	}
	c.image.FillMode = canvas.ImageFillContain
	c.image.SetMinSize(fyne.NewSize(ThumbCellWidth, ThumbCellHeight))
	c.label.Alignment = fyne.TextAlignCenter
	c.label.Truncation = fyne.TextTruncateEllipsis
	c.ExtendBaseWidget(c)
	return c
}

// CreateRenderer implements fyne.Widget
func (c *thumbCell) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewBorder(nil, c.label, nil, nil, c.image))
}

func (c *thumbCell) show(img image.Image, caption string) {
	c.image.Image = img
	c.image.Refresh()
	c.label.SetText(caption)
}
