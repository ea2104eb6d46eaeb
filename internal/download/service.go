package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

const tracerName = "github.com/ytget/manga-reader/internal/download"

// Defaults
const (
	DefaultConcurrency          = 32
	DefaultMaxRetries           = 3
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 10 * time.Second
	DefaultBufferSize           = 16
	DefaultRemoteCancelTimeout  = 5 * time.Second
)

// Options configures a Downloader
type Options struct {
	// Concurrency bounds simultaneous page fetches
	Concurrency int

	// MaxRetries is the number of extra attempts per page; negative disables retries
	MaxRetries int

	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// BufferSize bounds undelivered batches and completed fetches
	BufferSize int

	RemoteCancelTimeout time.Duration

	// PageCache, when set, receives the bytes of every delivered page
	// under the gallery group.
	PageCache *assetcache.Cache

	Metrics Metrics
	Tracer  trace.Tracer
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = DefaultRetryMaxInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.RemoteCancelTimeout <= 0 {
		o.RemoteCancelTimeout = DefaultRemoteCancelTimeout
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
}

// Downloader streams remote galleries page by page. At most one run is
// current at a time.
type Downloader struct {
	source Source
	store  Store
	opts   Options

	gen atomic.Uint64

	mu     sync.Mutex
	active *Session
}

// New creates a downloader. store may be nil to disable persistence.
func New(source Source, store Store, opts Options) *Downloader {
	opts.setDefaults()
	return &Downloader{
		source: source,
		store:  store,
		opts:   opts,
	}
}

// Generation returns the current generation
func (d *Downloader) Generation() uint64 {
	return d.gen.Load()
}

// Active returns the gallery of the run in progress, if any.
func (d *Downloader) Active() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil || !d.active.Status().IsActive() {
		return "", false
	}
	return d.active.GalleryID, true
}

// Start begins a new run for galleryID and stops the previous one.
//
// A gallery already in the store is returned as a single FromCache batch
// without touching the network. Otherwise page URLs are resolved before
// Start returns; the first batch announces the page count and the rest
// follow as pages arrive in order.
func (d *Downloader) Start(ctx context.Context, galleryID string) (*Session, error) {
	if galleryID == "" {
		return nil, fmt.Errorf("%w: empty gallery id", ErrResolve)
	}

	d.mu.Lock()
	gen := d.gen.Add(1)
	prev := d.active
	s := newSession(ctx, d, galleryID, gen)
	d.active = s
	d.mu.Unlock()

	if prev != nil {
		if prev.GalleryID != galleryID {
			d.cancelRun(prev, true)
		} else {
			d.cancelRun(prev, false)
		}
	}

	log := logger.With(logger.KeyGalleryID, galleryID, logger.KeyGeneration, gen, logger.KeySessionID, s.ID)

	if pages, ok := d.TryGetCachedGallery(galleryID); ok {
		s.setTotal(len(pages))
		delivered := s.emit(model.Batch{
			GalleryID:      galleryID,
			Generation:     gen,
			Pages:          pages,
			Skipped:        missingIndices(pages),
			CompletedCount: len(pages),
			Total:          len(pages),
			FromCache:      true,
		})
		if !delivered {
			s.finish(model.SessionCancelled, ErrCancelled)
			log.Debug("download superseded before store delivery")
			return nil, ErrCancelled
		}
		s.finish(model.SessionCompleted, nil)
		log.Info("gallery served from store", logger.KeyPages, len(pages))
		return s, nil
	}

	urls, err := d.resolve(s.ctx, galleryID)
	if !s.current() {
		s.finish(model.SessionCancelled, ErrCancelled)
		log.Debug("download superseded during resolve")
		return nil, ErrCancelled
	}
	if err != nil {
		s.finish(model.SessionFailed, err)
		log.Error("gallery resolve failed", logger.Err(err)...)
		return nil, err
	}

	s.setTotal(len(urls))
	s.setStatus(model.SessionDownloading)
	if !s.emit(model.Batch{GalleryID: galleryID, Generation: gen, Total: len(urls)}) {
		s.finish(model.SessionCancelled, ErrCancelled)
		return nil, ErrCancelled
	}

	log.Info("gallery download started", logger.KeyTotal, len(urls))
	go d.run(s, urls)
	return s, nil
}

// CancelDownload stops the current run if it is for galleryID and sends
// one advisory cancel to the source. It returns false if no such run exists.
func (d *Downloader) CancelDownload(galleryID string) bool {
	d.mu.Lock()
	s := d.active
	if s == nil || s.GalleryID != galleryID {
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()

	d.cancelRun(s, true)
	return true
}

// Close stops the current run without a remote cancel.
func (d *Downloader) Close() {
	d.mu.Lock()
	s := d.active
	d.mu.Unlock()
	if s != nil {
		d.cancelRun(s, false)
	}
}

// TryGetCachedGallery returns the stored pages of a completed gallery.
func (d *Downloader) TryGetCachedGallery(galleryID string) ([]model.Page, bool) {
	if d.store == nil {
		return nil, false
	}
	pages, ok, err := d.store.Lookup(galleryID)
	if err != nil {
		logger.Warn("gallery store lookup failed",
			append([]any{logger.KeyGalleryID, galleryID}, logger.Err(err)...)...)
		return nil, false
	}
	if !ok || len(pages) == 0 {
		return nil, false
	}
	return pages, true
}

// cancelRun stops s locally and, if remote is set, notifies the source.
func (d *Downloader) cancelRun(s *Session, remote bool) {
	d.mu.Lock()
	if d.active == s {
		d.active = nil
	}
	d.mu.Unlock()

	wasActive := s.Status().IsActive()
	s.abort()
	d.discardPages(s)
	logger.Debug("download cancelled",
		logger.KeyGalleryID, s.GalleryID,
		logger.KeyGeneration, s.Generation,
		"remote", remote)

	if !remote || !wasActive {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.RemoteCancelTimeout)
	defer cancel()
	if err := d.source.CancelRemote(ctx, s.GalleryID); err != nil {
		logger.Debug("remote cancel failed",
			append([]any{logger.KeyGalleryID, s.GalleryID}, logger.Err(err)...)...)
	}
}

// release forgets s if it is still the active run.
func (d *Downloader) release(s *Session) {
	d.mu.Lock()
	if d.active == s {
		d.active = nil
	}
	d.mu.Unlock()
}

func (d *Downloader) resolve(ctx context.Context, galleryID string) ([]string, error) {
	ctx, span := d.opts.Tracer.Start(ctx, "download.resolve",
		trace.WithAttributes(attribute.String("gallery.id", galleryID)))
	defer span.End()

	urls, err := d.source.ResolvePageURLs(ctx, galleryID)
	if err == nil && len(urls) == 0 {
		err = errors.New("gallery has no pages")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s: %w", ErrResolve, galleryID, err)
	}
	span.SetAttributes(attribute.Int("gallery.pages", len(urls)))
	return urls, nil
}

// run fetches every page with bounded concurrency and feeds the reassembler.
func (d *Downloader) run(s *Session, urls []string) {
	results := make(chan model.Page, d.opts.BufferSize)

	g, gctx := errgroup.WithContext(s.ctx)
	g.SetLimit(d.opts.Concurrency)

	go func() {
		for i, u := range urls {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				page := d.fetch(gctx, i, u)
				select {
				case results <- page:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for page := range results {
		s.accept(page)
	}

	if !s.current() || s.next < len(urls) {
		// A newer run may already be filling the same group.
		if s.Generation == d.gen.Load() {
			d.discardPages(s)
		}
		s.finish(model.SessionCancelled, ErrCancelled)
		return
	}

	missing := model.CountMissing(s.delivered)
	logger.Info("gallery download completed",
		logger.KeyGalleryID, s.GalleryID,
		logger.KeyGeneration, s.Generation,
		logger.KeyPages, len(s.delivered),
		"missing", missing)
	s.finish(model.SessionCompleted, nil)
}

// fetch downloads one page with retries. Failures become a Missing page.
func (d *Downloader) fetch(ctx context.Context, index int, pageURL string) model.Page {
	page := model.Page{Index: index, URL: pageURL, Name: model.PageName(index, pageExt(pageURL))}

	ctx, span := d.opts.Tracer.Start(ctx, "download.fetch_page",
		trace.WithAttributes(attribute.Int("page.index", index)))
	defer span.End()

	start := time.Now()
	attempts := 0
	op := func() ([]byte, error) {
		attempts++
		data, err := d.source.FetchPage(ctx, pageURL)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrPageUnavailable) {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() == nil {
			logger.Debug("page fetch attempt failed",
				append([]any{logger.KeyPage, index, logger.KeyAttempt, attempts}, logger.Err(err)...)...)
		}
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.RetryInitialInterval
	b.MaxInterval = d.opts.RetryMaxInterval

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.opts.MaxRetries+1)))
	observePageFetch(d.opts.Metrics, time.Since(start), attempts, err)

	if err != nil {
		page.Missing = true
		page.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			logger.Warn("page skipped after retries",
				append([]any{logger.KeyPage, index, logger.KeyAttempt, attempts, logger.KeyURL, pageURL},
					logger.Err(err)...)...)
		}
		return page
	}

	page.Data = data
	span.SetAttributes(attribute.Int("page.bytes", len(data)))
	return page
}

// persist stores a gap-free run. Sessions call it before emitting their
// final batch, so a consumer reacting to that batch finds the gallery in
// the store.
func (d *Downloader) persist(s *Session) {
	if d.store == nil || model.CountMissing(s.delivered) > 0 {
		return
	}
	if err := d.store.Save(s.GalleryID, s.delivered); err != nil {
		logger.Warn("failed to persist gallery",
			append([]any{logger.KeyGalleryID, s.GalleryID}, logger.Err(err)...)...)
	}
}

// cachePages writes page bytes into the page cache.
func (d *Downloader) cachePages(galleryID string, pages []model.Page) {
	if d.opts.PageCache == nil {
		return
	}
	for _, p := range pages {
		if p.Missing || len(p.Data) == 0 {
			continue
		}
		asset := &model.Asset{Data: p.Data}
		if err := d.opts.PageCache.Put(PageKey(galleryID, p.Index), asset, int64(len(p.Data)), galleryID); err != nil {
			logger.Debug("page not cached",
				append([]any{logger.KeyGalleryID, galleryID, logger.KeyPage, p.Index}, logger.Err(err)...)...)
		}
	}
}

// discardPages drops the cached pages of an aborted run.
func (d *Downloader) discardPages(s *Session) {
	if d.opts.PageCache == nil {
		return
	}
	if n := d.opts.PageCache.ClearGroup(s.GalleryID); n > 0 {
		logger.Debug("discarded pages of aborted run",
			logger.KeyGalleryID, s.GalleryID,
			logger.KeyGeneration, s.Generation,
			logger.KeyEvicted, n)
	}
}

// PageKey is the asset cache key of a downloaded page.
func PageKey(galleryID string, index int) string {
	return fmt.Sprintf("%s/page-%04d", galleryID, index+1)
}

func missingIndices(pages []model.Page) []int {
	var out []int
	for _, p := range pages {
		if p.Missing {
			out = append(out, p.Index)
		}
	}
	return out
}

// pageExt returns the lowercase file extension of a page URL, defaulting to .jpg.
func pageExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return ext
	default:
		return ".jpg"
	}
}
