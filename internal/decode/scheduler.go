// Package decode schedules thumbnail decodes by distance to the viewport.
//
// Requests are kept in a priority queue ordered by their distance to the
// current pivot (the selected or centered item). A fixed pool of workers pops
// the closest request, decodes it off the UI thread, stores the result in the
// asset cache and reports completion through a dispatch.Executor.
package decode

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/dispatch"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

// Defaults
const (
	DefaultWorkers = 4
	DefaultRadius  = 24
)

// ErrPanic wraps a panic raised by a Decoder.
var ErrPanic = errors.New("decoder panicked")

// Decoder turns a key (usually a file path) into a cacheable asset and its
// size in bytes.
type Decoder interface {
	Decode(ctx context.Context, key string) (*model.Asset, int64, error)
}

// DecoderFunc adapts a function to Decoder
type DecoderFunc func(ctx context.Context, key string) (*model.Asset, int64, error)

// Decode calls f
func (f DecoderFunc) Decode(ctx context.Context, key string) (*model.Asset, int64, error) {
	return f(ctx, key)
}

// Result is delivered to Options.OnComplete for every finished decode whose
// output is still relevant.
type Result struct {
	Key         string
	SourceIndex int
	Asset       *model.Asset
	Err         error
}

// Options configures a Scheduler
type Options struct {
	// Workers is the number of concurrent decodes
	Workers int

	// Radius bounds how far from the pivot a request may be and still run.
	// Zero or negative disables pruning.
	Radius int

	// Group is the cache group decoded assets are stored under
	Group string

	// OnComplete is invoked through the executor
	OnComplete func(Result)

	Metrics Metrics
}

// Stats is a snapshot of scheduler state
type Stats struct {
	Queued     int
	Running    int
	Completed  uint64
	Cancelled  uint64
	Failed     uint64
	Superseded uint64
	Pivot      int
	Generation uint64
}

// Scheduler is a viewport-priority decode queue with a bounded worker pool.
type Scheduler struct {
	cache    *assetcache.Cache
	decoder  Decoder
	executor dispatch.Executor
	opts     Options

	mu      sync.Mutex
	cond    *sync.Cond
	queue   requestQueue
	queued  map[string]*item
	running map[string]struct{}
	pivot   int
	radius  int
	seq     uint64
	closed  bool
	started bool

	gen       atomic.Uint64
	genCtx    context.Context
	genCancel context.CancelFunc

	completed  atomic.Uint64
	cancelled  atomic.Uint64
	failed     atomic.Uint64
	superseded atomic.Uint64

	wg sync.WaitGroup
}

// New creates a scheduler. Call Start to launch the workers.
func New(cache *assetcache.Cache, decoder Decoder, executor dispatch.Executor, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if executor == nil {
		executor = dispatch.Immediate{}
	}
	s := &Scheduler{
		cache:    cache,
		decoder:  decoder,
		executor: executor,
		opts:     opts,
		queued:   make(map[string]*item),
		running:  make(map[string]struct{}),
		radius:   opts.Radius,
	}
	s.cond = sync.NewCond(&s.mu)
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	return s
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	logger.Debug("decode workers started", "workers", s.opts.Workers, "radius", s.radius)
}

// Close stops the workers, drops queued requests and waits for running
// decodes to return. Their results are discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := s.dropQueuedLocked()
	s.genCancel()
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	logger.Debug("decode workers stopped", "dropped", dropped)
}

// Enqueue asks for key to be decoded. It is a no-op when key is already
// cached or currently being decoded. A key already queued is updated in
// place with the new position and pivot.
func (s *Scheduler) Enqueue(key string, sourceIndex, pivotIndex int) {
	if s.cache != nil && s.cache.Contains(key) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, busy := s.running[key]; busy {
		return
	}

	if pivotIndex != s.pivot {
		s.pivot = pivotIndex
		s.queue.rescore(pivotIndex)
	}

	priority := model.Distance(sourceIndex, pivotIndex)
	req := model.DecodeRequest{
		Key:            key,
		SourceIndex:    sourceIndex,
		SubmittedPivot: pivotIndex,
		Generation:     s.gen.Load(),
		Priority:       priority,
		Status:         model.RequestQueued,
	}
	if it, ok := s.queued[key]; ok {
		// Newest request wins; the queued one is superseded in place.
		it.req.Status = model.RequestSuperseded
		s.superseded.Add(1)
		recordDropped(s.opts.Metrics, DropSuperseded)
		it.req = req
		heap.Fix(&s.queue, it.index)
		return
	}

	s.seq++
	it := &item{req: req, seq: s.seq}
	heap.Push(&s.queue, it)
	s.queued[key] = it
	recordQueueDepth(s.opts.Metrics, s.queue.Len())
	s.cond.Signal()
}

// UpdateSelectedIndex moves the pivot and re-scores queued requests.
// Running decodes are not affected.
func (s *Scheduler) UpdateSelectedIndex(pivotIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pivot == pivotIndex {
		return
	}
	s.pivot = pivotIndex
	s.queue.rescore(pivotIndex)
}

// Sweep moves the pivot and enqueues every index of a collection of count
// items that lies within the radius of pivotIndex. keyAt maps an index to
// its cache key; an empty key is skipped.
func (s *Scheduler) Sweep(pivotIndex, count int, keyAt func(int) string) {
	if count <= 0 {
		return
	}
	s.UpdateSelectedIndex(pivotIndex)

	lo, hi := 0, count-1
	if r := s.Radius(); r > 0 {
		lo = max(lo, pivotIndex-r)
		hi = min(hi, pivotIndex+r)
	}
	for i := lo; i <= hi; i++ {
		if key := keyAt(i); key != "" {
			s.Enqueue(key, i, pivotIndex)
		}
	}
}

// SetRadius changes the pruning radius. Zero or negative disables pruning.
func (s *Scheduler) SetRadius(radius int) {
	s.mu.Lock()
	s.radius = radius
	s.mu.Unlock()
}

// Radius returns the pruning radius
func (s *Scheduler) Radius() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radius
}

// Reset starts a new generation: every queued request is dropped and running
// decodes are told to stop. Results of running decodes are discarded.
func (s *Scheduler) Reset() uint64 {
	s.mu.Lock()
	dropped := s.dropQueuedLocked()
	s.genCancel()
	s.genCtx, s.genCancel = context.WithCancel(context.Background())
	gen := s.gen.Add(1)
	s.mu.Unlock()

	logger.Debug("decode queue reset", logger.KeyGeneration, gen, "dropped", dropped)
	return gen
}

// Generation returns the current generation
func (s *Scheduler) Generation() uint64 {
	return s.gen.Load()
}

// Stats returns a snapshot of the scheduler state
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:     s.queue.Len(),
		Running:    len(s.running),
		Completed:  s.completed.Load(),
		Cancelled:  s.cancelled.Load(),
		Failed:     s.failed.Load(),
		Superseded: s.superseded.Load(),
		Pivot:      s.pivot,
		Generation: s.gen.Load(),
	}
}

// dropQueuedLocked empties the queue. Caller must hold s.mu.
func (s *Scheduler) dropQueuedLocked() int {
	n := s.queue.Len()
	for _, it := range s.queue {
		it.req.Status = model.RequestCancelled
		recordDropped(s.opts.Metrics, DropReset)
	}
	s.queue = s.queue[:0]
	s.queued = make(map[string]*item)
	s.cancelled.Add(uint64(n))
	recordQueueDepth(s.opts.Metrics, 0)
	return n
}

// outOfRadiusLocked reports whether index is too far from the pivot.
// Caller must hold s.mu.
func (s *Scheduler) outOfRadiusLocked(index int) bool {
	return s.radius > 0 && model.Distance(index, s.pivot) > s.radius
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for !s.closed && s.queue.Len() == 0 {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}

		it := heap.Pop(&s.queue).(*item)
		delete(s.queued, it.req.Key)
		recordQueueDepth(s.opts.Metrics, s.queue.Len())

		// Relevance is re-checked at dequeue since the pivot may have moved.
		if s.outOfRadiusLocked(it.req.SourceIndex) {
			it.req.Status = model.RequestCancelled
			pivot := s.pivot
			s.mu.Unlock()

			s.cancelled.Add(1)
			recordDropped(s.opts.Metrics, DropOutOfRadius)
			logger.Debug("decode request pruned",
				logger.KeyKey, it.req.Key,
				logger.KeyIndex, it.req.SourceIndex,
				logger.KeyPivot, pivot)
			continue
		}

		it.req.Status = model.RequestRunning
		s.running[it.req.Key] = struct{}{}
		ctx := s.genCtx
		s.mu.Unlock()

		s.process(ctx, it.req)
	}
}

// process decodes one request and delivers the result if it is still wanted.
func (s *Scheduler) process(ctx context.Context, req model.DecodeRequest) {
	defer func() {
		s.mu.Lock()
		delete(s.running, req.Key)
		s.mu.Unlock()
	}()

	// Another path may have filled the cache while the request was queued.
	if s.cache != nil {
		if cached, ok := s.cache.TryGet(req.Key); ok {
			s.completed.Add(1)
			s.notify(Result{Key: req.Key, SourceIndex: req.SourceIndex, Asset: cached})
			return
		}
	}

	start := time.Now()
	asset, size, err := s.safeDecode(ctx, req.Key)
	observeDecode(s.opts.Metrics, time.Since(start), err)

	s.mu.Lock()
	stale := req.Generation != s.gen.Load() || s.outOfRadiusLocked(req.SourceIndex)
	s.mu.Unlock()

	if stale || (err != nil && ctx.Err() != nil) {
		s.cancelled.Add(1)
		recordDropped(s.opts.Metrics, DropStale)
		logger.Debug("decode result discarded",
			logger.KeyKey, req.Key,
			logger.KeyIndex, req.SourceIndex,
			logger.KeyGeneration, req.Generation)
		return
	}

	if err != nil {
		s.failed.Add(1)
		logger.Warn("decode failed", append([]any{logger.KeyKey, req.Key}, logger.Err(err)...)...)
		s.notify(Result{Key: req.Key, SourceIndex: req.SourceIndex, Err: err})
		return
	}

	if s.cache != nil {
		if err := s.cache.Put(req.Key, asset, size, s.opts.Group); err != nil {
			s.failed.Add(1)
			logger.Warn("decoded asset not cached", append([]any{logger.KeyKey, req.Key}, logger.Err(err)...)...)
			s.notify(Result{Key: req.Key, SourceIndex: req.SourceIndex, Err: err})
			return
		}
	}

	s.completed.Add(1)
	s.notify(Result{Key: req.Key, SourceIndex: req.SourceIndex, Asset: asset})
}

// safeDecode isolates decoder panics so one bad item cannot stop the pool.
func (s *Scheduler) safeDecode(ctx context.Context, key string) (asset *model.Asset, size int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return s.decoder.Decode(ctx, key)
}

func (s *Scheduler) notify(res Result) {
	if s.opts.OnComplete == nil {
		return
	}
	cb := s.opts.OnComplete
	s.executor.Submit(func() { cb(res) })
}
