package download

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

// Session is one download run of a gallery.
type Session struct {
	ID         string
	GalleryID  string
	Generation uint64

	d      *Downloader
	ctx    context.Context
	cancel context.CancelFunc

	batches chan model.Batch
	done    chan struct{}

	// emitMu serializes delivery with cancellation and channel close
	emitMu sync.Mutex

	mu     sync.Mutex
	status model.SessionStatus
	total  int
	err    error
	once   sync.Once

	// reassembly state, owned by the run goroutine
	received  map[int]model.Page
	next      int
	delivered []model.Page
}

func newSession(parent context.Context, d *Downloader, galleryID string, gen uint64) *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:         id.String(),
		GalleryID:  galleryID,
		Generation: gen,
		d:          d,
		ctx:        ctx,
		cancel:     cancel,
		batches:    make(chan model.Batch, d.opts.BufferSize),
		done:       make(chan struct{}),
		status:     model.SessionResolving,
		received:   make(map[int]model.Page),
	}
}

// Batches returns the ordered batch stream. It is closed when the run ends.
func (s *Session) Batches() <-chan model.Batch {
	return s.batches
}

// Done is closed when the run has ended
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the run ends. It returns nil on completion (gaps
// included) and ErrCancelled if the run was superseded or cancelled.
func (s *Session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Total returns the number of pages, or 0 before resolve finished
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Status returns the run status
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(status model.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) setTotal(total int) {
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
}

// current reports whether the run may still deliver.
func (s *Session) current() bool {
	return s.ctx.Err() == nil && s.Generation == s.d.gen.Load()
}

// emit delivers a batch if the run is still current. It blocks while the
// buffer is full unless the run is cancelled meanwhile.
func (s *Session) emit(b model.Batch) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if !s.current() {
		return false
	}
	s.d.cachePages(s.GalleryID, b.Pages)
	select {
	case s.batches <- b:
		recordBatch(s.d.opts.Metrics, len(b.Pages))
		return true
	case <-s.ctx.Done():
		return false
	}
}

// abort cancels the run and waits for any in-progress delivery to return.
// Batches still buffered are dropped so the consumer sees none of them.
func (s *Session) abort() {
	s.cancel()

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for {
		select {
		case _, ok := <-s.batches:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// finish records the final status once and closes the batch stream.
func (s *Session) finish(status model.SessionStatus, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.status = status
		s.err = err
		s.mu.Unlock()

		s.d.release(s)

		s.emitMu.Lock()
		close(s.batches)
		s.emitMu.Unlock()

		s.cancel()
		close(s.done)
		recordSession(s.d.opts.Metrics, status)

		logger.Debug("download run finished",
			logger.KeyGalleryID, s.GalleryID,
			logger.KeySessionID, s.ID,
			logger.KeyGeneration, s.Generation,
			"status", string(status))
	})
}

// accept buffers a fetched page and emits every page that became contiguous.
func (s *Session) accept(p model.Page) {
	s.received[p.Index] = p

	var ready []model.Page
	var skipped []int
	for {
		page, ok := s.received[s.next]
		if !ok {
			break
		}
		delete(s.received, s.next)
		ready = append(ready, page)
		if page.Missing {
			skipped = append(skipped, page.Index)
		}
		s.next++
	}
	if len(ready) == 0 {
		return
	}

	s.delivered = append(s.delivered, ready...)
	if s.next == s.Total() && s.current() {
		s.d.persist(s)
	}
	s.emit(model.Batch{
		GalleryID:      s.GalleryID,
		Generation:     s.Generation,
		Pages:          ready,
		Skipped:        skipped,
		CompletedCount: s.next,
		Total:          s.Total(),
	})
}
