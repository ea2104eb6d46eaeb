package download

import (
	"context"
	"errors"
	"time"

	"github.com/ytget/manga-reader/internal/model"
)

var (
	// ErrResolve wraps failures to list a gallery's pages. It is terminal
	// for the Start call that hit it.
	ErrResolve = errors.New("failed to resolve gallery pages")

	// ErrCancelled is reported when a run was superseded or cancelled.
	// It is a normal outcome, not a fault.
	ErrCancelled = errors.New("download cancelled")

	// ErrPageUnavailable marks a page failure that retrying cannot fix.
	// Sources wrap it to skip the remaining attempts for that page.
	ErrPageUnavailable = errors.New("page unavailable")
)

// Source is the remote gallery provider.
type Source interface {
	// ResolvePageURLs lists the page URLs of a gallery in reading order
	ResolvePageURLs(ctx context.Context, galleryID string) ([]string, error)

	// FetchPage downloads one page
	FetchPage(ctx context.Context, url string) ([]byte, error)

	// CancelRemote asks the remote side to stop work for a gallery.
	// It is advisory; errors are logged and otherwise ignored.
	CancelRemote(ctx context.Context, galleryID string) error
}

// Store keeps completed galleries on disk.
type Store interface {
	// Lookup returns the ordered pages of a completed gallery
	Lookup(galleryID string) ([]model.Page, bool, error)

	// Save persists the ordered pages of a completed gallery
	Save(galleryID string, pages []model.Page) error
}

// Metrics provides observability for the downloader. A nil Metrics disables
// collection.
type Metrics interface {
	// ObservePageFetch records one page after all its attempts
	ObservePageFetch(d time.Duration, attempts int, err error)

	// RecordBatch records a batch delivered to the consumer
	RecordBatch(pages int)

	// RecordSession records a run reaching a final status
	RecordSession(status model.SessionStatus)
}

func observePageFetch(m Metrics, d time.Duration, attempts int, err error) {
	if m != nil {
		m.ObservePageFetch(d, attempts, err)
	}
}

func recordBatch(m Metrics, pages int) {
	if m != nil {
		m.RecordBatch(pages)
	}
}

func recordSession(m Metrics, status model.SessionStatus) {
	if m != nil {
		m.RecordSession(status)
	}
}
