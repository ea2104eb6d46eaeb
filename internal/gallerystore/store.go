// Package gallerystore persists completed galleries in a badger database so
// a later open is served without the network.
//
// Key layout:
//
//	m:<gallery>                JSON manifest (page list without bytes)
//	p:<hex gallery>:<index>    page bytes, index zero-padded
//
// The gallery id is hex-encoded in page keys so one gallery's page prefix
// never matches another's. Pages are written before the manifest, so a
// gallery is only visible once all of its pages are stored.
package gallerystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/model"
)

const (
	prefixManifest = "m:"
	prefixPage     = "p:"
)

var (
	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("gallery store is closed")

	// ErrNotFound is returned by Delete for unknown galleries
	ErrNotFound = errors.New("gallery not found")
)

type manifest struct {
	GalleryID string       `json:"gallery_id"`
	Pages     []model.Page `json:"pages"`
	Bytes     int64        `json:"bytes"`
	SavedAt   time.Time    `json:"saved_at"`
}

// Summary describes a stored gallery
type Summary struct {
	GalleryID string
	Pages     int
	Missing   int
	Bytes     int64
	SavedAt   time.Time
}

// Store is a badger-backed gallery store.
type Store struct {
	db     *badger.DB
	closed atomic.Bool
}

var _ download.Store = (*Store)(nil)

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery store at %s: %w", dir, err)
	}
	logger.Debug("gallery store opened", logger.KeyPath, dir)
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory gallery store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database. Further calls return ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.db.Close()
}

// Save stores the ordered pages of a gallery, replacing any previous copy.
func (s *Store) Save(galleryID string, pages []model.Page) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if galleryID == "" {
		return errors.New("gallery id is required")
	}

	// Drop the previous copy first so no stale pages outlive it
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(galleryID))
	}); err != nil {
		return fmt.Errorf("failed to replace manifest of %s: %w", galleryID, err)
	}
	if err := s.db.DropPrefix(pagePrefix(galleryID)); err != nil {
		return fmt.Errorf("failed to drop old pages of %s: %w", galleryID, err)
	}

	m := manifest{GalleryID: galleryID, Pages: make([]model.Page, len(pages)), SavedAt: time.Now().UTC()}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, p := range pages {
		m.Pages[i] = p
		m.Pages[i].Data = nil
		if p.Missing {
			continue
		}
		if err := wb.Set(pageKey(galleryID, p.Index), p.Data); err != nil {
			return fmt.Errorf("failed to write page %d of %s: %w", p.Index, galleryID, err)
		}
		m.Bytes += int64(len(p.Data))
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write pages of %s: %w", galleryID, err)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(galleryID), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write manifest of %s: %w", galleryID, err)
	}

	logger.Debug("gallery saved",
		logger.KeyGalleryID, galleryID,
		logger.KeyPages, len(pages),
		logger.KeySize, m.Bytes)
	return nil
}

// Lookup returns the ordered pages of a stored gallery with their bytes.
func (s *Store) Lookup(galleryID string) ([]model.Page, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	var pages []model.Page
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := readManifest(txn, galleryID)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		pages = m.Pages
		for i := range pages {
			if pages[i].Missing {
				continue
			}
			item, err := txn.Get(pageKey(galleryID, pages[i].Index))
			if err != nil {
				return fmt.Errorf("page %d: %w", pages[i].Index, err)
			}
			if pages[i].Data, err = item.ValueCopy(nil); err != nil {
				return fmt.Errorf("page %d: %w", pages[i].Index, err)
			}
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read gallery %s: %w", galleryID, err)
	}
	return pages, found, nil
}

// Delete removes a stored gallery.
func (s *Store) Delete(galleryID string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(manifestKey(galleryID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(manifestKey(galleryID))
	})
	if err != nil {
		return err
	}

	if err := s.db.DropPrefix(pagePrefix(galleryID)); err != nil {
		return fmt.Errorf("failed to drop pages of %s: %w", galleryID, err)
	}
	logger.Debug("gallery deleted", logger.KeyGalleryID, galleryID)
	return nil
}

// List summarizes every stored gallery in id order.
func (s *Store) List() ([]Summary, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixManifest)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var m manifest
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return fmt.Errorf("manifest %s: %w", it.Item().Key(), err)
			}
			out = append(out, Summary{
				GalleryID: m.GalleryID,
				Pages:     len(m.Pages),
				Missing:   model.CountMissing(m.Pages),
				Bytes:     m.Bytes,
				SavedAt:   m.SavedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list galleries: %w", err)
	}
	return out, nil
}

func readManifest(txn *badger.Txn, galleryID string) (*manifest, error) {
	item, err := txn.Get(manifestKey(galleryID))
	if err != nil {
		return nil, err
	}
	var m manifest
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	if err != nil {
		return nil, fmt.Errorf("corrupt manifest: %w", err)
	}
	return &m, nil
}

func manifestKey(galleryID string) []byte {
	return []byte(prefixManifest + galleryID)
}

func pagePrefix(galleryID string) []byte {
	return []byte(prefixPage + hex.EncodeToString([]byte(galleryID)) + ":")
}

func pageKey(galleryID string, index int) []byte {
	return fmt.Appendf(pagePrefix(galleryID), "%06d", index)
}
