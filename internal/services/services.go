// Package services assembles the asset pipeline from a validated
// configuration. The desktop app and the command line share it.
package services

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ytget/manga-reader/internal/archive"
	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/config"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/gallerystore"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/metrics"
	"github.com/ytget/manga-reader/internal/platform"
	"github.com/ytget/manga-reader/internal/source"
	"github.com/ytget/manga-reader/internal/thumbnail"
)

// Options tunes assembly
type Options struct {
	// Registerer receives the pipeline collectors; nil keeps them unregistered
	Registerer prometheus.Registerer

	// InMemoryStore keeps completed galleries in memory only
	InMemoryStore bool

	UserAgent string
}

// Set is one assembled pipeline. Source and Downloader are nil when no
// source URL is configured.
type Set struct {
	Config      *config.Pipeline
	Metrics     *metrics.Pipeline
	Cache       *assetcache.Cache
	Thumbnailer *thumbnail.Thumbnailer
	Store       *gallerystore.Store
	Source      *source.HTTPSource
	Downloader  *download.Downloader
	Exporter    *archive.Service
}

// New builds every component of cfg. On error nothing is left open.
func New(cfg *config.Pipeline, opts Options) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Set{
		Config:      cfg,
		Metrics:     metrics.New(opts.Registerer),
		Thumbnailer: thumbnail.New(cfg.Decode.ThumbWidth, cfg.Decode.ThumbHeight),
		Exporter:    archive.NewService(),
	}

	cache, err := assetcache.New(cfg.Cache.MaxEntries, int64(cfg.Cache.MaxBytes), assetcache.WithMetrics(s.Metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}
	s.Cache = cache

	if opts.InMemoryStore {
		s.Store, err = gallerystore.OpenInMemory()
	} else {
		if err = platform.CreateDirectoryIfNotExists(cfg.Download.StoreDir); err == nil {
			s.Store, err = gallerystore.Open(cfg.Download.StoreDir)
		}
	}
	if err != nil {
		return nil, err
	}

	if cfg.Download.SourceURL != "" {
		s.Source, err = source.NewHTTPSource(cfg.Download.SourceURL, source.Options{UserAgent: opts.UserAgent})
		if err != nil {
			_ = s.Store.Close()
			return nil, err
		}
		s.Downloader = download.New(s.Source, s.Store, download.Options{
			Concurrency:          cfg.Download.Concurrency,
			MaxRetries:           retries(cfg.Download.MaxRetries),
			RetryInitialInterval: cfg.Download.RetryInterval,
			PageCache:            s.Cache,
			Metrics:              s.Metrics,
		})
	}

	logger.Info("pipeline assembled",
		"cache_entries", cfg.Cache.MaxEntries,
		"cache_bytes", cfg.Cache.MaxBytes.String(),
		"source", cfg.Download.SourceURL,
		logger.KeyPath, cfg.Download.StoreDir)
	return s, nil
}

// Close stops the downloader, waits for exports and closes the store
func (s *Set) Close() error {
	if s.Downloader != nil {
		s.Downloader.Close()
	}
	s.Exporter.Wait()

	var errs []error
	if s.Store != nil {
		if err := s.Store.Close(); err != nil && !errors.Is(err, gallerystore.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// retries maps a configured retry count of zero to "no retries"; the
// downloader treats zero as its default.
func retries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
