// Package metrics exports the asset pipeline's counters to Prometheus.
//
// A single *Pipeline satisfies the Metrics hooks of the asset cache, the
// decode scheduler and the downloader. All methods are nil-safe: calls on a
// nil *Pipeline are no-ops.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ytget/manga-reader/internal/assetcache"
	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/model"
)

const namespace = "mangareader"

// Outcome label values
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomePanic       = "panic"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
)

// Pipeline holds every collector of the asset pipeline.
type Pipeline struct {
	CacheLookups   *prometheus.CounterVec
	CacheEvictions prometheus.Counter
	CacheEntries   prometheus.Gauge
	CacheBytes     prometheus.Gauge

	DecodeDuration *prometheus.HistogramVec
	DecodeQueue    prometheus.Gauge
	DecodeDropped  *prometheus.CounterVec

	FetchDuration *prometheus.HistogramVec
	FetchAttempts prometheus.Histogram
	BatchPages    prometheus.Histogram
	Sessions      *prometheus.CounterVec
}

var (
	_ assetcache.Metrics = (*Pipeline)(nil)
	_ decode.Metrics     = (*Pipeline)(nil)
	_ download.Metrics   = (*Pipeline)(nil)
)

// New creates the collectors and registers them with reg. If reg is nil,
// metrics are created but not registered. Collectors already present in reg
// are reused.
func New(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Asset cache lookups by result",
		}, []string{"result"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted from the asset cache",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cached assets",
		}),
		CacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bytes",
			Help:      "Current accounted size of cached assets",
		}),
		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "duration_seconds",
			Help:      "Thumbnail decode time by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"outcome"}),
		DecodeQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "queue_depth",
			Help:      "Decode requests waiting for a worker",
		}),
		DecodeDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "dropped_total",
			Help:      "Decode requests or results discarded without delivery",
		}, []string{"reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "page_duration_seconds",
			Help:      "Page fetch time including retries, by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"outcome"}),
		FetchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "page_attempts",
			Help:      "Attempts needed per page",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		BatchPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "batch_pages",
			Help:      "Pages per delivered batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "sessions_total",
			Help:      "Download runs by final status",
		}, []string{"status"}),
	}

	if reg != nil {
		m.CacheLookups = registerOrReuse(reg, m.CacheLookups).(*prometheus.CounterVec)
		m.CacheEvictions = registerOrReuse(reg, m.CacheEvictions).(prometheus.Counter)
		m.CacheEntries = registerOrReuse(reg, m.CacheEntries).(prometheus.Gauge)
		m.CacheBytes = registerOrReuse(reg, m.CacheBytes).(prometheus.Gauge)
		m.DecodeDuration = registerOrReuse(reg, m.DecodeDuration).(*prometheus.HistogramVec)
		m.DecodeQueue = registerOrReuse(reg, m.DecodeQueue).(prometheus.Gauge)
		m.DecodeDropped = registerOrReuse(reg, m.DecodeDropped).(*prometheus.CounterVec)
		m.FetchDuration = registerOrReuse(reg, m.FetchDuration).(*prometheus.HistogramVec)
		m.FetchAttempts = registerOrReuse(reg, m.FetchAttempts).(prometheus.Histogram)
		m.BatchPages = registerOrReuse(reg, m.BatchPages).(prometheus.Histogram)
		m.Sessions = registerOrReuse(reg, m.Sessions).(*prometheus.CounterVec)
	}

	return m
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor. Panics on any other registration failure.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// ObserveHit implements assetcache.Metrics.
func (m *Pipeline) ObserveHit() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Inc()
}

// ObserveMiss implements assetcache.Metrics.
func (m *Pipeline) ObserveMiss() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordEvictions implements assetcache.Metrics.
func (m *Pipeline) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

// RecordUsage implements assetcache.Metrics.
func (m *Pipeline) RecordUsage(count int, bytes int64) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(count))
	m.CacheBytes.Set(float64(bytes))
}

// ObserveDecode implements decode.Metrics.
func (m *Pipeline) ObserveDecode(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case errors.Is(err, decode.ErrPanic):
		outcome = OutcomePanic
	case err != nil:
		outcome = OutcomeError
	}
	m.DecodeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordQueueDepth implements decode.Metrics.
func (m *Pipeline) RecordQueueDepth(n int) {
	if m == nil {
		return
	}
	m.DecodeQueue.Set(float64(n))
}

// RecordDropped implements decode.Metrics.
func (m *Pipeline) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.DecodeDropped.WithLabelValues(reason).Inc()
}

// ObservePageFetch implements download.Metrics.
func (m *Pipeline) ObservePageFetch(d time.Duration, attempts int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case errors.Is(err, download.ErrPageUnavailable):
		outcome = OutcomeUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, download.ErrCancelled):
		outcome = OutcomeCancelled
	case err != nil:
		outcome = OutcomeError
	}
	m.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if attempts > 0 {
		m.FetchAttempts.Observe(float64(attempts))
	}
}

// RecordBatch implements download.Metrics.
func (m *Pipeline) RecordBatch(pages int) {
	if m == nil {
		return
	}
	m.BatchPages.Observe(float64(pages))
}

// RecordSession implements download.Metrics.
func (m *Pipeline) RecordSession(status model.SessionStatus) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(string(status)).Inc()
}
