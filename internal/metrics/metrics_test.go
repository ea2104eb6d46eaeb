package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/manga-reader/internal/decode"
	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/model"
)

// gathered flattens a registry into "name{label=value}" -> value
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += fmt.Sprintf("{%s=%s}", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestNilPipeline(t *testing.T) {
	var m *Pipeline
	assert.NotPanics(t, func() {
		m.ObserveHit()
		m.ObserveMiss()
		m.RecordEvictions(3)
		m.RecordUsage(1, 2)
		m.ObserveDecode(time.Millisecond, nil)
		m.RecordQueueDepth(4)
		m.RecordDropped(decode.DropStale)
		m.ObservePageFetch(time.Millisecond, 1, nil)
		m.RecordBatch(2)
		m.RecordSession(model.SessionCompleted)
	})
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHit()
	m.ObserveHit()
	m.ObserveMiss()
	m.RecordEvictions(3)
	m.RecordEvictions(0)
	m.RecordUsage(10, 4096)

	got := gathered(t, reg)
	assert.Equal(t, 2.0, got["mangareader_cache_lookups_total{result=hit}"])
	assert.Equal(t, 1.0, got["mangareader_cache_lookups_total{result=miss}"])
	assert.Equal(t, 3.0, got["mangareader_cache_evictions_total"])
	assert.Equal(t, 10.0, got["mangareader_cache_entries"])
	assert.Equal(t, 4096.0, got["mangareader_cache_bytes"])
}

func TestDecodeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDecode(time.Millisecond, nil)
	m.ObserveDecode(time.Millisecond, errors.New("bad image"))
	m.ObserveDecode(time.Millisecond, fmt.Errorf("%w: boom", decode.ErrPanic))
	m.RecordQueueDepth(7)
	m.RecordDropped(decode.DropOutOfRadius)
	m.RecordDropped(decode.DropOutOfRadius)

	got := gathered(t, reg)
	assert.Equal(t, 1.0, got["mangareader_decode_duration_seconds{outcome=ok}"])
	assert.Equal(t, 1.0, got["mangareader_decode_duration_seconds{outcome=error}"])
	assert.Equal(t, 1.0, got["mangareader_decode_duration_seconds{outcome=panic}"])
	assert.Equal(t, 7.0, got["mangareader_decode_queue_depth"])
	assert.Equal(t, 2.0, got["mangareader_decode_dropped_total{reason=out_of_radius}"])
}

func TestDownloadMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePageFetch(time.Millisecond, 1, nil)
	m.ObservePageFetch(time.Millisecond, 4, fmt.Errorf("page 3: %w", download.ErrPageUnavailable))
	m.ObservePageFetch(time.Millisecond, 0, download.ErrCancelled)
	m.RecordBatch(5)
	m.RecordSession(model.SessionCompleted)
	m.RecordSession(model.SessionCancelled)

	got := gathered(t, reg)
	assert.Equal(t, 1.0, got["mangareader_download_page_duration_seconds{outcome=ok}"])
	assert.Equal(t, 1.0, got["mangareader_download_page_duration_seconds{outcome=unavailable}"])
	assert.Equal(t, 1.0, got["mangareader_download_page_duration_seconds{outcome=cancelled}"])
	assert.Equal(t, 2.0, got["mangareader_download_page_attempts"])
	assert.Equal(t, 1.0, got["mangareader_download_batch_pages"])
	assert.Equal(t, 1.0, got["mangareader_download_sessions_total{status=completed}"])
	assert.Equal(t, 1.0, got["mangareader_download_sessions_total{status=cancelled}"])
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)

	var second *Pipeline
	require.NotPanics(t, func() { second = New(reg) })

	first.ObserveHit()
	second.ObserveHit()

	got := gathered(t, reg)
	assert.Equal(t, 2.0, got["mangareader_cache_lookups_total{result=hit}"])
}

func TestNew_Unregistered(t *testing.T) {
	m := New(nil)
	assert.NotPanics(t, func() { m.ObserveMiss() })
}
