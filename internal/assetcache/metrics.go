package assetcache

// Metrics provides observability for cache operations.
//
// Collection is optional: a nil Metrics disables it. The helpers below are
// nil-safe so call sites never need to check.
type Metrics interface {
	// ObserveHit records a TryGet that found its key
	ObserveHit()

	// ObserveMiss records a TryGet that did not find its key
	ObserveMiss()

	// RecordEvictions records entries evicted by a single Put or SetLimits
	RecordEvictions(n int)

	// RecordUsage records the current entry count and total bytes
	RecordUsage(count int, bytes int64)
}

// ObserveHit records a cache hit if metrics are enabled.
func ObserveHit(m Metrics) {
	if m != nil {
		m.ObserveHit()
	}
}

// ObserveMiss records a cache miss if metrics are enabled.
func ObserveMiss(m Metrics) {
	if m != nil {
		m.ObserveMiss()
	}
}

// RecordEvictions records evictions if metrics are enabled.
func RecordEvictions(m Metrics, n int) {
	if m != nil {
		m.RecordEvictions(n)
	}
}

// RecordUsage records cache usage if metrics are enabled.
func RecordUsage(m Metrics, count int, bytes int64) {
	if m != nil {
		m.RecordUsage(count, bytes)
	}
}
