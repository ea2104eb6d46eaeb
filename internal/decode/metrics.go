package decode

import "time"

// Drop reasons reported to Metrics.RecordDropped
const (
	DropOutOfRadius = "out_of_radius"
	DropStale       = "stale"
	DropReset       = "reset"
	DropSuperseded  = "superseded"
)

// Metrics provides observability for the decode scheduler. A nil Metrics
// disables collection.
type Metrics interface {
	// ObserveDecode records one decode call and its outcome
	ObserveDecode(d time.Duration, err error)

	// RecordQueueDepth records the number of queued requests
	RecordQueueDepth(n int)

	// RecordDropped records a request or result discarded without delivery
	RecordDropped(reason string)
}

func observeDecode(m Metrics, d time.Duration, err error) {
	if m != nil {
		m.ObserveDecode(d, err)
	}
}

func recordQueueDepth(m Metrics, n int) {
	if m != nil {
		m.RecordQueueDepth(n)
	}
}

func recordDropped(m Metrics, reason string) {
	if m != nil {
		m.RecordDropped(reason)
	}
}
