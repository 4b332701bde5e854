package graph

import "time"

// MetricsCollector receives operational measurements from a Store and its
// Trackers. Implement it to feed a monitoring system; see pkg/metrics for a
// Prometheus implementation.
type MetricsCollector interface {
	// RecordCommit is called after every outermost transaction.
	RecordCommit(changes int, duration time.Duration)

	// RecordComponentUpdate is called after every incremental update.
	RecordComponentUpdate(stats UpdateStats, duration time.Duration)

	// RecordLockWait is called when acquiring a tracker lock had to block.
	RecordLockWait(op string, waited time.Duration)
}

// UpdateStats summarises one tracker update.
type UpdateStats struct {
	Components int
	Added      int
	Removed    int
	Merged     int
	Split      int
	Events     int
}

// NoopMetricsCollector discards everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommit(int, time.Duration)                  {}
func (NoopMetricsCollector) RecordComponentUpdate(UpdateStats, time.Duration) {}
func (NoopMetricsCollector) RecordLockWait(string, time.Duration)             {}
