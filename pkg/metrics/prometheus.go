// Package metrics exports graph store and component tracker measurements to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/orneryd/netgraph/pkg/graph"
)

const namespace = "netgraph"

// Prometheus implements graph.MetricsCollector.
//
// Pass it to graph.WithMetrics so the store and every tracker attached to it
// report through the same collectors.
type Prometheus struct {
	commits        prometheus.Counter
	commitChanges  prometheus.Histogram
	commitDuration prometheus.Histogram

	updates        prometheus.Counter
	updateDuration prometheus.Histogram
	components     prometheus.Gauge
	componentOps   *prometheus.CounterVec
	events         prometheus.Counter

	lockWaits    *prometheus.CounterVec
	lockWaitTime *prometheus.HistogramVec
}

var _ graph.MetricsCollector = (*Prometheus)(nil)

// New registers the netgraph collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Committed outermost transactions",
		}),
		commitChanges: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_changes",
			Help:      "Structural changes per committed transaction",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		commitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commit_duration_seconds",
			Help:      "Time spent inside outermost transactions",
			Buckets:   prometheus.DefBuckets,
		}),

		updates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "updates_total",
			Help:      "Incremental component updates",
		}),
		updateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "update_duration_seconds",
			Help:      "Time spent recomputing components after a commit",
			Buckets:   prometheus.DefBuckets,
		}),
		components: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "components",
			Help:      "Live components after the last update",
		}),
		componentOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "component_changes_total",
			Help:      "Component lifecycle changes by kind",
		}, []string{"kind"}),
		events: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "events_total",
			Help:      "Component events delivered to subscribers",
		}),

		lockWaits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "lock_waits_total",
			Help:      "Tracker lock acquisitions that had to block",
		}, []string{"op"}),
		lockWaitTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "lock_wait_seconds",
			Help:      "Time spent blocked on the tracker lock",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"op"}),
	}
}

// RecordCommit records one outermost transaction.
func (p *Prometheus) RecordCommit(changes int, duration time.Duration) {
	p.commits.Inc()
	p.commitChanges.Observe(float64(changes))
	p.commitDuration.Observe(duration.Seconds())
}

// RecordComponentUpdate records one tracker update.
func (p *Prometheus) RecordComponentUpdate(stats graph.UpdateStats, duration time.Duration) {
	p.updates.Inc()
	p.updateDuration.Observe(duration.Seconds())
	p.components.Set(float64(stats.Components))
	p.componentOps.WithLabelValues("added").Add(float64(stats.Added))
	p.componentOps.WithLabelValues("removed").Add(float64(stats.Removed))
	p.componentOps.WithLabelValues("merged").Add(float64(stats.Merged))
	p.componentOps.WithLabelValues("split").Add(float64(stats.Split))
	p.events.Add(float64(stats.Events))
}

// RecordLockWait records a blocked lock acquisition.
func (p *Prometheus) RecordLockWait(op string, waited time.Duration) {
	p.lockWaits.WithLabelValues(op).Inc()
	p.lockWaitTime.WithLabelValues(op).Observe(waited.Seconds())
}
