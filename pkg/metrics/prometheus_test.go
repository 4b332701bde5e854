package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/netgraph/pkg/graph"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)

	p.RecordCommit(3, time.Millisecond)
	p.RecordComponentUpdate(graph.UpdateStats{Components: 2, Added: 2, Events: 5}, time.Millisecond)
	p.RecordLockWait("update", 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.commits))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.components))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.componentOps.WithLabelValues("added")))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.events))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.lockWaits.WithLabelValues("update")))

	assert.Panics(t, func() { New(reg) }, "collectors register once per registry")
}

func TestPrometheusWiredToStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)

	store := graph.NewStore(graph.WithMetrics(p))
	tr := graph.NewTracker(store)
	defer tr.Close()

	store.Update(func(tx *graph.Tx) {
		a, b := tx.AddNode(), tx.AddNode()
		tx.AddEdge(a, b)
		tx.AddNode()
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.commits))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.components))
	// One update on attach, one after the commit.
	assert.Equal(t, 2.0, testutil.ToFloat64(p.updates))

	n, err := testutil.GatherAndCount(reg, "netgraph_store_commits_total", "netgraph_tracker_components")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
