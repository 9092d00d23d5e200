package metrics

import (
	"testing"
	"time"

	"github.com/poiesic/docroute/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordSubmission(ResultSubmitted)
	m.RecordSubmission(ResultSubmitted)
	m.RecordSubmission(ResultDuplicate)
	m.RecordCompletion(ResultProcessed, 150*time.Millisecond)
	m.RecordDecision(core.DecisionAutoAccept, 0.9, true)
	m.RecordDecision(core.DecisionNeedsReview, 0, false)
	m.RecordArtifactFetch()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(ResultSubmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(ResultDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues(ResultProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues(string(core.DecisionAutoAccept))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues(string(core.DecisionNeedsReview))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactFetches))

	// Only the decision with a defined confidence is observed
	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, family := range families {
		if family.GetName() == "docroute_aggregate_confidence" {
			samples = family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(1), samples)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSubmission(ResultFailed)
		m.RecordCompletion(ResultFailed, time.Second)
		m.RecordDecision(core.DecisionAutoAccept, 1, true)
		m.RecordArtifactFetch()
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors; no duplicate registration panic
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
		New(nil)
	})
}
