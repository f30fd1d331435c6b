package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveExtractor("timing", OutcomeOK)
	m.ObserveExtractor("timing", OutcomeOK)
	m.ObserveExtractor("timing", OutcomeInsufficient)
	m.ObserveRecommendation("habit")
	m.ObserveFeedback("positive")
	m.ObserveCandidate(OutcomeSkipped)
	m.ObserveTask(OutcomeDropped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractorRuns.WithLabelValues("timing", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractorRuns.WithLabelValues("timing", OutcomeInsufficient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recommendations.WithLabelValues("habit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Feedback.WithLabelValues("positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimilarityCandidates.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackgroundTasks.WithLabelValues(OutcomeDropped)))
}

func TestMetrics_Registry(t *testing.T) {
	m := New()
	m.ObserveSynthesis(20 * time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["stride_synthesis_duration_seconds"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtractor("timing", OutcomeOK)
		m.ObserveTask(OutcomeError)
		m.ObserveSynthesis(time.Second)
	})
}
