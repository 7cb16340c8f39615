package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordPlan(PlanRemote)
	m.RecordPlan(PlanFallback)
	m.RecordPlan(PlanFallback)
	m.RecordChat(ChatPatched)
	m.ObserveLLMCall("chat", "gpt-4o-mini", "success", 1500*time.Millisecond)
	m.ObserveHTTP("/api/chat", "POST", 200, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.planRuns.WithLabelValues(PlanRemote)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.planRuns.WithLabelValues(PlanFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatMessages.WithLabelValues(ChatPatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("chat", "gpt-4o-mini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/chat", "POST", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "nomadplan_llm_call_duration_seconds")
	assert.Contains(t, names, "nomadplan_http_request_duration_seconds")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPlan(PlanRemote)
		m.RecordChat(ChatFailed)
		m.ObserveLLMCall("intent", "x", "error", time.Second)
		m.ObserveHTTP("/health", "GET", 200, time.Millisecond)
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
