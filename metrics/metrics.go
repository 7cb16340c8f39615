// Package metrics defines the Prometheus collectors for planning sessions,
// LLM calls and the HTTP gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nomadplan"

// Plan outcome labels.
const (
	PlanRemote     = "remote"
	PlanFallback   = "fallback"
	PlanSuperseded = "superseded"
)

// Chat outcome labels.
const (
	ChatReplied = "replied"
	ChatPatched = "patched"
	ChatFailed  = "failed"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	planRuns     *prometheus.CounterVec
	chatMessages *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		planRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_runs_total",
			Help:      "Plan runs by how the intent was obtained.",
		}, []string{"outcome"}),
		chatMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages by outcome.",
		}, []string{"outcome"}),
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM completions by capability, endpoint and outcome.",
		}, []string{"capability", "endpoint", "outcome"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM completion latency including retries and fallbacks.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"capability"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Gateway requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RecordPlan counts a finished plan run.
func (m *Metrics) RecordPlan(outcome string) {
	if m == nil {
		return
	}
	m.planRuns.WithLabelValues(outcome).Inc()
}

// RecordChat counts a finished chat exchange.
func (m *Metrics) RecordChat(outcome string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(outcome).Inc()
}

// ObserveLLMCall implements llm.CallObserver.
func (m *Metrics) ObserveLLMCall(capability, endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(capability, endpoint, outcome).Inc()
	m.llmLatency.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// ObserveHTTP records one gateway request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}
