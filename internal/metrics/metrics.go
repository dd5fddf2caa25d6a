// Package metrics defines the Prometheus collectors for the memory engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lattice"

// Metrics groups the engine's collectors.
type Metrics struct {
	TurnsPersisted    *prometheus.CounterVec
	Intents           *prometheus.CounterVec
	RetrievalHops     prometheus.Histogram
	RetrievedNodes    prometheus.Histogram
	Fallbacks         *prometheus.CounterVec
	ContextTokens     prometheus.Histogram
	BlocksDropped     prometheus.Counter
	CompletionSeconds prometheus.Histogram
	CompletionErrors  prometheus.Counter
	SynthesisJobs     *prometheus.CounterVec
	MaintenanceRuns   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		TurnsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "turns_persisted_total",
			Help: "Turns written to the durable store, by role.",
		}, []string{"role"}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "intents_total",
			Help: "Classified message intents, by intent and strategy.",
		}, []string{"intent", "strategy"}),
		RetrievalHops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "retrieval_hops",
			Help:    "Hop count of each retrieval plan.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
		RetrievedNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "retrieved_nodes",
			Help:    "Nodes returned by the crawler per message.",
			Buckets: prometheus.LinearBuckets(0, 4, 8),
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallbacks_total",
			Help: "Degraded paths taken because a collaborator was unavailable, by component.",
		}, []string{"component"}),
		ContextTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "context_tokens",
			Help:    "Tokens in each hydrated context.",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		}),
		BlocksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "context_blocks_dropped_total",
			Help: "Candidate blocks left out of hydrated contexts for budget.",
		}),
		CompletionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "completion_seconds",
			Help:    "Latency of completion calls.",
			Buckets: prometheus.DefBuckets,
		}),
		CompletionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "completion_errors_total",
			Help: "Failed completion calls.",
		}),
		SynthesisJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "synthesis_jobs_total",
			Help: "Background synthesis jobs, by outcome.",
		}, []string{"outcome"}),
		MaintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "maintenance_runs_total",
			Help: "Scheduled maintenance job runs, by job and outcome.",
		}, []string{"job", "outcome"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.TurnsPersisted, m.Intents, m.RetrievalHops, m.RetrievedNodes, m.Fallbacks,
		m.ContextTokens, m.BlocksDropped, m.CompletionSeconds, m.CompletionErrors,
		m.SynthesisJobs, m.MaintenanceRuns,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnPersisted(role string) {
	if m != nil {
		m.TurnsPersisted.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) Intent(intent, strategy string) {
	if m != nil {
		m.Intents.WithLabelValues(intent, strategy).Inc()
	}
}

func (m *Metrics) Retrieval(hops, nodes int) {
	if m != nil {
		m.RetrievalHops.Observe(float64(hops))
		m.RetrievedNodes.Observe(float64(nodes))
	}
}

// Fallback records a degraded path in component.
func (m *Metrics) Fallback(component string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(component).Inc()
	}
}

func (m *Metrics) Hydrated(tokens, dropped int) {
	if m != nil {
		m.ContextTokens.Observe(float64(tokens))
		m.BlocksDropped.Add(float64(dropped))
	}
}

func (m *Metrics) Completion(seconds float64, err error) {
	if m == nil {
		return
	}
	m.CompletionSeconds.Observe(seconds)
	if err != nil {
		m.CompletionErrors.Inc()
	}
}

// Synthesis records a background job outcome: ok, dropped or failed.
func (m *Metrics) Synthesis(outcome string) {
	if m != nil {
		m.SynthesisJobs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Maintenance(job string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.MaintenanceRuns.WithLabelValues(job, outcome).Inc()
}
