// Package metrics holds the Prometheus collectors of the grounding engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeInsufficient = "insufficient"
	OutcomeFailedSafe   = "failed_safe"
)

// Generation attempt results
const (
	AttemptOK             = "ok"
	AttemptFormatError    = "format_error"
	AttemptTransportError = "transport_error"
)

type Metrics struct {
	Evaluations        *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	ChunksIngested     prometheus.Counter
	RetrievalSeconds   prometheus.Histogram
}

var (
	defaultOnce     sync.Once
	defaultInstance *Metrics
)

// Default returns collectors registered on the global Prometheus registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInstance = New(prometheus.DefaultRegisterer)
	})
	return defaultInstance
}

// New registers a fresh set of collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "volleyref_evaluations_total",
			Help: "Total number of ruling evaluations by outcome",
		}, []string{"outcome"}),
		GenerationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "volleyref_generation_attempts_total",
			Help: "Total number of structured generation attempts by task and result",
		}, []string{"task", "result"}),
		ChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "volleyref_chunks_ingested_total",
			Help: "Total number of rule chunks embedded and stored",
		}),
		RetrievalSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "volleyref_retrieval_seconds",
			Help:    "Latency of rule retrieval including query embedding",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordEvaluation(outcome string) {
	if m == nil || m.Evaluations == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordAttempt(task, result string) {
	if m == nil || m.GenerationAttempts == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(task, result).Inc()
}

func (m *Metrics) RecordIngested(n int) {
	if m == nil || m.ChunksIngested == nil {
		return
	}
	m.ChunksIngested.Add(float64(n))
}

func (m *Metrics) ObserveRetrieval(start time.Time) {
	if m == nil || m.RetrievalSeconds == nil {
		return
	}
	m.RetrievalSeconds.Observe(time.Since(start).Seconds())
}
