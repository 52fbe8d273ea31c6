package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resolution pipeline.
type Metrics struct {
	BatchesResolved prometheus.Counter

	// Pairwise comparisons that produced a nonzero score
	PairsScored prometheus.Counter

	// Subjects by routing outcome: auto_approved or human_review
	SubjectsRouted *prometheus.CounterVec

	PendingLinksCreated prometheus.Counter

	ResolveDuration prometheus.Histogram
}

// New creates a new Metrics instance with all resolution metrics registered.
func New() *Metrics {
	return &Metrics{
		BatchesResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolute_resolution_batches_total",
			Help: "Total record batches resolved",
		}),

		PairsScored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolute_resolution_pairs_scored_total",
			Help: "Total candidate pairs with a nonzero match score",
		}),

		SubjectsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resolute_resolution_subjects_routed_total",
			Help: "Subjects routed out of resolution by outcome",
		}, []string{"outcome"}),

		PendingLinksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resolute_resolution_pending_links_total",
			Help: "Review-band edges materialized as pending merge links",
		}),

		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolute_resolution_resolve_seconds",
			Help:    "Wall time of one Resolve call",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveBatch records the outcome of one Resolve call.
func (m *Metrics) ObserveBatch(pairsScored, pendingLinks int, seconds float64) {
	if m != nil {
		m.BatchesResolved.Inc()
		m.PairsScored.Add(float64(pairsScored))
		m.PendingLinksCreated.Add(float64(pendingLinks))
		m.ResolveDuration.Observe(seconds)
	}
}

// IncrementRouted records one subject leaving resolution.
func (m *Metrics) IncrementRouted(outcome string) {
	if m != nil {
		m.SubjectsRouted.WithLabelValues(outcome).Inc()
	}
}
