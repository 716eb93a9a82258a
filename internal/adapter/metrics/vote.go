package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoteMetrics holds Prometheus metrics for the vote pipeline.
type VoteMetrics struct {
	VotesProcessed     *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	VersionConflicts   prometheus.Counter
	ScoreCache         *prometheus.CounterVec
}

// NewVoteMetrics creates and registers vote pipeline metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_processed_total",
			Help:      "Total number of vote requests, by result (added, switched, removed, or an error class).",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "votes_processing_duration_seconds",
			Help:      "Duration of vote processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		VersionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_version_conflicts_total",
			Help:      "Total optimistic concurrency conflicts while saving a ledger.",
		}),
		ScoreCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score_cache",
			Name:      "lookups_total",
			Help:      "Score cache lookups, by result (hit, miss, error).",
		}, []string{"result"}),
	}

	reg.MustRegister(m.VotesProcessed, m.ProcessingDuration, m.VersionConflicts, m.ScoreCache)
	return m
}
