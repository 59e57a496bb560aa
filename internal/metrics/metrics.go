// Package metrics defines the Prometheus instruments for scoring traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score sources.
const (
	SourceAPI     = "api"
	SourceRescore = "rescore"
	SourceReport  = "report"
)

type Metrics struct {
	ScoresComputed  *prometheus.CounterVec
	ScoreValue      prometheus.Histogram
	RescoreRuns     prometheus.Counter
	RescoreUpdated  prometheus.Counter
	RescoreFailures prometheus.Counter
	FavoriteActions *prometheus.CounterVec
}

// New registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScoresComputed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ideality",
			Name:      "scores_computed_total",
			Help:      "Ideality scores computed, by source.",
		}, []string{"source"}),
		ScoreValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ideality",
			Name:      "score",
			Help:      "Distribution of computed ideality scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		RescoreRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ideality",
			Name:      "rescore_runs_total",
			Help:      "Rescore batches executed.",
		}),
		RescoreUpdated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ideality",
			Name:      "rescore_updated_total",
			Help:      "Stored scores rewritten by the rescore worker.",
		}),
		RescoreFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ideality",
			Name:      "rescore_failures_total",
			Help:      "Stored scores the rescore worker failed to persist.",
		}),
		FavoriteActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ideality",
			Name:      "favorite_actions_total",
			Help:      "Favorite add/remove actions.",
		}, []string{"action"}),
	}
}

// ObserveScore records one computed score.
func (m *Metrics) ObserveScore(source string, score int) {
	if m == nil {
		return
	}
	m.ScoresComputed.WithLabelValues(source).Inc()
	m.ScoreValue.Observe(float64(score))
}
