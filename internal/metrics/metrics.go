package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prioritizer_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"status"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prioritizer_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	ExcludedScores = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prioritizer_excluded_scores_total",
			Help: "Scores excluded for missing or out-of-filter measurements",
		},
	)

	ConsistencyRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prioritizer_consistency_ratio",
			Help:    "Consistency ratio of derived pairwise rating matrices",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1},
		},
	)

	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prioritizer_sink_errors_total",
			Help: "Result sink failures",
		},
		[]string{"sink"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(RunDuration)
		prometheus.MustRegister(RunsTotal)
		prometheus.MustRegister(ExcludedScores)
		prometheus.MustRegister(ConsistencyRatio)
		prometheus.MustRegister(SinkErrors)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
