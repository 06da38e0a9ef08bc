package heuristics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"k8s-zombie-detector/pkg/constants"
)

var (
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zombie_detector_analyses_total",
			Help: "Total container analyses by resulting classification",
		},
		[]string{"classification"},
	)

	analysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zombie_detector_analysis_duration_seconds",
			Help:    "Time spent scoring a single container",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	ruleScores = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zombie_detector_rule_score",
			Help:    "Sub-score distribution per heuristic rule",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"rule"},
	)
)

func recordAnalysis(c constants.Classification, outcomes map[string]Outcome, elapsed time.Duration) {
	analysesTotal.WithLabelValues(string(c)).Inc()
	analysisLatency.Observe(elapsed.Seconds())
	for rule, outcome := range outcomes {
		ruleScores.WithLabelValues(rule).Observe(outcome.Score)
	}
}
