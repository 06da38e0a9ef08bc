package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zombie_detector_scans_total",
			Help: "Completed full scans",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zombie_detector_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	containersScanned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zombie_detector_containers_scanned",
			Help: "Containers analyzed in the most recent scan",
		},
	)

	findingsLast = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zombie_detector_findings",
			Help: "Findings above threshold in the most recent scan",
		},
	)
)

func recordScan(r Report) {
	scansTotal.Inc()
	scanDuration.Observe(r.Duration.Seconds())
	containersScanned.Set(float64(r.ContainersScanned))
	findingsLast.Set(float64(len(r.Findings)))
}
