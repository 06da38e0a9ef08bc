// Package telemetry acquires container resource series and limits from a
// Prometheus backend (cAdvisor metrics scraped by kubelet).
package telemetry

import (
	"context"
	"time"

	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/kube"
)

// Collector supplies the time series bundle and resource limits for one
// container over an observation window.
type Collector interface {
	GetSeries(ctx context.Context, ref kube.ContainerRef, window time.Duration) (heuristics.Bundle, error)
	GetLimits(ctx context.Context, ref kube.ContainerRef) (heuristics.ResourceLimits, error)
}

// Config holds the Prometheus collector configuration.
type Config struct {
	URL            string
	Step           time.Duration
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultConfig returns the collector defaults for the given backend URL.
func DefaultConfig(prometheusURL string) Config {
	return Config{
		URL:            prometheusURL,
		Step:           15 * time.Second,
		Timeout:        30 * time.Second,
		MaxConcurrency: 10,
		RetryCount:     1,
		RetryDelay:     200 * time.Millisecond,
	}
}
