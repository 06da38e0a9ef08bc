// Package detector orchestrates a scan: enumerate containers, acquire their
// telemetry and score each one with the heuristic engine.
package detector

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"k8s-zombie-detector/pkg/constants"
	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/kube"
	"k8s-zombie-detector/pkg/telemetry"
)

// Lister enumerates scannable containers.
type Lister interface {
	ListContainers(ctx context.Context) ([]kube.ContainerRef, error)
	IsRecentlyCreated(ctx context.Context, namespace, pod string) bool
}

// Config is the per-detector scan configuration, read-only during a run.
type Config struct {
	Window            time.Duration
	ScoreThreshold    float64
	ExcludeNamespaces []string
	Workers           int
}

// DefaultConfig returns the documented scan defaults.
func DefaultConfig() Config {
	return Config{
		Window:            24 * time.Hour,
		ScoreThreshold:    70,
		ExcludeNamespaces: []string{constants.KubeSystemNamespace, constants.MonitoringNamespace},
		Workers:           runtime.GOMAXPROCS(0),
	}
}

// Finding is one container whose composite score cleared the threshold.
type Finding struct {
	Container kube.ContainerRef  `json:"container"`
	Verdict   heuristics.Verdict `json:"verdict"`
}

// Report is the outcome of one full scan.
type Report struct {
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	ContainersScanned int           `json:"containers_scanned"`
	Findings          []Finding     `json:"findings"`
}

// Detector wires the enumeration and telemetry collaborators to the engine.
type Detector struct {
	config    Config
	lister    Lister
	collector telemetry.Collector
	engine    *heuristics.Engine
}

// New builds a detector. Workers below 1 falls back to GOMAXPROCS.
func New(config Config, lister Lister, collector telemetry.Collector, engine *heuristics.Engine) *Detector {
	if config.Workers < 1 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Detector{config: config, lister: lister, collector: collector, engine: engine}
}

// Scan analyzes every eligible container and returns the findings whose score
// cleared the threshold, in enumeration order. Telemetry failures for one
// container degrade that container's input instead of aborting the scan.
func (d *Detector) Scan(ctx context.Context) (Report, error) {
	started := time.Now()

	refs, err := d.lister.ListContainers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list containers: %w", err)
	}

	eligible := make([]kube.ContainerRef, 0, len(refs))
	for _, ref := range refs {
		if d.isExcludedNamespace(ref.Namespace) {
			continue
		}
		if d.lister.IsRecentlyCreated(ctx, ref.Namespace, ref.Pod) {
			klog.V(4).Infof("Skipping recently created pod %s/%s", ref.Namespace, ref.Pod)
			continue
		}
		eligible = append(eligible, ref)
	}

	klog.Infof("Scanning %d containers (%d enumerated)", len(eligible), len(refs))

	verdicts := make([]heuristics.Verdict, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Workers)
	for i, ref := range eligible {
		g.Go(func() error {
			verdicts[i] = d.analyzeOne(gctx, ref)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("scan aborted: %w", err)
	}

	var findings []Finding
	for i, ref := range eligible {
		v := verdicts[i]
		switch {
		case v.Score >= d.config.ScoreThreshold:
			findings = append(findings, Finding{Container: ref, Verdict: v})
		case v.Score >= constants.PotentialZombieScore:
			klog.Infof("Potential zombie below threshold: %s score=%.1f", ref, v.Score)
		}
	}

	report := Report{
		StartedAt:         started,
		Duration:          time.Since(started),
		ContainersScanned: len(eligible),
		Findings:          findings,
	}
	recordScan(report)
	return report, nil
}

// analyzeOne fetches telemetry and scores one container. A failed series
// fetch scores an empty bundle; a failed limits fetch scores unknown limits.
func (d *Detector) analyzeOne(ctx context.Context, ref kube.ContainerRef) heuristics.Verdict {
	bundle, err := d.collector.GetSeries(ctx, ref, d.config.Window)
	if err != nil {
		klog.Warningf("Series fetch failed for %s, scoring empty bundle: %v", ref, err)
		bundle = heuristics.Bundle{}
	}
	limits, err := d.collector.GetLimits(ctx, ref)
	if err != nil {
		klog.Warningf("Limits fetch failed for %s, treating limits as unknown: %v", ref, err)
		limits = heuristics.ResourceLimits{}
	}
	return d.engine.Analyze(bundle, limits)
}

func (d *Detector) isExcludedNamespace(namespace string) bool {
	for _, ns := range d.config.ExcludeNamespaces {
		if ns == namespace {
			return true
		}
	}
	return false
}
