package evaluation

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"k8s-zombie-detector/pkg/detector"
	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/telemetry"
)

// Row is the evaluated outcome for one scenario container.
type Row struct {
	Deployment string
	Pod        string
	Container  string
	TrueClass  string
	PredClass  string
	Score      float64
	Correct    bool
}

// Metrics is the binary classification quality at the score threshold.
type Metrics struct {
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Result bundles the per-container rows with the aggregate metrics.
type Result struct {
	Rows    []Row
	Metrics Metrics
}

// Evaluator scores every labeled container in the scenario namespace and
// compares predictions against the ground truth.
type Evaluator struct {
	lister    detector.Lister
	collector telemetry.Collector
	engine    *heuristics.Engine
	window    time.Duration
	threshold float64
}

// NewEvaluator builds an evaluator that predicts zombie at score >= threshold.
func NewEvaluator(lister detector.Lister, collector telemetry.Collector, engine *heuristics.Engine, window time.Duration, threshold float64) *Evaluator {
	return &Evaluator{
		lister:    lister,
		collector: collector,
		engine:    engine,
		window:    window,
		threshold: threshold,
	}
}

// Run evaluates the scenario and returns rows in enumeration order.
// Containers whose deployment is not in the ground truth are ignored.
func (e *Evaluator) Run(ctx context.Context, scenario ScenarioFile) (Result, error) {
	refs, err := e.lister.ListContainers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list containers: %w", err)
	}
	truth := scenario.GroundTruth()

	var rows []Row
	for _, ref := range refs {
		if ref.Namespace != scenario.Namespace {
			continue
		}
		deployment := DeploymentName(ref.Pod)
		expected, ok := truth[deployment]
		if !ok {
			klog.V(4).Infof("Pod %s/%s not in ground truth, skipping", ref.Namespace, ref.Pod)
			continue
		}

		bundle, err := e.collector.GetSeries(ctx, ref, e.window)
		if err != nil {
			klog.Warningf("Series fetch failed for %s, scoring empty bundle: %v", ref, err)
			bundle = heuristics.Bundle{}
		}
		limits, err := e.collector.GetLimits(ctx, ref)
		if err != nil {
			klog.Warningf("Limits fetch failed for %s, treating limits as unknown: %v", ref, err)
			limits = heuristics.ResourceLimits{}
		}
		verdict := e.engine.Analyze(bundle, limits)

		predicted := "normal"
		if verdict.Score >= e.threshold {
			predicted = "zombie"
		}
		rows = append(rows, Row{
			Deployment: deployment,
			Pod:        ref.Pod,
			Container:  ref.Container,
			TrueClass:  expected,
			PredClass:  predicted,
			Score:      verdict.Score,
			Correct:    predicted == expected,
		})
	}

	return Result{Rows: rows, Metrics: computeMetrics(rows)}, nil
}

// computeMetrics builds the confusion matrix treating "zombie" as positive.
// Ratios with a zero denominator stay 0.
func computeMetrics(rows []Row) Metrics {
	var m Metrics
	for _, row := range rows {
		switch {
		case row.TrueClass == "zombie" && row.PredClass == "zombie":
			m.TruePositives++
		case row.TrueClass == "normal" && row.PredClass == "zombie":
			m.FalsePositives++
		case row.TrueClass == "normal" && row.PredClass == "normal":
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}

	total := len(rows)
	if total > 0 {
		m.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}
	if m.TruePositives+m.FalsePositives > 0 {
		m.Precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		m.Recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
