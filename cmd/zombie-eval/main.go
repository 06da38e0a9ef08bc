package main

import (
	"context"
	"flag"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"k8s-zombie-detector/pkg/evaluation"
	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/kube"
	"k8s-zombie-detector/pkg/telemetry"
)

var (
	masterURL     string
	kubeconfig    string
	prometheusURL string
	window        time.Duration
	threshold     float64
	scenariosFile string
	namespace     string
	outputFile    string
)

func main() {
	klog.InitFlags(nil)
	flag.StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig")
	flag.StringVar(&masterURL, "master", "", "Kubernetes API server URL")
	flag.StringVar(&prometheusURL, "prometheus-url", "http://prometheus.monitoring:9090", "Prometheus server URL")
	flag.DurationVar(&window, "window", time.Hour, "Observation window to analyze")
	flag.Float64Var(&threshold, "threshold", 70, "Score threshold for the zombie prediction")
	flag.StringVar(&scenariosFile, "scenarios", "scenarios.yaml", "Labeled scenario file")
	flag.StringVar(&namespace, "namespace", "", "Override the scenario namespace")
	flag.StringVar(&outputFile, "output", "evaluation_results.csv", "CSV output path")
	flag.Parse()

	scenario, err := evaluation.LoadScenarios(scenariosFile)
	if err != nil {
		klog.Fatalf("Error loading scenarios: %s", err.Error())
	}
	if namespace != "" {
		scenario.Namespace = namespace
	}

	cfg, err := clientcmd.BuildConfigFromFlags(masterURL, kubeconfig)
	if err != nil {
		klog.Fatalf("Error building kubeconfig: %s", err.Error())
	}
	kubeClient, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		klog.Fatalf("Error building kubernetes clientset: %s", err.Error())
	}

	client := kube.NewClient(kubeClient, nil)
	collector := telemetry.NewPrometheusCollector(telemetry.DefaultConfig(prometheusURL))
	engine := heuristics.NewDefaultEngine()

	evaluator := evaluation.NewEvaluator(client, collector, engine, window, threshold)

	klog.Info("Evaluating detector performance")
	result, err := evaluator.Run(context.Background(), scenario)
	if err != nil {
		klog.Fatalf("Evaluation failed: %s", err.Error())
	}

	m := result.Metrics
	klog.Info("Evaluation metrics:")
	klog.Infof("  Accuracy: %.4f", m.Accuracy)
	klog.Infof("  Precision: %.4f", m.Precision)
	klog.Infof("  Recall: %.4f", m.Recall)
	klog.Infof("  F1 Score: %.4f", m.F1)
	klog.Infof("  Confusion: tp=%d fp=%d tn=%d fn=%d",
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives)

	if err := evaluation.WriteCSV(outputFile, result.Rows); err != nil {
		klog.Fatalf("Error writing results: %s", err.Error())
	}
	klog.Infof("Wrote %d rows to %s", len(result.Rows), outputFile)
}
