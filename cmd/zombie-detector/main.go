package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"k8s-zombie-detector/pkg/detector"
	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/kube"
	"k8s-zombie-detector/pkg/report"
	"k8s-zombie-detector/pkg/server"
	"k8s-zombie-detector/pkg/signals"
	"k8s-zombie-detector/pkg/storage/sqlite"
	"k8s-zombie-detector/pkg/telemetry"
)

var (
	masterURL         string
	kubeconfig        string
	prometheusURL     string
	window            time.Duration
	threshold         float64
	excludeNamespaces string
	outputFormat      string
	showDetails       bool
	continuous        bool
	interval          time.Duration
	listenAddr        string
	historyDB         string
	thresholdsFile    string
	workers           int
)

func main() {
	klog.InitFlags(nil)
	flag.StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig")
	flag.StringVar(&masterURL, "master", "", "Kubernetes API server URL")
	flag.StringVar(&prometheusURL, "prometheus-url", "http://prometheus.monitoring:9090", "Prometheus server URL")
	flag.DurationVar(&window, "window", 24*time.Hour, "Observation window to analyze")
	flag.Float64Var(&threshold, "threshold", 70, "Composite score threshold for reporting")
	flag.StringVar(&excludeNamespaces, "exclude-namespaces", "kube-system,monitoring", "Comma-separated namespaces to skip")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&showDetails, "details", false, "Include rule scores and evidence in text output")
	flag.BoolVar(&continuous, "continuous", false, "Keep scanning on an interval and serve results over HTTP")
	flag.DurationVar(&interval, "interval", 5*time.Minute, "Scan interval in continuous mode")
	flag.StringVar(&listenAddr, "listen", ":8080", "HTTP listen address in continuous mode")
	flag.StringVar(&historyDB, "history-db", "", "SQLite file for scan history (empty disables)")
	flag.StringVar(&thresholdsFile, "thresholds-file", "", "YAML file overriding rule thresholds")
	flag.IntVar(&workers, "workers", 0, "Concurrent container analyses (0 = GOMAXPROCS)")
	flag.Parse()

	if outputFormat != "text" && outputFormat != "json" {
		klog.Fatalf("Invalid output format %q", outputFormat)
	}

	cfg, err := clientcmd.BuildConfigFromFlags(masterURL, kubeconfig)
	if err != nil {
		klog.Fatalf("Error building kubeconfig: %s", err.Error())
	}
	kubeClient, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		klog.Fatalf("Error building kubernetes clientset: %s", err.Error())
	}
	metricsClient, err := metricsv.NewForConfig(cfg)
	if err != nil {
		klog.Fatalf("Error building metrics clientset: %s", err.Error())
	}

	thresholds, err := heuristics.LoadThresholds(thresholdsFile)
	if err != nil {
		klog.Fatalf("Error loading thresholds: %s", err.Error())
	}
	engine := heuristics.NewEngine(thresholds, heuristics.DefaultWeights())

	client := kube.NewClient(kubeClient, metricsClient)
	collector := telemetry.NewPrometheusCollector(telemetry.DefaultConfig(prometheusURL))

	detectorConfig := detector.Config{
		Window:            window,
		ScoreThreshold:    threshold,
		ExcludeNamespaces: splitNamespaces(excludeNamespaces),
		Workers:           workers,
	}
	d := detector.New(detectorConfig, client, collector, engine)

	if continuous {
		runContinuous(d, client)
		return
	}

	r, err := d.Scan(context.Background())
	if err != nil {
		klog.Fatalf("Scan failed: %s", err.Error())
	}
	printReport(r, client)
}

func runContinuous(d *detector.Detector, client *kube.Client) {
	stopCh := signals.SetupSignalHandler()

	probe, err := telemetry.NewProbe(prometheusURL, time.Minute)
	if err != nil {
		klog.Fatalf("Error starting backend probe: %s", err.Error())
	}

	var store *sqlite.Store
	if historyDB != "" {
		store, err = sqlite.NewStore(historyDB)
		if err != nil {
			klog.Fatalf("Error opening history database: %s", err.Error())
		}
		defer store.Close()
	}

	srv := server.New(rate.NewLimiter(10, 20))
	httpServer := &http.Server{Addr: listenAddr, Handler: srv.Handler()}
	go func() {
		klog.Infof("Serving on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("HTTP server failed: %s", err.Error())
		}
	}()

	klog.Infof("Running in continuous mode, scanning every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runCycle(d, srv, store, probe, client)
	for {
		select {
		case <-ticker.C:
			runCycle(d, srv, store, probe, client)
		case <-stopCh:
			klog.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpServer.Shutdown(shutdownCtx)
			cancel()
			return
		}
	}
}

func runCycle(d *detector.Detector, srv *server.Server, store *sqlite.Store, probe *telemetry.Probe, client *kube.Client) {
	if state := probe.State(); !state.Reachable {
		klog.Warning("Metrics backend unreachable, skipping scan cycle")
		return
	}

	r, err := d.Scan(context.Background())
	if err != nil {
		klog.Errorf("Scan failed: %s", err.Error())
		return
	}
	srv.SetReport(r)
	if store != nil {
		if err := store.SaveReport(r); err != nil {
			klog.Errorf("Failed to persist scan: %s", err.Error())
		}
	}
	printReport(r, client)
	klog.Infof("Next scan in %s", interval)
}

func printReport(r detector.Report, client *kube.Client) {
	if outputFormat == "json" {
		out, err := report.JSON(r)
		if err != nil {
			klog.Fatalf("Error rendering report: %s", err.Error())
		}
		fmt.Println(out)
		return
	}

	opts := report.Options{Details: showDetails}
	if showDetails {
		opts.Usage = liveUsage(r, client)
	}
	fmt.Println(report.Text(r, opts))
}

// liveUsage enriches detailed reports with current readings; failures only
// cost the enrichment.
func liveUsage(r detector.Report, client *kube.Client) map[string]kube.Usage {
	usage := make(map[string]kube.Usage, len(r.Findings))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, f := range r.Findings {
		u, err := client.LiveUsage(ctx, f.Container)
		if err != nil {
			klog.V(4).Infof("No live usage for %s: %v", f.Container, err)
			continue
		}
		usage[f.Container.String()] = u
	}
	return usage
}

func splitNamespaces(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, ns := range strings.Split(s, ",") {
		if ns = strings.TrimSpace(ns); ns != "" {
			out = append(out, ns)
		}
	}
	return out
}
