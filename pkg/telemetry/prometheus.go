package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"k8s-zombie-detector/pkg/heuristics"
	"k8s-zombie-detector/pkg/kube"
)

// cpuQuotaPeriod converts container_spec_cpu_quota (microseconds per 100ms
// period) into cores.
const cpuQuotaPeriod = 100000.0

// PrometheusCollector reads cAdvisor series through the Prometheus HTTP API.
// Concurrency across queries is bounded by a weighted semaphore; each query is
// retried once on failure.
type PrometheusCollector struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewPrometheusCollector creates a collector for the configured backend.
func NewPrometheusCollector(config Config) *PrometheusCollector {
	return &PrometheusCollector{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		sem:    semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// GetSeries fetches the container's CPU, memory and network series over the
// window ending now. A metric with no data points comes back as an empty
// Series, not an error.
func (c *PrometheusCollector) GetSeries(ctx context.Context, ref kube.ContainerRef, window time.Duration) (heuristics.Bundle, error) {
	end := time.Now()
	start := end.Add(-window)

	queries := map[string]string{
		"cpu": fmt.Sprintf(
			`rate(container_cpu_usage_seconds_total{namespace=%q, pod=%q, container=%q}[5m])`,
			ref.Namespace, ref.Pod, ref.Container),
		"memory": fmt.Sprintf(
			`container_memory_usage_bytes{namespace=%q, pod=%q, container=%q}`,
			ref.Namespace, ref.Pod, ref.Container),
		"network_rx": fmt.Sprintf(
			`rate(container_network_receive_bytes_total{namespace=%q, pod=%q}[5m])`,
			ref.Namespace, ref.Pod),
		"network_tx": fmt.Sprintf(
			`rate(container_network_transmit_bytes_total{namespace=%q, pod=%q}[5m])`,
			ref.Namespace, ref.Pod),
	}

	series := make(map[string]heuristics.Series, len(queries))
	for name, query := range queries {
		s, err := c.rangeQuery(ctx, query, start, end)
		if err != nil {
			return heuristics.Bundle{}, fmt.Errorf("query %s for %s: %w", name, ref, err)
		}
		series[name] = s
	}

	return heuristics.Bundle{
		CPU:       series["cpu"],
		Memory:    series["memory"],
		NetworkRx: series["network_rx"],
		NetworkTx: series["network_tx"],
	}, nil
}

// GetLimits fetches the container's configured CPU quota and memory limit.
// Missing limits stay zero, which the rules treat as unknown.
func (c *PrometheusCollector) GetLimits(ctx context.Context, ref kube.ContainerRef) (heuristics.ResourceLimits, error) {
	var limits heuristics.ResourceLimits

	quota, found, err := c.instantQuery(ctx, fmt.Sprintf(
		`container_spec_cpu_quota{namespace=%q, pod=%q, container=%q}`,
		ref.Namespace, ref.Pod, ref.Container))
	if err != nil {
		return limits, fmt.Errorf("query cpu quota for %s: %w", ref, err)
	}
	if found && quota > 0 {
		limits.CPUCores = quota / cpuQuotaPeriod
	}

	memLimit, found, err := c.instantQuery(ctx, fmt.Sprintf(
		`container_spec_memory_limit_bytes{namespace=%q, pod=%q, container=%q}`,
		ref.Namespace, ref.Pod, ref.Container))
	if err != nil {
		return limits, fmt.Errorf("query memory limit for %s: %w", ref, err)
	}
	if found && memLimit > 0 {
		limits.MemoryBytes = memLimit
	}

	return limits, nil
}

// rangeQuery runs a range query and flattens the first result stream into a
// time-ordered Series.
func (c *PrometheusCollector) rangeQuery(ctx context.Context, query string, start, end time.Time) (heuristics.Series, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.Itoa(int(c.config.Step.Seconds())))

	resp, err := c.execute(ctx, "/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data.Result) == 0 {
		return nil, nil
	}

	pairs := resp.Data.Result[0].Values
	series := make(heuristics.Series, 0, len(pairs))
	for _, p := range pairs {
		series = append(series, heuristics.Sample{Timestamp: p.Timestamp(), Value: p.Value()})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series, nil
}

// instantQuery runs an instant query and returns the first result value.
func (c *PrometheusCollector) instantQuery(ctx context.Context, query string) (float64, bool, error) {
	params := url.Values{}
	params.Set("query", query)

	resp, err := c.execute(ctx, "/api/v1/query", params)
	if err != nil {
		return 0, false, err
	}
	if len(resp.Data.Result) == 0 {
		return 0, false, nil
	}
	return resp.Data.Result[0].Value.Value(), true, nil
}

// execute performs one API call under the concurrency limit, retrying per the
// configured retry count.
func (c *PrometheusCollector) execute(ctx context.Context, path string, params url.Values) (*QueryResponse, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire: %w", err)
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := c.doRequest(ctx, path, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("query failed after %d attempts: %w", c.config.RetryCount+1, lastErr)
}

func (c *PrometheusCollector) doRequest(ctx context.Context, path string, params url.Values) (*QueryResponse, error) {
	fullURL := strings.TrimSuffix(c.config.URL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var result QueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("prometheus error: %s", result.Error)
	}
	return &result, nil
}
