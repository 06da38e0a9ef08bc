package telemetry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"k8s-zombie-detector/pkg/kube"
	"k8s-zombie-detector/pkg/telemetry"
)

var testRef = kube.ContainerRef{Namespace: "shop", Pod: "checkout-abc12-x9y8z", Container: "app"}

func matrix(values ...telemetry.SamplePair) telemetry.QueryResponse {
	return telemetry.QueryResponse{
		Status: "success",
		Data: telemetry.QueryData{
			ResultType: "matrix",
			Result:     []telemetry.SeriesResult{{Values: values}},
		},
	}
}

func vector(value string) telemetry.QueryResponse {
	return telemetry.QueryResponse{
		Status: "success",
		Data: telemetry.QueryData{
			ResultType: "vector",
			Result: []telemetry.SeriesResult{
				{Value: telemetry.SamplePair{float64(time.Now().Unix()), value}},
			},
		},
	}
}

func empty(resultType string) telemetry.QueryResponse {
	return telemetry.QueryResponse{
		Status: "success",
		Data:   telemetry.QueryData{ResultType: resultType},
	}
}

func TestGetSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if r.URL.Path != "/api/v1/query_range" {
			t.Errorf("series fetch hit %s", r.URL.Path)
		}
		if !strings.Contains(query, `namespace="shop"`) || !strings.Contains(query, `pod="checkout-abc12-x9y8z"`) {
			t.Errorf("query missing container selector: %s", query)
		}

		var resp telemetry.QueryResponse
		switch {
		case strings.Contains(query, "container_cpu_usage_seconds_total"):
			// Out of order on the wire; the collector must sort.
			resp = matrix(
				telemetry.SamplePair{float64(1030), "0.03"},
				telemetry.SamplePair{float64(1000), "0.01"},
				telemetry.SamplePair{float64(1015), "0.02"},
			)
		case strings.Contains(query, "container_memory_usage_bytes"):
			resp = empty("matrix")
		default:
			resp = matrix(telemetry.SamplePair{float64(1000), "120.5"})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	collector := telemetry.NewPrometheusCollector(telemetry.DefaultConfig(server.URL))
	bundle, err := collector.GetSeries(context.Background(), testRef, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bundle.CPU) != 3 {
		t.Fatalf("want 3 cpu samples, got %d", len(bundle.CPU))
	}
	for i := 1; i < len(bundle.CPU); i++ {
		if bundle.CPU[i].Timestamp.Before(bundle.CPU[i-1].Timestamp) {
			t.Fatalf("cpu samples out of order: %v", bundle.CPU)
		}
	}
	if bundle.CPU[0].Value != 0.01 || bundle.CPU[2].Value != 0.03 {
		t.Errorf("cpu values wrong after sort: %v", bundle.CPU)
	}
	if !bundle.Memory.IsEmpty() {
		t.Errorf("want empty memory series, got %v", bundle.Memory)
	}
	if len(bundle.NetworkRx) != 1 || bundle.NetworkRx[0].Value != 120.5 {
		t.Errorf("network rx series wrong: %v", bundle.NetworkRx)
	}
}

func TestGetLimits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		var resp telemetry.QueryResponse
		switch {
		case strings.Contains(query, "container_spec_cpu_quota"):
			resp = vector("50000")
		case strings.Contains(query, "container_spec_memory_limit_bytes"):
			resp = vector("536870912")
		default:
			resp = empty("vector")
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	collector := telemetry.NewPrometheusCollector(telemetry.DefaultConfig(server.URL))
	limits, err := collector.GetLimits(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.CPUCores != 0.5 {
		t.Errorf("want 0.5 cores from quota 50000, got %v", limits.CPUCores)
	}
	if limits.MemoryBytes != 536870912 {
		t.Errorf("want 512Mi limit, got %v", limits.MemoryBytes)
	}
}

func TestGetLimits_Unset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(empty("vector"))
	}))
	defer server.Close()

	collector := telemetry.NewPrometheusCollector(telemetry.DefaultConfig(server.URL))
	limits, err := collector.GetLimits(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.CPUCores != 0 || limits.MemoryBytes != 0 {
		t.Errorf("want zero limits when unset, got %+v", limits)
	}
}

func TestCollector_RetriesOnce(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(vector("100000"))
	}))
	defer server.Close()

	config := telemetry.DefaultConfig(server.URL)
	config.RetryDelay = 5 * time.Millisecond
	collector := telemetry.NewPrometheusCollector(config)

	limits, err := collector.GetLimits(context.Background(), testRef)
	if err != nil {
		t.Fatalf("want success after retry, got %v", err)
	}
	if limits.CPUCores != 1.0 {
		t.Errorf("want 1 core, got %v", limits.CPUCores)
	}
}

func TestCollector_PrometheusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(telemetry.QueryResponse{Status: "error", Error: "bad query"})
	}))
	defer server.Close()

	config := telemetry.DefaultConfig(server.URL)
	config.RetryCount = 0
	collector := telemetry.NewPrometheusCollector(config)

	if _, err := collector.GetSeries(context.Background(), testRef, time.Hour); err == nil {
		t.Fatal("want error for prometheus error status")
	}
}
