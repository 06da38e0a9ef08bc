// Package server exposes the continuous-mode HTTP surface: self metrics,
// health and the latest scan report.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"k8s-zombie-detector/pkg/detector"
)

// Server holds the latest report and serves it read-only.
type Server struct {
	limiter *rate.Limiter

	mu     sync.RWMutex
	latest *detector.Report
}

// New creates a server guarded by the given request rate limiter.
func New(limiter *rate.Limiter) *Server {
	return &Server{limiter: limiter}
}

// SetReport publishes the report of a completed scan cycle.
func (s *Server) SetReport(r detector.Report) {
	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()
}

// Handler returns the HTTP mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/findings", s.handleFindings)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		klog.Warning("Findings rate limit exceeded")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		http.Error(w, "no scan completed yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		klog.Errorf("Failed to encode findings response: %v", err)
	}
}
