package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"k8s.io/klog/v2"
)

// BackendState is the cached reachability of the metrics backend host.
type BackendState struct {
	Reachable bool
	RTT       time.Duration
	Timestamp time.Time
}

// Probe tracks whether the Prometheus backend host answers ICMP. Continuous
// mode consults it before each cycle so an unreachable backend skips the scan
// instead of producing a report full of degraded findings.
type Probe struct {
	host     string
	cache    *BackendState
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
}

// NewProbe builds a probe for the host of the given backend URL, performs one
// initial probe and starts a background refresh loop.
func NewProbe(backendURL string, ttl time.Duration) (*Probe, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("backend url %q has no host", backendURL)
	}

	p := &Probe{
		host:     host,
		cacheTTL: ttl,
		cache: &BackendState{
			Reachable: false,
			Timestamp: time.Now(),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = p.refresh(ctx)
	cancel()

	go p.probeLoop()
	return p, nil
}

func (p *Probe) probeLoop() {
	ticker := time.NewTicker(p.cacheTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.refresh(ctx)
		cancel()
	}
}

// refresh pings the backend host and updates the cache.
func (p *Probe) refresh(ctx context.Context) error {
	pinger, err := ping.NewPinger(p.host)
	if err != nil {
		klog.Warningf("NewPinger failed for %s: %v", p.host, err)
		p.store(false, 0)
		return err
	}
	// Unprivileged mode falls back to UDP on most platforms; raw ICMP needs
	// CAP_NET_RAW.
	pinger.SetPrivileged(false)
	pinger.Count = 3
	pinger.Timeout = 3 * time.Second
	pinger.Interval = 300 * time.Millisecond

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		close(done)
		klog.Warningf("Ping run failed for %s: %v", p.host, err)
		p.store(false, 0)
		return err
	}
	close(done)

	stats := pinger.Statistics()
	p.store(stats.PacketsRecv > 0, stats.AvgRtt)
	return nil
}

func (p *Probe) store(reachable bool, rtt time.Duration) {
	p.cacheMu.Lock()
	p.cache = &BackendState{Reachable: reachable, RTT: rtt, Timestamp: time.Now()}
	p.cacheMu.Unlock()
}

// State returns the cached backend state. A stale cache reports the backend
// as unreachable so callers err on the side of skipping a cycle.
func (p *Probe) State() BackendState {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	if time.Since(p.cache.Timestamp) > p.cacheTTL {
		return BackendState{Reachable: false, Timestamp: p.cache.Timestamp}
	}
	return *p.cache
}
