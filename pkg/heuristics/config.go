package heuristics

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"k8s-zombie-detector/pkg/util"
)

// Rule names, also the keys of the weight table and the per-rule verdict map.
const (
	RuleSustainedLowCPU   = "sustained_low_cpu"
	RuleMemoryLeak        = "memory_leak"
	RuleStuckProcess      = "stuck_process"
	RuleNetworkTimeout    = "network_timeout"
	RuleResourceImbalance = "resource_imbalance"
)

// ruleOrder fixes the evaluation and aggregation order of the rules.
var ruleOrder = []string{
	RuleSustainedLowCPU,
	RuleMemoryLeak,
	RuleStuckProcess,
	RuleNetworkTimeout,
	RuleResourceImbalance,
}

// weightSumEpsilon bounds the acceptable drift of the weight sum from 1.0.
const weightSumEpsilon = 1e-9

// Thresholds holds every tunable constant the rule evaluators consult.
// Percentages refer to CPU utilization where the sampled values are core
// fractions (5.0 means samples below 0.05).
type Thresholds struct {
	LowCPUPercent                 float64 `yaml:"low_cpu_percent"`
	LowCPUDurationMinutes         float64 `yaml:"low_cpu_duration_minutes"`
	MemoryIncreasePercent         float64 `yaml:"memory_increase_percent"`
	MemoryIncreaseDurationHours   float64 `yaml:"memory_increase_duration_hours"`
	CPUSpikePercent               float64 `yaml:"cpu_spike_percent"`
	CPUSpikeDurationSeconds       float64 `yaml:"cpu_spike_duration_seconds"`
	PostSpikeLowCPUPercent        float64 `yaml:"post_spike_low_cpu_percent"`
	PostSpikeDurationMinutes      float64 `yaml:"post_spike_duration_minutes"`
	SpikePatternCount             int     `yaml:"spike_pattern_count"`
	NetworkLowTransferKB          float64 `yaml:"network_low_transfer_kb"`
	NetworkAttemptIntervalMinutes float64 `yaml:"network_attempt_interval_minutes"`
	MemoryMinAllocationMB         float64 `yaml:"memory_min_allocation_mb"`
	MemoryUsageRatioPercent       float64 `yaml:"memory_usage_ratio_percent"`
	VeryLowCPUPercent             float64 `yaml:"very_low_cpu_percent"`
	VeryLowCPUDurationHours       float64 `yaml:"very_low_cpu_duration_hours"`
}

// DefaultThresholds returns the documented default threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowCPUPercent:                 5.0,
		LowCPUDurationMinutes:         30,
		MemoryIncreasePercent:         5.0,
		MemoryIncreaseDurationHours:   1,
		CPUSpikePercent:               50.0,
		CPUSpikeDurationSeconds:       30,
		PostSpikeLowCPUPercent:        2.0,
		PostSpikeDurationMinutes:      15,
		SpikePatternCount:             3,
		NetworkLowTransferKB:          1.0,
		NetworkAttemptIntervalMinutes: 5,
		MemoryMinAllocationMB:         500,
		MemoryUsageRatioPercent:       10.0,
		VeryLowCPUPercent:             1.0,
		VeryLowCPUDurationHours:       1,
	}
}

// LoadThresholds builds the threshold set: defaults, overridden by the
// optional YAML file at path, overridden by ZOMBIE_DETECT_* env vars.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return t, fmt.Errorf("read thresholds file: %w", err)
		}
		if err := yaml.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("parse thresholds file %s: %w", path, err)
		}
	}

	t.applyEnvOverrides()

	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t *Thresholds) applyEnvOverrides() {
	t.LowCPUPercent = util.GetEnvFloat("ZOMBIE_DETECT_LOW_CPU_PERCENT", t.LowCPUPercent)
	t.LowCPUDurationMinutes = util.GetEnvFloat("ZOMBIE_DETECT_LOW_CPU_DURATION_MINUTES", t.LowCPUDurationMinutes)
	t.MemoryIncreasePercent = util.GetEnvFloat("ZOMBIE_DETECT_MEMORY_INCREASE_PERCENT", t.MemoryIncreasePercent)
	t.MemoryIncreaseDurationHours = util.GetEnvFloat("ZOMBIE_DETECT_MEMORY_INCREASE_DURATION_HOURS", t.MemoryIncreaseDurationHours)
	t.CPUSpikePercent = util.GetEnvFloat("ZOMBIE_DETECT_CPU_SPIKE_PERCENT", t.CPUSpikePercent)
	t.CPUSpikeDurationSeconds = util.GetEnvFloat("ZOMBIE_DETECT_CPU_SPIKE_DURATION_SECONDS", t.CPUSpikeDurationSeconds)
	t.PostSpikeLowCPUPercent = util.GetEnvFloat("ZOMBIE_DETECT_POST_SPIKE_LOW_CPU_PERCENT", t.PostSpikeLowCPUPercent)
	t.PostSpikeDurationMinutes = util.GetEnvFloat("ZOMBIE_DETECT_POST_SPIKE_DURATION_MINUTES", t.PostSpikeDurationMinutes)
	t.SpikePatternCount = util.GetEnvInt("ZOMBIE_DETECT_SPIKE_PATTERN_COUNT", t.SpikePatternCount)
	t.NetworkLowTransferKB = util.GetEnvFloat("ZOMBIE_DETECT_NETWORK_LOW_TRANSFER_KB", t.NetworkLowTransferKB)
	t.NetworkAttemptIntervalMinutes = util.GetEnvFloat("ZOMBIE_DETECT_NETWORK_ATTEMPT_INTERVAL_MINUTES", t.NetworkAttemptIntervalMinutes)
	t.MemoryMinAllocationMB = util.GetEnvFloat("ZOMBIE_DETECT_MEMORY_MIN_ALLOCATION_MB", t.MemoryMinAllocationMB)
	t.MemoryUsageRatioPercent = util.GetEnvFloat("ZOMBIE_DETECT_MEMORY_USAGE_RATIO_PERCENT", t.MemoryUsageRatioPercent)
	t.VeryLowCPUPercent = util.GetEnvFloat("ZOMBIE_DETECT_VERY_LOW_CPU_PERCENT", t.VeryLowCPUPercent)
	t.VeryLowCPUDurationHours = util.GetEnvFloat("ZOMBIE_DETECT_VERY_LOW_CPU_DURATION_HOURS", t.VeryLowCPUDurationHours)
}

// Validate rejects threshold sets that would make a rule degenerate.
func (t Thresholds) Validate() error {
	positive := map[string]float64{
		"low_cpu_percent":                  t.LowCPUPercent,
		"low_cpu_duration_minutes":         t.LowCPUDurationMinutes,
		"memory_increase_percent":          t.MemoryIncreasePercent,
		"memory_increase_duration_hours":   t.MemoryIncreaseDurationHours,
		"cpu_spike_percent":                t.CPUSpikePercent,
		"cpu_spike_duration_seconds":       t.CPUSpikeDurationSeconds,
		"post_spike_low_cpu_percent":       t.PostSpikeLowCPUPercent,
		"post_spike_duration_minutes":      t.PostSpikeDurationMinutes,
		"network_low_transfer_kb":          t.NetworkLowTransferKB,
		"network_attempt_interval_minutes": t.NetworkAttemptIntervalMinutes,
		"memory_min_allocation_mb":         t.MemoryMinAllocationMB,
		"memory_usage_ratio_percent":       t.MemoryUsageRatioPercent,
		"very_low_cpu_percent":             t.VeryLowCPUPercent,
		"very_low_cpu_duration_hours":      t.VeryLowCPUDurationHours,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("threshold %s must be positive, got %v", key, v)
		}
	}
	if t.SpikePatternCount < 1 {
		return fmt.Errorf("threshold spike_pattern_count must be at least 1, got %d", t.SpikePatternCount)
	}
	return nil
}

// Weights maps rule name to its share of the composite score.
type Weights map[string]float64

// DefaultWeights returns the fixed rule weighting. The sum is 1.0 by
// construction; Validate guards against drift when callers override it.
func DefaultWeights() Weights {
	return Weights{
		RuleSustainedLowCPU:   0.35,
		RuleMemoryLeak:        0.25,
		RuleStuckProcess:      0.15,
		RuleNetworkTimeout:    0.15,
		RuleResourceImbalance: 0.10,
	}
}

// Validate checks that exactly the five known rules are weighted and that the
// weights sum to 1.
func (w Weights) Validate() error {
	if len(w) != len(ruleOrder) {
		return fmt.Errorf("expected %d rule weights, got %d", len(ruleOrder), len(w))
	}
	var sum float64
	for _, name := range ruleOrder {
		weight, ok := w[name]
		if !ok {
			return fmt.Errorf("missing weight for rule %s", name)
		}
		if weight < 0 {
			return fmt.Errorf("weight for rule %s must be non-negative, got %v", name, weight)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("rule weights must sum to 1.0, got %v", sum)
	}
	return nil
}
