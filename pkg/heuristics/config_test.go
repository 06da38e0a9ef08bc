package heuristics_test

import (
	"os"
	"path/filepath"
	"testing"

	"k8s-zombie-detector/pkg/heuristics"
)

func TestLoadThresholds_DefaultsWithoutFile(t *testing.T) {
	got, err := heuristics.LoadThresholds("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != heuristics.DefaultThresholds() {
		t.Fatalf("want defaults, got %+v", got)
	}
}

func TestLoadThresholds_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := "low_cpu_percent: 7.5\nspike_pattern_count: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := heuristics.LoadThresholds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LowCPUPercent != 7.5 {
		t.Errorf("want low_cpu_percent 7.5, got %v", got.LowCPUPercent)
	}
	if got.SpikePatternCount != 5 {
		t.Errorf("want spike_pattern_count 5, got %d", got.SpikePatternCount)
	}
	// Untouched keys keep their defaults.
	if got.MemoryIncreasePercent != 5.0 {
		t.Errorf("want default memory_increase_percent, got %v", got.MemoryIncreasePercent)
	}
}

func TestLoadThresholds_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte("low_cpu_percent: 7.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ZOMBIE_DETECT_LOW_CPU_PERCENT", "9.0")

	got, err := heuristics.LoadThresholds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LowCPUPercent != 9.0 {
		t.Errorf("env override lost: got %v", got.LowCPUPercent)
	}
}

func TestLoadThresholds_RejectsNonPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte("cpu_spike_percent: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := heuristics.LoadThresholds(path); err == nil {
		t.Fatal("want error for negative threshold")
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := heuristics.DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights must validate, got %v", err)
	}

	broken := heuristics.DefaultWeights()
	broken[heuristics.RuleMemoryLeak] = 0.5
	if err := broken.Validate(); err == nil {
		t.Fatal("want error when weights do not sum to 1")
	}

	missing := heuristics.DefaultWeights()
	delete(missing, heuristics.RuleStuckProcess)
	if err := missing.Validate(); err == nil {
		t.Fatal("want error for missing rule weight")
	}
}
