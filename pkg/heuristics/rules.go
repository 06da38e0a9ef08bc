package heuristics

import (
	"math"

	"k8s-zombie-detector/pkg/constants"
)

// networkActiveBytesPerSec is the fixed cutoff above which average network
// throughput counts as real activity in the sustained-low-CPU rule. The
// original detector hard-codes 1 KB/s here; it is deliberately not part of
// Thresholds because changing it changes classification semantics.
const networkActiveBytesPerSec = 1000.0

// consistencyFraction is the share of CPU samples that must sit below a
// threshold before a rule treats the container as "consistently" idle.
const consistencyFraction = 0.9

// ruleSustainedLowCPU scores containers that hold CPU below the low threshold
// for the configured duration while memory stays flat or grows and the
// network is quiet.
func (e *Engine) ruleSustainedLowCPU(b Bundle, _ ResourceLimits) Outcome {
	if b.CPU.IsEmpty() || b.Memory.IsEmpty() {
		return disqualified(constants.ReasonInsufficientData)
	}

	lowThreshold := e.thresholds.LowCPUPercent / 100
	low := b.CPU.Filter(func(p Sample) bool { return p.Value < lowThreshold })
	if len(low) == 0 {
		return disqualified(constants.ReasonCPUNotLow)
	}
	if len(low) < 2 {
		return disqualified(constants.ReasonFewLowCPUSamples)
	}
	lowDuration := low.Span().Minutes()

	if len(b.Memory) < 2 {
		return disqualified(constants.ReasonFewMemorySamples)
	}
	memStart := b.Memory.First().Value
	memEnd := b.Memory.Last().Value
	memChangePct := 0.0
	if memStart > 0 {
		memChangePct = (memEnd - memStart) / memStart * 100
	}

	networkActive := false
	if !b.NetworkRx.IsEmpty() && !b.NetworkTx.IsEmpty() {
		networkActive = b.NetworkRx.Mean() > networkActiveBytesPerSec ||
			b.NetworkTx.Mean() > networkActiveBytesPerSec
	}

	if lowDuration < e.thresholds.LowCPUDurationMinutes {
		return Outcome{Evidence: map[string]any{
			"reason":                   constants.ReasonLowCPUDurationShort,
			"low_cpu_duration_minutes": lowDuration,
		}}
	}

	score := 0.6
	evidence := map[string]any{"low_cpu_duration_minutes": lowDuration}
	if memChangePct >= 0 {
		score += 0.2
		evidence["memory_change_percent"] = memChangePct
	}
	if !networkActive {
		score += 0.2
		evidence["network_active"] = networkActive
	}
	return Outcome{Score: score, Evidence: evidence}
}

// ruleMemoryLeak scores containers whose memory grows past the configured
// increase while the CPU sits almost entirely below the very-low threshold.
func (e *Engine) ruleMemoryLeak(b Bundle, _ ResourceLimits) Outcome {
	if b.CPU.IsEmpty() || b.Memory.IsEmpty() || len(b.Memory) < 2 {
		return disqualified(constants.ReasonInsufficientData)
	}

	veryLowThreshold := e.thresholds.VeryLowCPUPercent / 100
	veryLow := b.CPU.Filter(func(p Sample) bool { return p.Value < veryLowThreshold })
	if float64(len(veryLow))/float64(len(b.CPU)) < consistencyFraction {
		return disqualified(constants.ReasonCPUNotVeryLow)
	}

	memStart := b.Memory.First().Value
	if memStart <= 0 {
		return disqualified(constants.ReasonInvalidInitialMemory)
	}
	increasePct := (b.Memory.Last().Value - memStart) / memStart * 100
	durationHours := b.Memory.Span().Hours()

	evidence := map[string]any{
		"memory_increase_percent": increasePct,
		"duration_hours":          durationHours,
	}

	if increasePct <= e.thresholds.MemoryIncreasePercent ||
		durationHours < e.thresholds.MemoryIncreaseDurationHours {
		evidence["reason"] = constants.ReasonMemoryPatternNotMet
		return Outcome{Evidence: evidence}
	}

	score := 0.5
	switch {
	case increasePct > e.thresholds.MemoryIncreasePercent*2:
		score += 0.3
	case increasePct > e.thresholds.MemoryIncreasePercent*1.5:
		score += 0.2
	default:
		score += 0.1
	}
	if durationHours >= e.thresholds.MemoryIncreaseDurationHours*2 {
		score += 0.2
	} else {
		score += 0.1
	}
	return Outcome{Score: score, Evidence: evidence}
}

// interval is a closed index range over a series.
type interval struct {
	start, end int
}

// spikeIntervals groups consecutive samples at or above threshold into closed
// intervals, keeping only those spanning at most maxSeconds. A spike still
// open at the end of the series is dropped: without a closing sub-threshold
// sample there is no trailing window to inspect.
func spikeIntervals(s Series, threshold, maxSeconds float64) []interval {
	var spikes []interval
	start := -1
	for i, p := range s {
		if p.Value >= threshold {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			end := i - 1
			if s[end].Timestamp.Sub(s[start].Timestamp).Seconds() <= maxSeconds {
				spikes = append(spikes, interval{start: start, end: end})
			}
			start = -1
		}
	}
	return spikes
}

// trailingLowRun returns the contiguous run of samples below threshold
// starting at from.
func trailingLowRun(s Series, from int, threshold float64) interval {
	run := interval{start: from, end: from - 1}
	for i := from; i < len(s); i++ {
		if s[i].Value >= threshold {
			break
		}
		run.end = i
	}
	return run
}

// ruleStuckProcess counts short CPU spikes each followed by a sustained
// near-idle period, the signature of a process repeatedly attempting work and
// hanging.
func (e *Engine) ruleStuckProcess(b Bundle, _ ResourceLimits) Outcome {
	if len(b.CPU) < 10 {
		return disqualified(constants.ReasonInsufficientData)
	}

	spikeThreshold := e.thresholds.CPUSpikePercent / 100
	postThreshold := e.thresholds.PostSpikeLowCPUPercent / 100

	spikes := spikeIntervals(b.CPU, spikeThreshold, e.thresholds.CPUSpikeDurationSeconds)

	patternCount := 0
	for _, spike := range spikes {
		run := trailingLowRun(b.CPU, spike.end+1, postThreshold)
		if run.end-run.start+1 < 2 {
			continue
		}
		span := b.CPU[run.end].Timestamp.Sub(b.CPU[run.start].Timestamp)
		if span.Minutes() >= e.thresholds.PostSpikeDurationMinutes {
			patternCount++
		}
	}

	evidence := map[string]any{"pattern_count": patternCount}
	wanted := e.thresholds.SpikePatternCount
	switch {
	case patternCount >= wanted:
		extra := float64(patternCount-wanted) * 0.1
		return Outcome{Score: 0.7 + math.Min(0.3, extra), Evidence: evidence}
	case patternCount > 0:
		return Outcome{Score: 0.3 + float64(patternCount)/float64(wanted)*0.4, Evidence: evidence}
	default:
		evidence["reason"] = constants.ReasonNoSpikeStallPattern
		return Outcome{Evidence: evidence}
	}
}

// ruleNetworkTimeout scores idle containers emitting small transmit bursts at
// near-constant intervals, the signature of periodic connection attempts that
// never move real data.
func (e *Engine) ruleNetworkTimeout(b Bundle, _ ResourceLimits) Outcome {
	if b.CPU.IsEmpty() || b.NetworkRx.IsEmpty() || b.NetworkTx.IsEmpty() {
		return disqualified(constants.ReasonInsufficientData)
	}

	lowThreshold := e.thresholds.LowCPUPercent / 100
	low := b.CPU.Filter(func(p Sample) bool { return p.Value < lowThreshold })
	if float64(len(low))/float64(len(b.CPU)) < consistencyFraction {
		return disqualified(constants.ReasonCPUNotLow)
	}

	lowTransfer := e.thresholds.NetworkLowTransferKB * 1024
	spikes := b.NetworkTx.Filter(func(p Sample) bool {
		return p.Value > 0 && p.Value < lowTransfer
	})
	if len(spikes) < 3 {
		return disqualified(constants.ReasonFewNetworkSpikes)
	}

	intervals := make([]float64, 0, len(spikes)-1)
	for i := 1; i < len(spikes); i++ {
		intervals = append(intervals, spikes[i].Timestamp.Sub(spikes[i-1].Timestamp).Minutes())
	}
	if len(intervals) == 0 {
		return disqualified(constants.ReasonNoSpikeIntervals)
	}

	avgInterval := mean(intervals)
	cv := math.Inf(1)
	if avgInterval > 0 {
		cv = stddev(intervals, avgInterval) / avgInterval
	}

	evidence := map[string]any{
		"network_spike_count":  len(spikes),
		"avg_interval_minutes": avgInterval,
		"interval_cv":          cv,
	}

	if avgInterval < 1 || avgInterval > e.thresholds.NetworkAttemptIntervalMinutes*2 || cv >= 0.5 {
		evidence["reason"] = constants.ReasonNotPeriodic
		return Outcome{Evidence: evidence}
	}

	score := 0.5
	switch {
	case len(spikes) >= 10:
		score += 0.3
	case len(spikes) >= 5:
		score += 0.2
	default:
		score += 0.1
	}
	switch {
	case cv < 0.3:
		score += 0.2
	case cv < 0.4:
		score += 0.1
	}
	return Outcome{Score: score, Evidence: evidence}
}

// ruleResourceImbalance scores containers that hold a large memory allocation
// while using a small fraction of it and almost no CPU for hours.
func (e *Engine) ruleResourceImbalance(b Bundle, limits ResourceLimits) Outcome {
	if b.CPU.IsEmpty() || b.Memory.IsEmpty() {
		return disqualified(constants.ReasonInsufficientData)
	}

	allocationMB := limits.MemoryBytes / (1024 * 1024)
	if allocationMB < e.thresholds.MemoryMinAllocationMB {
		// Covers the unknown-limit case too: zero means no limit reported.
		return disqualified(constants.ReasonAllocationBelowFloor)
	}

	usageRatio := b.Memory.Mean() / limits.MemoryBytes * 100

	veryLowThreshold := e.thresholds.VeryLowCPUPercent / 100
	veryLow := b.CPU.Filter(func(p Sample) bool { return p.Value < veryLowThreshold })
	if len(veryLow) < 2 {
		return disqualified(constants.ReasonFewVeryLowCPUSamples)
	}
	veryLowDuration := veryLow.Span().Hours()

	evidence := map[string]any{
		"memory_allocation_mb":        allocationMB,
		"memory_usage_ratio":          usageRatio,
		"very_low_cpu_duration_hours": veryLowDuration,
	}

	if usageRatio >= e.thresholds.MemoryUsageRatioPercent ||
		veryLowDuration < e.thresholds.VeryLowCPUDurationHours {
		evidence["reason"] = constants.ReasonImbalancePatternUnmet
		return Outcome{Evidence: evidence}
	}

	score := 0.4
	switch {
	case allocationMB >= e.thresholds.MemoryMinAllocationMB*4:
		score += 0.3
	case allocationMB >= e.thresholds.MemoryMinAllocationMB*2:
		score += 0.2
	default:
		score += 0.1
	}
	if veryLowDuration >= e.thresholds.VeryLowCPUDurationHours*2 {
		score += 0.3
	} else {
		score += 0.1
	}
	return Outcome{Score: score, Evidence: evidence}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the population standard deviation around the given mean.
func stddev(vals []float64, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}
