package heuristics

import (
	"time"

	"k8s-zombie-detector/pkg/constants"
)

// Sample is a single time-stamped metric value.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Series is a time-ordered sequence of samples for one metric channel.
// A nil or empty series means the backend returned no data for the window.
type Series []Sample

func (s Series) IsEmpty() bool { return len(s) == 0 }

// First returns the oldest sample. Only valid on a non-empty series.
func (s Series) First() Sample { return s[0] }

// Last returns the newest sample. Only valid on a non-empty series.
func (s Series) Last() Sample { return s[len(s)-1] }

// Span is the wall-clock distance between the first and last sample.
func (s Series) Span() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
}

// Mean is the arithmetic mean of the sample values, 0 for an empty series.
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s {
		sum += p.Value
	}
	return sum / float64(len(s))
}

// Filter returns the samples matching keep, preserving order.
func (s Series) Filter(keep func(Sample) bool) Series {
	var out Series
	for _, p := range s {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Bundle groups the per-channel series for one container. CPU and network
// values are rates (cores, bytes/s); memory values are absolute bytes.
type Bundle struct {
	CPU       Series
	Memory    Series
	NetworkRx Series
	NetworkTx Series
}

// ResourceLimits carries the container's configured limits. Zero means the
// limit is unknown or unset, never a literal zero limit.
type ResourceLimits struct {
	CPUCores    float64
	MemoryBytes float64
}

// Outcome is a single rule's result: a confidence score in [0,1] plus the
// quantitative evidence behind it. Zero-score disqualifications always carry
// a "reason" entry. Evidence is for operators and tests; nothing downstream
// branches on it.
type Outcome struct {
	Score    float64        `json:"score"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

func disqualified(reason string) Outcome {
	return Outcome{Evidence: map[string]any{"reason": reason}}
}

// Verdict is the composed result for one container. It is recomputed fresh on
// every analysis call and never mutated afterwards.
type Verdict struct {
	Score          float64                  `json:"score"`
	Classification constants.Classification `json:"classification"`
	Rules          map[string]Outcome       `json:"rules"`
}
