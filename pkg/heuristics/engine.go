package heuristics

import (
	"time"

	"k8s.io/klog/v2"

	"k8s-zombie-detector/pkg/constants"
)

// Engine applies the five heuristic rules to a container's series bundle and
// composes their sub-scores into one weighted verdict. Its configuration is
// fixed at construction and read-only afterwards, so a single Engine may be
// shared by any number of concurrent Analyze calls.
type Engine struct {
	thresholds Thresholds
	weights    Weights
}

// NewEngine builds an engine from the given configuration. Invalid thresholds
// or weights are a configuration error, not a per-call condition.
func NewEngine(thresholds Thresholds, weights Weights) *Engine {
	if err := thresholds.Validate(); err != nil {
		klog.Fatalf("Invalid thresholds: %v", err)
	}
	if err := weights.Validate(); err != nil {
		klog.Fatalf("Invalid rule weights: %v", err)
	}
	return &Engine{thresholds: thresholds, weights: weights}
}

// NewDefaultEngine builds an engine with the documented defaults.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultThresholds(), DefaultWeights())
}

// Thresholds returns a copy of the engine's threshold set.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Analyze runs every rule over the bundle and returns a fresh verdict. Rules
// are independent pure functions; a missing or short series disqualifies the
// affected rules with a reason instead of failing the analysis.
func (e *Engine) Analyze(b Bundle, limits ResourceLimits) Verdict {
	start := time.Now()

	outcomes := map[string]Outcome{
		RuleSustainedLowCPU:   e.ruleSustainedLowCPU(b, limits),
		RuleMemoryLeak:        e.ruleMemoryLeak(b, limits),
		RuleStuckProcess:      e.ruleStuckProcess(b, limits),
		RuleNetworkTimeout:    e.ruleNetworkTimeout(b, limits),
		RuleResourceImbalance: e.ruleResourceImbalance(b, limits),
	}

	// Fixed summation order keeps the composite bit-identical across calls.
	var composite float64
	for _, name := range ruleOrder {
		composite += outcomes[name].Score * e.weights[name]
	}
	composite *= 100

	classification := Classify(composite)

	recordAnalysis(classification, outcomes, time.Since(start))

	return Verdict{
		Score:          composite,
		Classification: classification,
		Rules:          outcomes,
	}
}

// Classify maps a composite score to the three-way classification. Both
// boundaries are closed on the lower side: exactly 70 is a zombie, exactly 40
// is a potential zombie.
func Classify(composite float64) constants.Classification {
	switch {
	case composite >= constants.ZombieScore:
		return constants.Zombie
	case composite >= constants.PotentialZombieScore:
		return constants.PotentialZombie
	default:
		return constants.Normal
	}
}
