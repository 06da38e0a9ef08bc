package constants

// This file contains the disqualification reason strings the rule evaluators
// attach to zero-score outcomes. Reasons are evidence only; nothing downstream
// branches on them.

const (
	ReasonInsufficientData      = "insufficient data"
	ReasonCPUNotLow             = "cpu usage not consistently low"
	ReasonFewLowCPUSamples      = "not enough low cpu samples"
	ReasonFewMemorySamples      = "not enough memory samples"
	ReasonLowCPUDurationShort   = "low cpu duration below threshold"
	ReasonCPUNotVeryLow         = "cpu usage not consistently very low"
	ReasonInvalidInitialMemory  = "invalid initial memory value"
	ReasonMemoryPatternNotMet   = "memory increase pattern not met"
	ReasonFewNetworkSpikes      = "not enough network activity spikes"
	ReasonNoSpikeIntervals      = "could not calculate spike intervals"
	ReasonNotPeriodic           = "network spikes not periodic"
	ReasonNoSpikeStallPattern   = "no spike-stall pattern found"
	ReasonAllocationBelowFloor  = "memory allocation below threshold"
	ReasonFewVeryLowCPUSamples  = "not enough very low cpu samples"
	ReasonImbalancePatternUnmet = "resource imbalance pattern not met"
)
