package constants

// This file centralizes the label keys the detector honors on workloads.
// Using constants prevents typos and makes refactoring easier.

const (
	// LabelExclude opts a pod out of zombie detection entirely.
	LabelExclude = "zombie-detect.io/exclude"

	// LabelValueTrue is a common value for boolean-like labels.
	LabelValueTrue = "true"
)
