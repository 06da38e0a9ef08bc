package constants

import "time"

// This file holds common constants used across the detector.

const (
	// KubeSystemNamespace hosts cluster system components and is excluded
	// from detection by default.
	KubeSystemNamespace = "kube-system"

	// MonitoringNamespace hosts the metrics stack itself.
	MonitoringNamespace = "monitoring"

	// RecentPodFloor is the minimum pod age before a container is analyzed.
	// Younger pods have too little history to score.
	RecentPodFloor = 10 * time.Minute
)
