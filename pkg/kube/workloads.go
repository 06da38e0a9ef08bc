// Package kube enumerates running containers and answers pod-level questions
// the detector needs before scoring.
package kube

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"k8s-zombie-detector/pkg/constants"
)

// ContainerRef identifies one running container.
type ContainerRef struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
	Node      string `json:"node"`
}

func (r ContainerRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Namespace, r.Pod, r.Container)
}

// Usage is a point-in-time resource reading from metrics-server.
type Usage struct {
	CPUCores    float64 `json:"cpu_cores"`
	MemoryBytes float64 `json:"memory_bytes"`
}

// Client wraps the clientsets behind the operations the detector uses.
type Client struct {
	kubeClient    kubernetes.Interface
	metricsClient metricsv.Interface
}

// NewClient builds a Client. The metrics clientset may be nil; LiveUsage then
// reports an error and detailed reports omit live usage.
func NewClient(kube kubernetes.Interface, metrics metricsv.Interface) *Client {
	return &Client{kubeClient: kube, metricsClient: metrics}
}

// ListContainers returns one ref per spec container of every running pod in
// every namespace, in API iteration order. Pods labeled
// zombie-detect.io/exclude=true are skipped.
func (c *Client) ListContainers(ctx context.Context) ([]ContainerRef, error) {
	pods, err := c.kubeClient.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "status.phase=Running",
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	var refs []ContainerRef
	for _, pod := range pods.Items {
		if pod.Labels[constants.LabelExclude] == constants.LabelValueTrue {
			klog.V(4).Infof("Skipping excluded pod %s/%s", pod.Namespace, pod.Name)
			continue
		}
		for _, container := range pod.Spec.Containers {
			refs = append(refs, ContainerRef{
				Namespace: pod.Namespace,
				Pod:       pod.Name,
				Container: container.Name,
				Node:      pod.Spec.NodeName,
			})
		}
	}
	return refs, nil
}

// IsRecentlyCreated reports whether the pod started less than the recent-pod
// floor ago. Lookup failures return false so a flaky API server does not hide
// workloads from the scan.
func (c *Client) IsRecentlyCreated(ctx context.Context, namespace, pod string) bool {
	p, err := c.kubeClient.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		klog.Warningf("Failed to fetch pod %s/%s: %v", namespace, pod, err)
		return false
	}
	start := podStartTime(p)
	if start.IsZero() {
		return false
	}
	return time.Since(start) < constants.RecentPodFloor
}

func podStartTime(pod *corev1.Pod) time.Time {
	if pod.Status.StartTime != nil {
		return pod.Status.StartTime.Time
	}
	return pod.CreationTimestamp.Time
}

// LiveUsage reads the container's current usage from metrics-server.
func (c *Client) LiveUsage(ctx context.Context, ref ContainerRef) (Usage, error) {
	if c.metricsClient == nil {
		return Usage{}, fmt.Errorf("metrics client not configured")
	}
	pm, err := c.metricsClient.MetricsV1beta1().PodMetricses(ref.Namespace).Get(ctx, ref.Pod, metav1.GetOptions{})
	if err != nil {
		return Usage{}, fmt.Errorf("fetch pod metrics %s/%s: %w", ref.Namespace, ref.Pod, err)
	}
	for _, container := range pm.Containers {
		if container.Name != ref.Container {
			continue
		}
		return Usage{
			CPUCores:    float64(container.Usage.Cpu().MilliValue()) / 1000,
			MemoryBytes: float64(container.Usage.Memory().Value()),
		}, nil
	}
	return Usage{}, fmt.Errorf("container %s not in pod metrics %s/%s", ref.Container, ref.Namespace, ref.Pod)
}
