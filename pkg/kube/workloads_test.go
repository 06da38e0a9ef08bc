package kube_test

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"k8s-zombie-detector/pkg/kube"
)

func newPod(namespace, name string, containers []string, labels map[string]string, started time.Time) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			Labels:    labels,
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
	if !started.IsZero() {
		start := metav1.NewTime(started)
		pod.Status.StartTime = &start
	}
	for _, c := range containers {
		pod.Spec.Containers = append(pod.Spec.Containers, corev1.Container{Name: c})
	}
	pod.Spec.NodeName = "node-1"
	return pod
}

func TestListContainers(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		newPod("shop", "checkout-abc12-x9y8z", []string{"app", "sidecar"}, nil, time.Now().Add(-time.Hour)),
		newPod("shop", "cart-def34-w7v6u", []string{"app"},
			map[string]string{"zombie-detect.io/exclude": "true"}, time.Now().Add(-time.Hour)),
	)
	client := kube.NewClient(clientset, nil)

	refs, err := client.ListContainers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("want 2 refs after exclusion, got %d: %v", len(refs), refs)
	}
	for _, ref := range refs {
		if ref.Pod != "checkout-abc12-x9y8z" {
			t.Errorf("excluded pod leaked into results: %v", ref)
		}
		if ref.Node != "node-1" {
			t.Errorf("want node-1, got %q", ref.Node)
		}
	}
	if refs[0].Container != "app" || refs[1].Container != "sidecar" {
		t.Errorf("containers out of spec order: %v", refs)
	}
}

func TestIsRecentlyCreated(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		newPod("shop", "fresh", []string{"app"}, nil, time.Now().Add(-2*time.Minute)),
		newPod("shop", "settled", []string{"app"}, nil, time.Now().Add(-time.Hour)),
	)
	client := kube.NewClient(clientset, nil)
	ctx := context.Background()

	if !client.IsRecentlyCreated(ctx, "shop", "fresh") {
		t.Error("pod started 2m ago must count as recently created")
	}
	if client.IsRecentlyCreated(ctx, "shop", "settled") {
		t.Error("pod started 1h ago must not count as recently created")
	}
	// Lookup failures must not hide the workload from the scan.
	if client.IsRecentlyCreated(ctx, "shop", "missing") {
		t.Error("lookup failure must report not-recent")
	}
}

func TestLiveUsage(t *testing.T) {
	pm := &metricsv1beta1.PodMetrics{
		ObjectMeta: metav1.ObjectMeta{Namespace: "shop", Name: "checkout-abc12-x9y8z"},
		Containers: []metricsv1beta1.ContainerMetrics{
			{
				Name: "app",
				Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("250m"),
					corev1.ResourceMemory: resource.MustParse("128Mi"),
				},
			},
		},
	}
	// The generated PodMetricses getter queries resource "pods" in the
	// metrics group, so the object must be tracked under that GVR rather
	// than the scheme-guessed "podmetricses".
	metrics := metricsfake.NewSimpleClientset()
	gvr := metricsv1beta1.SchemeGroupVersion.WithResource("pods")
	if err := metrics.Tracker().Create(gvr, pm, "shop"); err != nil {
		t.Fatalf("failed to seed pod metrics: %v", err)
	}
	client := kube.NewClient(fake.NewSimpleClientset(), metrics)

	ref := kube.ContainerRef{Namespace: "shop", Pod: "checkout-abc12-x9y8z", Container: "app"}
	usage, err := client.LiveUsage(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.CPUCores != 0.25 {
		t.Errorf("want 0.25 cores, got %v", usage.CPUCores)
	}
	if usage.MemoryBytes != 128*1024*1024 {
		t.Errorf("want 128Mi bytes, got %v", usage.MemoryBytes)
	}

	if _, err := client.LiveUsage(context.Background(), kube.ContainerRef{
		Namespace: "shop", Pod: "checkout-abc12-x9y8z", Container: "other",
	}); err == nil {
		t.Error("want error for container missing from pod metrics")
	}

	noMetrics := kube.NewClient(fake.NewSimpleClientset(), nil)
	if _, err := noMetrics.LiveUsage(context.Background(), ref); err == nil {
		t.Error("want error when metrics client is absent")
	}
}
