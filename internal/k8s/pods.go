package k8s

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodManager implementation

// GetPod retrieves a pod by name.
func (c *kubernetesClient) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	return pod, nil
}

// ListPods lists pods, optionally filtered by label selector.
func (c *kubernetesClient) ListPods(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", namespace, err)
	}
	return pods, nil
}

// ReadPodLogs returns the pod's full log as one string.
func (c *kubernetesClient) ReadPodLogs(ctx context.Context, namespace, name string) (string, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{})

	logs, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get logs for pod %s/%s: %w", namespace, name, err)
	}
	defer logs.Close()

	body, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("failed to read logs for pod %s/%s: %w", namespace, name, err)
	}
	return string(body), nil
}

// StreamPodLogs follows the pod's log until the pod finishes or ctx is
// cancelled. The caller must close the returned reader.
func (c *kubernetesClient) StreamPodLogs(ctx context.Context, namespace, name string) (io.ReadCloser, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{
		Follow: true,
	})

	logs, err := req.Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stream logs for pod %s/%s: %w", namespace, name, err)
	}
	return logs, nil
}
