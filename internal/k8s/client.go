package k8s

import (
	"context"
	"io"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// Client defines the cluster operations the proxy consumes. Every method
// operates strictly within the namespace it is given.
type Client interface {
	// Namespace Operations
	NamespaceManager

	// Submission Resource Operations
	ResourceManager

	// Job and CronJob Operations
	WorkloadManager

	// Pod Operations
	PodManager
}

// NamespaceStatus reports what EnsureNamespace found.
type NamespaceStatus string

const (
	// NamespaceCreated means the namespace did not exist and was created.
	NamespaceCreated NamespaceStatus = "created"
	// NamespaceExisted means the namespace was already present.
	NamespaceExisted NamespaceStatus = "existed"
	// NamespaceSkipped means namespace creation is disabled and the
	// namespace was assumed to exist.
	NamespaceSkipped NamespaceStatus = "skipped"
)

// NamespaceManager handles user namespace lifecycle.
type NamespaceManager interface {
	// EnsureNamespace creates the namespace if it does not exist. An
	// already-existing namespace is success, not an error.
	EnsureNamespace(ctx context.Context, name string) (NamespaceStatus, error)
}

// ResourceManager handles the Secret and ConfigMap that accompany a
// submission.
type ResourceManager interface {
	// CreateSecret creates the env Secret and returns the server's copy,
	// including the assigned name.
	CreateSecret(ctx context.Context, namespace string, secret *corev1.Secret) (*corev1.Secret, error)

	// DeleteSecret removes a Secret by name.
	DeleteSecret(ctx context.Context, namespace, name string) error

	// PatchSecret applies a JSON merge patch to a Secret.
	PatchSecret(ctx context.Context, namespace, name string, patch []byte) error

	// CreateConfigMap creates the code ConfigMap and returns the server's
	// copy, including the assigned name.
	CreateConfigMap(ctx context.Context, namespace string, configMap *corev1.ConfigMap) (*corev1.ConfigMap, error)

	// DeleteConfigMap removes a ConfigMap by name.
	DeleteConfigMap(ctx context.Context, namespace, name string) error

	// PatchConfigMap applies a JSON merge patch to a ConfigMap.
	PatchConfigMap(ctx context.Context, namespace, name string, patch []byte) error
}

// WorkloadManager handles Job and CronJob operations.
type WorkloadManager interface {
	// CreateJob submits a Job and returns the server's copy.
	CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error)

	// GetJob retrieves a Job by name.
	GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error)

	// ListJobs lists all Jobs in the namespace.
	ListJobs(ctx context.Context, namespace string) (*batchv1.JobList, error)

	// DeleteJob removes a Job with foreground propagation, so dependent
	// pods and owned resources go with it.
	DeleteJob(ctx context.Context, namespace, name string) error

	// CreateCronJob submits a CronJob and returns the server's copy.
	CreateCronJob(ctx context.Context, namespace string, cronJob *batchv1.CronJob) (*batchv1.CronJob, error)

	// GetCronJob retrieves a CronJob by name.
	GetCronJob(ctx context.Context, namespace, name string) (*batchv1.CronJob, error)

	// ListCronJobs lists all CronJobs in the namespace.
	ListCronJobs(ctx context.Context, namespace string) (*batchv1.CronJobList, error)

	// DeleteCronJob removes a CronJob with foreground propagation.
	DeleteCronJob(ctx context.Context, namespace, name string) error
}

// PodManager handles pod reads and log access.
type PodManager interface {
	// GetPod retrieves a pod by name.
	GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error)

	// ListPods lists pods, optionally filtered by label selector.
	ListPods(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error)

	// ReadPodLogs returns the pod's log as one string.
	ReadPodLogs(ctx context.Context, namespace, name string) (string, error)

	// StreamPodLogs follows the pod's log. The returned reader delivers
	// chunks as the kubelet produces them and ends when the pod finishes
	// or ctx is cancelled. The caller must close it.
	StreamPodLogs(ctx context.Context, namespace, name string) (io.ReadCloser, error)
}
