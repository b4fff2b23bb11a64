package k8s

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
)

// WorkloadManager implementation

// foregroundDelete makes the API server delete dependents before the owner,
// so a job's pods are gone by the time the job is.
var foregroundDelete = func() metav1.DeleteOptions {
	policy := metav1.DeletePropagationForeground
	return metav1.DeleteOptions{PropagationPolicy: &policy}
}()

// CreateJob submits a Job and returns the server's copy.
func (c *kubernetesClient) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error) {
	created, err := c.clientset.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create job in %s: %w", namespace, err)
	}

	c.logger.Info("created job",
		logging.Namespace(namespace), logging.ResourceName(created.Name))
	return created, nil
}

// GetJob retrieves a Job by name.
func (c *kubernetesClient) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s/%s: %w", namespace, name, err)
	}
	return job, nil
}

// ListJobs lists all Jobs in the namespace.
func (c *kubernetesClient) ListJobs(ctx context.Context, namespace string) (*batchv1.JobList, error) {
	jobs, err := c.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs in %s: %w", namespace, err)
	}
	return jobs, nil
}

// DeleteJob removes a Job with foreground propagation.
func (c *kubernetesClient) DeleteJob(ctx context.Context, namespace, name string) error {
	err := c.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, foregroundDelete)
	if err != nil {
		return fmt.Errorf("failed to delete job %s/%s: %w", namespace, name, err)
	}

	c.logger.Info("deleted job",
		logging.Namespace(namespace), logging.ResourceName(name))
	return nil
}

// CreateCronJob submits a CronJob and returns the server's copy.
func (c *kubernetesClient) CreateCronJob(ctx context.Context, namespace string, cronJob *batchv1.CronJob) (*batchv1.CronJob, error) {
	created, err := c.clientset.BatchV1().CronJobs(namespace).Create(ctx, cronJob, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create cronjob in %s: %w", namespace, err)
	}

	c.logger.Info("created cronjob",
		logging.Namespace(namespace), logging.ResourceName(created.Name))
	return created, nil
}

// GetCronJob retrieves a CronJob by name.
func (c *kubernetesClient) GetCronJob(ctx context.Context, namespace, name string) (*batchv1.CronJob, error) {
	cronJob, err := c.clientset.BatchV1().CronJobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get cronjob %s/%s: %w", namespace, name, err)
	}
	return cronJob, nil
}

// ListCronJobs lists all CronJobs in the namespace.
func (c *kubernetesClient) ListCronJobs(ctx context.Context, namespace string) (*batchv1.CronJobList, error) {
	cronJobs, err := c.clientset.BatchV1().CronJobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list cronjobs in %s: %w", namespace, err)
	}
	return cronJobs, nil
}

// DeleteCronJob removes a CronJob with foreground propagation.
func (c *kubernetesClient) DeleteCronJob(ctx context.Context, namespace, name string) error {
	err := c.clientset.BatchV1().CronJobs(namespace).Delete(ctx, name, foregroundDelete)
	if err != nil {
		return fmt.Errorf("failed to delete cronjob %s/%s: %w", namespace, name, err)
	}

	c.logger.Info("deleted cronjob",
		logging.Namespace(namespace), logging.ResourceName(name))
	return nil
}
