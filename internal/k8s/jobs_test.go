package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func testJob(name, namespace string) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers:    []corev1.Container{{Name: "main", Image: "alpine"}},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}
}

func TestCreateJob(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	assignGeneratedNames(clientset, "jobs")
	client := NewFromClientset(clientset)

	job := testJob("", "kbatch-alice")
	job.GenerateName = "myjob-"

	created, err := client.CreateJob(context.Background(), "kbatch-alice", job)
	require.NoError(t, err)
	assert.Equal(t, "myjob-abc12", created.Name)
}

func TestGetJob(t *testing.T) {
	clientset := fake.NewSimpleClientset(testJob("myjob", "kbatch-alice"))
	client := NewFromClientset(clientset)

	job, err := client.GetJob(context.Background(), "kbatch-alice", "myjob")
	require.NoError(t, err)
	assert.Equal(t, "myjob", job.Name)

	_, err = client.GetJob(context.Background(), "kbatch-alice", "missing")
	require.Error(t, err)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestListJobs_ScopedToNamespace(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testJob("mine", "kbatch-alice"),
		testJob("theirs", "kbatch-bob"),
	)
	client := NewFromClientset(clientset)

	jobs, err := client.ListJobs(context.Background(), "kbatch-alice")
	require.NoError(t, err)
	require.Len(t, jobs.Items, 1)
	assert.Equal(t, "mine", jobs.Items[0].Name)
}

func TestDeleteJob_ForegroundPropagation(t *testing.T) {
	clientset := fake.NewSimpleClientset(testJob("myjob", "kbatch-alice"))

	var captured metav1.DeleteOptions
	clientset.PrependReactor("delete", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		captured = action.(k8stesting.DeleteActionImpl).DeleteOptions
		return false, nil, nil
	})
	client := NewFromClientset(clientset)

	require.NoError(t, client.DeleteJob(context.Background(), "kbatch-alice", "myjob"))

	require.NotNil(t, captured.PropagationPolicy)
	assert.Equal(t, metav1.DeletePropagationForeground, *captured.PropagationPolicy)
}

func TestCronJobLifecycle(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	assignGeneratedNames(clientset, "cronjobs")
	client := NewFromClientset(clientset)
	ctx := context.Background()

	cronJob := &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{GenerateName: "nightly-cron-", Namespace: "kbatch-alice"},
		Spec: batchv1.CronJobSpec{
			Schedule: "0 3 * * *",
			JobTemplate: batchv1.JobTemplateSpec{
				Spec: testJob("", "").Spec,
			},
		},
	}

	created, err := client.CreateCronJob(ctx, "kbatch-alice", cronJob)
	require.NoError(t, err)
	assert.Equal(t, "nightly-cron-abc12", created.Name)

	got, err := client.GetCronJob(ctx, "kbatch-alice", created.Name)
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", got.Spec.Schedule)

	list, err := client.ListCronJobs(ctx, "kbatch-alice")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	var captured metav1.DeleteOptions
	clientset.PrependReactor("delete", "cronjobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		captured = action.(k8stesting.DeleteActionImpl).DeleteOptions
		return false, nil, nil
	})
	require.NoError(t, client.DeleteCronJob(ctx, "kbatch-alice", created.Name))
	require.NotNil(t, captured.PropagationPolicy)
	assert.Equal(t, metav1.DeletePropagationForeground, *captured.PropagationPolicy)

	list, err = client.ListCronJobs(ctx, "kbatch-alice")
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}
