package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func namespacedCronJob(namespace, name string) *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       batchv1.CronJobSpec{Schedule: "0 3 * * *"},
	}
}

func TestListCronJobs_ScopedToUserNamespace(t *testing.T) {
	server, _ := newTestServer(t, nil,
		namespacedCronJob(testNamespace, "nightly"),
		namespacedCronJob("kbatch-bob", "bob-cron"),
	)

	rec := doRequest(t, server, http.MethodGet, "/cronjobs/", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var list batchv1.CronJobList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "nightly", list.Items[0].Name)
}

func TestGetCronJob(t *testing.T) {
	server, _ := newTestServer(t, nil, namespacedCronJob(testNamespace, "nightly"))

	rec := doRequest(t, server, http.MethodGet, "/cronjobs/nightly", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var cronJob batchv1.CronJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cronJob))
	assert.Equal(t, "nightly", cronJob.Name)
	assert.Equal(t, "0 3 * * *", cronJob.Spec.Schedule)
}

func TestGetCronJob_NotFound(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/cronjobs/missing", testToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeErrorBody(t, rec).Detail, `"missing" not found`)
}

func TestDeleteCronJob(t *testing.T) {
	server, clientset := newTestServer(t, nil, namespacedCronJob(testNamespace, "nightly"))

	rec := doRequest(t, server, http.MethodDelete, "/cronjobs/nightly", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var status metav1.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, metav1.StatusSuccess, status.Status)

	_, err := clientset.BatchV1().CronJobs(testNamespace).Get(context.Background(), "nightly", metav1.GetOptions{})
	require.Error(t, err)
}
