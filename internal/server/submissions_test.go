package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/utils/ptr"

	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// jobSubmission builds a submission body the way the notebook-side client
// does, with snake_case keys and base64-encoded code.
func jobSubmission(withCode bool) map[string]any {
	body := map[string]any{
		"job": map[string]any{
			"metadata": map[string]any{"generate_name": "myjob-"},
			"spec": map[string]any{
				"template": map[string]any{
					"spec": map[string]any{
						"containers": []any{map[string]any{
							"name":  "main",
							"image": "alpine:3.20",
							"env": []any{
								map[string]any{"name": "USER_VAR", "value": "user-value"},
							},
						}},
						"restart_policy": "Never",
					},
				},
			},
		},
	}
	if withCode {
		body["code"] = map[string]any{
			"metadata": map[string]any{"generate_name": "myjob-"},
			"binary_data": map[string]any{
				"code": base64.StdEncoding.EncodeToString([]byte("zip-bytes")),
			},
		}
	}
	return body
}

func cronJobSubmission() map[string]any {
	return map[string]any{
		"job": map[string]any{
			"metadata": map[string]any{"generate_name": "nightly-"},
			"spec": map[string]any{
				"schedule": "0 3 * * *",
				"job_template": map[string]any{
					"metadata": map[string]any{"generate_name": "nightly-"},
					"spec": map[string]any{
						"template": map[string]any{
							"spec": map[string]any{
								"containers": []any{map[string]any{
									"name":  "main",
									"image": "alpine:3.20",
								}},
								"restart_policy": "Never",
							},
						},
					},
				},
			},
		},
	}
}

func TestSubmitJob(t *testing.T) {
	server, clientset := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(false)))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// The response is the created Job in canonical Kubernetes JSON.
	assert.Contains(t, rec.Body.String(), `"generateName"`)
	assert.NotContains(t, rec.Body.String(), `"generate_name"`)

	var job batchv1.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "myjob-abc12", job.Name)
	assert.Equal(t, testNamespace, job.Namespace)
	assert.Equal(t, "alice", job.Annotations[workload.UsernameKey])
	assert.Equal(t, "alice", job.Labels[workload.UsernameKey])

	// Every env value was extracted into the secret; only references remain.
	for _, env := range job.Spec.Template.Spec.Containers[0].Env {
		require.NotNil(t, env.ValueFrom, "env %s should reference the secret", env.Name)
		assert.Equal(t, "myjob-abc12", env.ValueFrom.SecretKeyRef.Name)
	}

	// The secret exists in the user's namespace and is owned by the job.
	secret, err := clientset.CoreV1().Secrets(testNamespace).Get(context.Background(), "myjob-abc12", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, secret.OwnerReferences, 1)
	assert.Equal(t, "Job", secret.OwnerReferences[0].Kind)
	assert.Equal(t, "myjob-abc12", secret.OwnerReferences[0].Name)
}

func TestSubmitJob_WithCode(t *testing.T) {
	server, clientset := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(true)))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var job batchv1.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	// The code bundle rides in as an init-container-unpacked volume.
	require.NotEmpty(t, job.Spec.Template.Spec.InitContainers)
	assert.Equal(t, "myjob--init", job.Spec.Template.Spec.InitContainers[0].Name)
	volumes := job.Spec.Template.Spec.Volumes
	require.GreaterOrEqual(t, len(volumes), 2)
	codeSource := volumes[len(volumes)-2]
	require.NotNil(t, codeSource.ConfigMap)
	assert.Equal(t, "myjob-abc12", codeSource.ConfigMap.Name)

	// The ConfigMap holds the decoded bytes.
	configMap, err := clientset.CoreV1().ConfigMaps(testNamespace).Get(context.Background(), "myjob-abc12", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), configMap.BinaryData["code"])
}

func TestSubmitJob_TemplateMerge(t *testing.T) {
	server, _ := newTestServer(t, func(c *Config) {
		c.JobTemplate = map[string]any{
			"metadata": map[string]any{
				"labels": map[string]any{"kbatch.jupyter.org/tier": "batch"},
			},
			"spec": map[string]any{"backoffLimit": 4},
		}
	})

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(false)))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var job batchv1.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(4), *job.Spec.BackoffLimit)
	assert.Equal(t, "batch", job.Labels["kbatch.jupyter.org/tier"])
}

func TestSubmitJob_ExtraEnvAndTTL(t *testing.T) {
	server, clientset := newTestServer(t, func(c *Config) {
		c.ExtraEnv = map[string]string{"KBATCH_DEPLOYMENT": "prod"}
		c.JobTTL = ptr.To(int32(600))
	})

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(false)))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var job batchv1.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.Equal(t, int32(600), *job.Spec.TTLSecondsAfterFinished)

	// The literal values, including the caller's forwarded Hub token, ended
	// up in the secret rather than the job spec.
	secret, err := clientset.CoreV1().Secrets(testNamespace).Get(context.Background(), "myjob-abc12", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("prod"), secret.Data["KBATCH_DEPLOYMENT"])
	assert.Equal(t, []byte("user-value"), secret.Data["USER_VAR"])
	assert.Equal(t, []byte(testToken), secret.Data["JUPYTERHUB_API_TOKEN"])
	assert.NotContains(t, rec.Body.String(), testToken)
}

func TestSubmitJob_MissingJob(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, strings.NewReader(`{"code": null}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Contains(t, body.Detail, "job object")
}

func TestSubmitJob_InvalidJSON(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, strings.NewReader(`{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorBody(t, rec).Detail, "invalid submission body")
}

func TestSubmitJob_NoContainers(t *testing.T) {
	server, _ := newTestServer(t, nil)

	body := map[string]any{
		"job": map[string]any{
			"metadata": map[string]any{"generate_name": "myjob-"},
			"spec": map[string]any{
				"template": map[string]any{"spec": map[string]any{}},
			},
		},
	}
	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorBody(t, rec).Detail, "at least one container")
}

func TestSubmitJob_CodeTooLarge(t *testing.T) {
	server, clientset := newTestServer(t, func(c *Config) {
		c.MaxCodeSize = 16
	})

	body := jobSubmission(false)
	body["code"] = map[string]any{
		"metadata": map[string]any{"generate_name": "myjob-"},
		"binary_data": map[string]any{
			"code": base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", 32))),
		},
	}
	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	detail := decodeErrorBody(t, rec).Detail
	assert.Contains(t, detail, "code bundle is 32 bytes")
	assert.Contains(t, detail, "limit is 16")

	// Nothing was created.
	jobs, err := clientset.BatchV1().Jobs(testNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, jobs.Items)
}

func TestSubmitJob_BodyTooLarge(t *testing.T) {
	server, _ := newTestServer(t, func(c *Config) {
		c.MaxCodeSize = 1024
	})

	body := jobSubmission(false)
	body["job"].(map[string]any)["metadata"].(map[string]any)["annotations"] = map[string]any{
		"filler": strings.Repeat("x", 128*1024),
	}
	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeErrorBody(t, rec).Detail, "request body exceeds")
}

func TestSubmitJob_ClusterRejection(t *testing.T) {
	server, clientset := newTestServer(t, nil)
	clientset.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewAlreadyExists(
			schema.GroupResource{Group: "batch", Resource: "jobs"}, "myjob")
	})

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(false)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, http.StatusConflict, body.Status)
	assert.Contains(t, body.Detail, "already exists")

	// The compensating delete removed the secret.
	secrets, err := clientset.CoreV1().Secrets(testNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, secrets.Items)
}

func TestSubmitJob_ClusterFailure(t *testing.T) {
	server, clientset := newTestServer(t, nil)
	clientset.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(errors.New("etcdserver: request timed out"))
	})

	rec := doRequest(t, server, http.MethodPost, "/jobs/", testToken, marshalBody(t, jobSubmission(false)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "kubernetes api unavailable", decodeErrorBody(t, rec).Detail)

	// Compensation removed the secret; no job was left behind.
	secrets, err := clientset.CoreV1().Secrets(testNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, secrets.Items)
	jobs, err := clientset.BatchV1().Jobs(testNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, jobs.Items)
}

func TestSubmitCronJob(t *testing.T) {
	server, clientset := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/cronjobs/", testToken, marshalBody(t, cronJobSubmission()))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var cronJob batchv1.CronJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cronJob))
	assert.Equal(t, "nightly-abc12", cronJob.Name)
	assert.Equal(t, "0 3 * * *", cronJob.Spec.Schedule)

	// Patching targets the embedded job template.
	template := cronJob.Spec.JobTemplate
	assert.Equal(t, testNamespace, template.Namespace)
	assert.Equal(t, "alice", template.Annotations[workload.UsernameKey])
	for _, env := range template.Spec.Template.Spec.Containers[0].Env {
		require.NotNil(t, env.ValueFrom)
		assert.Equal(t, "nightly-abc12", env.ValueFrom.SecretKeyRef.Name)
	}

	stored, err := clientset.BatchV1().CronJobs(testNamespace).Get(context.Background(), "nightly-abc12", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, cronJob.Spec.Schedule, stored.Spec.Schedule)
}

func TestSubmitCronJob_MissingSchedule(t *testing.T) {
	server, _ := newTestServer(t, nil)

	// A CronJob body without the cron structure has no job template and
	// therefore no containers.
	body := map[string]any{
		"job": map[string]any{
			"metadata": map[string]any{"generate_name": "nightly-"},
			"spec":     map[string]any{},
		},
	}
	rec := doRequest(t, server, http.MethodPost, "/cronjobs/", testToken, marshalBody(t, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestBodyLimit(t *testing.T) {
	server, _ := newTestServer(t, func(c *Config) {
		c.MaxCodeSize = 1024
	})

	assert.Equal(t, int64(1024*2+64*1024), server.requestBodyLimit())
}
