package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
)

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{name: "captures 200 OK", statusCode: http.StatusOK},
		{name: "captures 404 Not Found", statusCode: http.StatusNotFound},
		{name: "captures 500 Internal Server Error", statusCode: http.StatusInternalServerError},
		{name: "captures 413 Too Large", statusCode: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			rw := newResponseWriter(recorder)

			rw.WriteHeader(tt.statusCode)

			assert.Equal(t, tt.statusCode, rw.statusCode)
			assert.True(t, rw.written)
		})
	}
}

func TestResponseWriter_DefaultsTo200(t *testing.T) {
	recorder := httptest.NewRecorder()
	rw := newResponseWriter(recorder)

	_, err := rw.Write([]byte("hello"))
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.True(t, rw.written)
}

func TestResponseWriter_OnlyFirstWriteHeaderCounts(t *testing.T) {
	recorder := httptest.NewRecorder()
	rw := newResponseWriter(recorder)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusBadRequest)

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
}

func TestResponseWriter_Flush(t *testing.T) {
	recorder := httptest.NewRecorder()
	rw := newResponseWriter(recorder)

	rw.Flush()
	assert.True(t, recorder.Flushed)
}

func TestResponseWriter_Unwrap(t *testing.T) {
	recorder := httptest.NewRecorder()
	rw := newResponseWriter(recorder)

	assert.Equal(t, recorder, rw.Unwrap())
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "root unchanged", input: "/", expected: "/"},
		{name: "authorized unchanged", input: "/authorized", expected: "/authorized"},
		{name: "profiles unchanged", input: "/profiles/", expected: "/profiles/"},
		{name: "job list unchanged", input: "/jobs/", expected: "/jobs/"},
		{name: "job name normalized", input: "/jobs/myjob-8k2df", expected: "/jobs/:name"},
		{name: "job logs normalized", input: "/jobs/logs/myjob-8k2df/", expected: "/jobs/logs/:name"},
		{name: "job logs without trailing slash", input: "/jobs/logs/myjob-8k2df", expected: "/jobs/logs/:name"},
		{name: "cronjob name normalized", input: "/cronjobs/nightly-sync", expected: "/cronjobs/:name"},
		{name: "pod name normalized", input: "/pods/myjob-8k2df-x7ld2", expected: "/pods/:name"},
		{name: "pod logs normalized", input: "/pods/logs/myjob-8k2df-x7ld2/", expected: "/pods/logs/:name"},
		{name: "prefixed job name normalized", input: "/services/kbatch/jobs/myjob", expected: "/services/kbatch/jobs/:name"},
		{name: "prefixed job logs normalized", input: "/services/kbatch/jobs/logs/myjob/", expected: "/services/kbatch/jobs/logs/:name"},
		{name: "health endpoint unchanged", input: "/healthz", expected: "/healthz"},
		{name: "readiness endpoint unchanged", input: "/readyz", expected: "/readyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestHTTPMetrics_NilProvider(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	})

	middleware := HTTPMetrics(nil)(handler)

	req := httptest.NewRequest("GET", "/jobs/", nil)
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestHTTPMetrics_DisabledProvider(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled: false,
	})
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	middleware := HTTPMetrics(provider)(handler)

	req := httptest.NewRequest("GET", "/jobs/", nil)
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	middleware := HTTPMetrics(provider)(handler)

	req := httptest.NewRequest("GET", "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	scrape := httptest.NewRecorder()
	provider.PrometheusHandler().ServeHTTP(scrape, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "http_requests")
}

func TestHTTPMetrics_PreservesResponseBody(t *testing.T) {
	expectedBody := `{"message":"kbatch"}`

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(expectedBody))
	})

	middleware := HTTPMetrics(nil)(handler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, expectedBody, rec.Body.String())
}
