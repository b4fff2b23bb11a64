package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing the header.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures that a response was written.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter to support http.Flusher etc.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush implements http.Flusher so log streaming keeps working through the
// wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// HTTPMetrics creates middleware that records a count and duration for each
// method/path/status combination. Paths are normalized so job, cronjob, and
// pod names do not blow up metric cardinality.
//
// The provider may be nil or disabled, in which case the middleware passes
// straight through.
func HTTPMetrics(provider *instrumentation.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if provider == nil || !provider.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			provider.Metrics().RecordHTTPRequest(
				r.Context(),
				r.Method,
				normalizePath(r.URL.Path),
				wrapped.statusCode,
				time.Since(start),
			)
		})
	}
}

// Path patterns whose final segment is a user-chosen resource name.
var (
	logsPathPattern  = regexp.MustCompile(`/(jobs|pods)/logs/[^/]+/?$`)
	namedPathPattern = regexp.MustCompile(`/(jobs|cronjobs|pods)/[^/]+$`)
)

// normalizePath replaces resource names in request paths with :name so the
// path label stays bounded regardless of how many jobs users run.
func normalizePath(path string) string {
	if logsPathPattern.MatchString(path) {
		return logsPathPattern.ReplaceAllString(path, "/$1/logs/:name")
	}
	return namedPathPattern.ReplaceAllString(path, "/$1/:name")
}
