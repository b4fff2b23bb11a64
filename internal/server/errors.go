package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// errorResponse is the JSON body of every error the API returns.
type errorResponse struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// httpError carries a status a handler chose itself, such as the 404 for a
// job with no pods.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string { return e.detail }

func httpErrorf(status int, format string, args ...any) error {
	return &httpError{status: status, detail: fmt.Sprintf(format, args...)}
}

// writeError translates err into the error taxonomy and writes the JSON
// body. It must run before anything else has been written to w.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			logging.SanitizedErr(err),
		)
	}
	writeJSON(w, status, errorResponse{Status: status, Detail: detail})
}

// classifyError maps an error to an HTTP status and client-facing detail.
// Client-caused Kubernetes API errors relay their message verbatim; cluster
// failures become 502; anything unrecognized becomes an opaque 500.
func classifyError(err error) (int, string) {
	var handlerErr *httpError
	if errors.As(err, &handlerErr) {
		return handlerErr.status, handlerErr.detail
	}

	if errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized, "Incorrect token"
	}
	var scopeErr *auth.ScopeError
	if errors.As(err, &scopeErr) {
		return http.StatusForbidden, scopeErr.Error()
	}
	if errors.Is(err, auth.ErrHubUnavailable) {
		return http.StatusBadGateway, "JupyterHub API unavailable"
	}

	var malformedErr *workload.MalformedError
	if errors.As(err, &malformedErr) {
		return http.StatusBadRequest, malformedErr.Error()
	}
	var tooLargeErr *http.MaxBytesError
	if errors.As(err, &tooLargeErr) {
		return http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLargeErr.Limit)
	}

	apiStatus := apierrors.APIStatus(nil)
	if errors.As(err, &apiStatus) {
		code := int(apiStatus.Status().Code)
		// A cluster-side 5xx is the upstream failing, not this server.
		if code >= http.StatusInternalServerError {
			return http.StatusBadGateway, "kubernetes api unavailable"
		}
		if code >= http.StatusBadRequest {
			detail := apiStatus.Status().Message
			if detail == "" {
				detail = err.Error()
			}
			return code, detail
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "kubernetes api unavailable"
	}

	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
