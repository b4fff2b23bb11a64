package server

import (
	"encoding/json"
	"errors"
	"net/http"

	corev1 "k8s.io/api/core/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/submit"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// submissionBody is the POST body of /jobs/ and /cronjobs/: the workload
// mapping under "job" and the optional code bundle under "code".
type submissionBody struct {
	Job  map[string]any `json:"job"`
	Code map[string]any `json:"code"`
}

// handleSubmit decodes a submission, patches it for the calling user, and
// runs the submission pipeline. The response is the created workload as the
// cluster returned it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, kind workload.Kind) {
	user := userFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.requestBodyLimit())
	var body submissionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, httpErrorf(http.StatusBadRequest, "invalid submission body: %v", err))
		return
	}

	var (
		wl  *workload.Workload
		err error
	)
	if kind == workload.KindCronJob {
		wl, err = workload.ParseCronJob(body.Job, s.template)
	} else {
		wl, err = workload.ParseJob(body.Job, s.template)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var configMap *corev1.ConfigMap
	if body.Code != nil {
		configMap, err = workload.ParseConfigMap(body.Code)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if size := codeSize(configMap); size > s.maxCodeSize {
			s.writeError(w, r, httpErrorf(http.StatusRequestEntityTooLarge,
				"code bundle is %d bytes, the limit is %d", size, s.maxCodeSize))
			return
		}
	}

	secret, err := workload.Patch(wl, configMap, workload.PatchOptions{
		Username:                user.Name,
		APIToken:                user.APIToken,
		ExtraEnv:                s.extraEnv,
		TTLSecondsAfterFinished: s.jobTTL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.submitter.Submit(r.Context(), submit.Request{
		Workload:  wl,
		Secret:    secret,
		ConfigMap: configMap,
		Namespace: user.Namespace(),
		Username:  user.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if result.Kind == workload.KindCronJob {
		writeJSON(w, http.StatusOK, result.CronJob)
		return
	}
	writeJSON(w, http.StatusOK, result.Job)
}

// requestBodyLimit derives the submission body cap from the code size limit:
// the code arrives base64-encoded inside JSON, so allow for the 4/3
// expansion plus room for the job object itself.
func (s *Server) requestBodyLimit() int64 {
	return s.maxCodeSize*2 + 64*1024
}

// codeSize is the decoded size of the code bundle's payload.
func codeSize(configMap *corev1.ConfigMap) int64 {
	var size int64
	for _, value := range configMap.BinaryData {
		size += int64(len(value))
	}
	for _, value := range configMap.Data {
		size += int64(len(value))
	}
	return size
}
