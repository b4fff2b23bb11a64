package server

import (
	"net/http"
)

func (s *Server) handleListPods(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	// kbatch clients filter by the legacy job-name label; the Job
	// controller stamps both label forms on a job's pods.
	selector := ""
	if jobName := r.URL.Query().Get("job_name"); jobName != "" {
		selector = "job-name=" + jobName
	}

	list, err := s.client.ListPods(r.Context(), user.Namespace(), selector)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPod(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	pod, err := s.client.GetPod(r.Context(), user.Namespace(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (s *Server) handlePodLogs(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	s.serveLogs(w, r, user.Namespace(), r.PathValue("name"))
}
