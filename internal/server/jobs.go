package server

import (
	"net/http"

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, workload.KindJob)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	list, err := s.client.ListJobs(r.Context(), user.Namespace())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	job, err := s.client.GetJob(r.Context(), user.Namespace(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.client.DeleteJob(r.Context(), user.Namespace(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedStatus())
}

// handleJobLogs resolves the job's pods through the job-name label the Job
// controller stamps on them and relays the first pod's logs.
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	jobName := r.PathValue("name")

	pods, err := s.client.ListPods(r.Context(), user.Namespace(), batchv1.JobNameLabel+"="+jobName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(pods.Items) == 0 {
		s.writeError(w, r, httpErrorf(http.StatusNotFound, "No pods found for job %s", jobName))
		return
	}
	s.serveLogs(w, r, user.Namespace(), pods.Items[0].Name)
}

// deletedStatus is the body returned by the delete routes, shaped like the
// Status object the Kubernetes API returns for deletions.
func deletedStatus() metav1.Status {
	return metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusSuccess,
	}
}
