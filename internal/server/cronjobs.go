package server

import (
	"net/http"

	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

func (s *Server) handleCreateCronJob(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, workload.KindCronJob)
}

func (s *Server) handleListCronJobs(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	list, err := s.client.ListCronJobs(r.Context(), user.Namespace())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCronJob(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	cronJob, err := s.client.GetCronJob(r.Context(), user.Namespace(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cronJob)
}

func (s *Server) handleDeleteCronJob(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.client.DeleteCronJob(r.Context(), user.Namespace(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedStatus())
}
