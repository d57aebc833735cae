package server

import (
	"errors"
	"net/http"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

// handleGetJob resolves a job's status, preferring the live queue view
// and falling back to the database record once the task has left Redis.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	taskID := r.PathValue("id")

	record, err := s.store.GetJob(r.Context(), caller, taskID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.writeError(w, err)
			return
		}
		// A submission answered with a degraded detail has no record
		// yet the queue still knows the task, so resolve the status
		// from the queue alone until the worker's upsert lands.
		live, liveErr := s.queue.Status(r.Context(), taskID)
		if liveErr != nil {
			s.log.Error(liveErr, "inspecting queue", "task", taskID)
		}
		if liveErr != nil || live == v1.JobStatusNotFound {
			s.writeDetail(w, http.StatusNotFound, "Job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, v1.JobRecord{ArqJobID: taskID, Status: live})
		return
	}

	if !record.Status.Terminal() {
		live, err := s.queue.Status(r.Context(), taskID)
		if err != nil {
			s.log.Error(err, "inspecting queue", "task", taskID)
		} else if live != v1.JobStatusNotFound {
			record.Status = live
		}
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	status := v1.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.writeDetail(w, http.StatusUnprocessableEntity, "invalid status filter: "+string(status))
		return
	}
	records, err := s.store.ListJobs(r.Context(), caller, status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}
