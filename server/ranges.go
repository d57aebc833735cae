package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

// pathRangeID parses the {id} path segment as a deployed range UUID.
func pathRangeID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &v1.ValidationError{Detail: "invalid range id: " + r.PathValue("id")}
	}
	return id, nil
}

func (s *Server) handleDeployRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	masterKey, present, err := s.masterKey(r)
	if !present {
		s.writeDetail(w, http.StatusUnauthorized, "No encryption key found. Please log in again.")
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req v1.DeployRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	blueprint, err := s.store.GetBlueprintRange(r.Context(), caller, req.BlueprintID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeDetail(w, http.StatusNotFound, fmt.Sprintf("Blueprint with id %d not found", req.BlueprintID))
			return
		}
		s.writeError(w, err)
		return
	}

	// Admission check: refuse to enqueue work the worker cannot finish.
	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bundle, err := secrets.DecryptBundle(masterKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !bundle.HasProvider(blueprint.Provider) {
		s.writeDetail(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("No credentials found for provider: %s", blueprint.Provider))
		return
	}

	encKey, _ := r.Cookie(cookieEncKey)
	taskID, enqueueTime, err := s.queue.EnqueueDeploy(r.Context(), v1.DeployJobPayload{
		EncKey:        encKey.Value,
		DeployRequest: req,
		Blueprint:     *blueprint,
		UserID:        caller.UserID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.acceptJob(w, r, caller.UserID, taskID, v1.JobDeployRange, enqueueTime)
}

func (s *Server) handleDestroyRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	rangeID, err := pathRangeID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	masterKey, present, err := s.masterKey(r)
	if !present {
		s.writeDetail(w, http.StatusUnauthorized, "No encryption key found. Please log in again.")
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	deployed, err := s.store.GetDeployedRange(r.Context(), caller, rangeID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Admission check: the worker needs provider credentials to tear the
	// range down, so refuse the job up front when none are stored.
	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bundle, err := secrets.DecryptBundle(masterKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !bundle.HasProvider(deployed.Provider) {
		s.writeDetail(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("No credentials found for provider: %s", deployed.Provider))
		return
	}

	encKey, _ := r.Cookie(cookieEncKey)
	taskID, enqueueTime, err := s.queue.EnqueueDestroy(r.Context(), v1.DestroyJobPayload{
		EncKey:  encKey.Value,
		RangeID: rangeID.String(),
		UserID:  caller.UserID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.acceptJob(w, r, caller.UserID, taskID, v1.JobDestroyRange, enqueueTime)
}

// acceptJob records the bookkeeping row best-effort and answers 202.
// Queue acceptance is the source of truth; a failed database write only
// degrades the status detail.
func (s *Server) acceptJob(w http.ResponseWriter, r *http.Request, userID int64, taskID, jobName string, enqueueTime time.Time) {
	detail := v1.DetailDBSaveSuccess
	if err := s.store.RecordJobQueued(r.Context(), userID, taskID, jobName, enqueueTime); err != nil {
		s.log.Error(err, "recording queued job", "task", taskID)
		detail = v1.DetailDBSaveFailure
	}
	s.writeJSON(w, http.StatusAccepted, v1.JobSubmissionResponse{ArqJobID: taskID, Detail: detail})
}

func (s *Server) handleListDeployedRanges(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	headers, err := s.store.ListDeployedRanges(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(headers) == 0 {
		s.writeDetail(w, http.StatusNotFound, "Unable to find any deployed ranges that you own!")
		return
	}
	s.writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetDeployedRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	rangeID, err := pathRangeID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	deployed, err := s.store.GetDeployedRange(r.Context(), caller, rangeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// The state blob is a provisioner internal.
	deployed.StateBlob = nil
	s.writeJSON(w, http.StatusOK, deployed)
}

func (s *Server) handleGetRangeKey(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	rangeID, err := pathRangeID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	key, err := s.store.GetDeployedRangeKey(r.Context(), caller, rangeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, key)
}

func (s *Server) handlePowerRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	rangeID, err := pathRangeID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	masterKey, present, err := s.masterKey(r)
	if !present {
		s.writeDetail(w, http.StatusUnauthorized, "No encryption key found. Please log in again.")
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req v1.PowerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	deployed, err := s.store.GetDeployedRange(r.Context(), caller, rangeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resourceIDs, err := hostResourceIDs(deployed, req.Hosts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bundle, err := secrets.DecryptBundle(masterKey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	controller, err := s.clouds(deployed.Provider, deployed.Region, bundle)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := controller.Power(r.Context(), req.Action, resourceIDs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "hosts": len(resourceIDs)})
}

// hostResourceIDs resolves requested host IDs to provider resource IDs.
// An empty request targets every host in the range.
func hostResourceIDs(deployed *v1.DeployedRange, hostIDs []int64) ([]string, error) {
	byID := map[int64]string{}
	var all []string
	for _, vpc := range deployed.VPCs {
		for _, subnet := range vpc.Subnets {
			for _, host := range subnet.Hosts {
				byID[host.ID] = host.ResourceID
				all = append(all, host.ResourceID)
			}
		}
	}
	if len(hostIDs) == 0 {
		return all, nil
	}
	ids := make([]string, 0, len(hostIDs))
	for _, id := range hostIDs {
		resourceID, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("host %d: %w", id, store.ErrNotFound)
		}
		ids = append(ids, resourceID)
	}
	return ids, nil
}
