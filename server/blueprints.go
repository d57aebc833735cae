package server

import (
	"fmt"
	"net/http"
	"strconv"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, &v1.ValidationError{Detail: "invalid id: " + r.PathValue("id")}
	}
	return id, nil
}

func standaloneOnly(r *http.Request) bool {
	return r.URL.Query().Get("standalone_only") == "true"
}

func standaloneText(standalone bool) string {
	if standalone {
		return " standalone"
	}
	return ""
}

func (s *Server) handleCreateBlueprintRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var create v1.BlueprintRangeCreate
	if err := decodeBody(r, &create); err != nil {
		s.writeError(w, err)
		return
	}
	if err := create.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	blueprint, err := s.store.CreateBlueprintRange(r.Context(), caller.UserID, create)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, blueprint)
}

func (s *Server) handleListBlueprintRanges(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	headers, err := s.store.ListBlueprintRanges(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(headers) == 0 {
		s.writeDetail(w, http.StatusNotFound, "Unable to find any range blueprints that you own!")
		return
	}
	s.writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetBlueprintRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	blueprint, err := s.store.GetBlueprintRange(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, blueprint)
}

func (s *Server) handleDeleteBlueprintRange(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteBlueprintRange(r.Context(), caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateBlueprintVPC(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var create v1.BlueprintVPCCreate
	if err := decodeBody(r, &create); err != nil {
		s.writeError(w, err)
		return
	}
	if err := create.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	vpc, err := s.store.CreateBlueprintVPC(r.Context(), caller.UserID, create)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, vpc)
}

func (s *Server) handleListBlueprintVPCs(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	standalone := standaloneOnly(r)
	headers, err := s.store.ListBlueprintVPCs(r.Context(), caller, standalone)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(headers) == 0 {
		s.writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("Unable to find any%s VPC blueprints that you own!", standaloneText(standalone)))
		return
	}
	s.writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetBlueprintVPC(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	vpc, err := s.store.GetBlueprintVPC(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vpc)
}

func (s *Server) handleDeleteBlueprintVPC(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteBlueprintVPC(r.Context(), caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateBlueprintSubnet(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var create v1.BlueprintSubnetCreate
	if err := decodeBody(r, &create); err != nil {
		s.writeError(w, err)
		return
	}
	if err := create.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	subnet, err := s.store.CreateBlueprintSubnet(r.Context(), caller.UserID, create)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, subnet)
}

func (s *Server) handleListBlueprintSubnets(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	standalone := standaloneOnly(r)
	headers, err := s.store.ListBlueprintSubnets(r.Context(), caller, standalone)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(headers) == 0 {
		s.writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("Unable to find any%s subnet blueprints that you own!", standaloneText(standalone)))
		return
	}
	s.writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetBlueprintSubnet(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	subnet, err := s.store.GetBlueprintSubnet(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, subnet)
}

func (s *Server) handleDeleteBlueprintSubnet(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteBlueprintSubnet(r.Context(), caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateBlueprintHost(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var create v1.BlueprintHostCreate
	if err := decodeBody(r, &create); err != nil {
		s.writeError(w, err)
		return
	}
	if err := create.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	host, err := s.store.CreateBlueprintHost(r.Context(), caller.UserID, create)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, host)
}

func (s *Server) handleListBlueprintHosts(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	standalone := standaloneOnly(r)
	headers, err := s.store.ListBlueprintHosts(r.Context(), caller, standalone)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(headers) == 0 {
		s.writeDetail(w, http.StatusNotFound,
			fmt.Sprintf("Unable to find any%s host blueprints that you own!", standaloneText(standalone)))
		return
	}
	s.writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetBlueprintHost(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	host, err := s.store.GetBlueprintHost(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, host)
}

func (s *Server) handleDeleteBlueprintHost(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteBlueprintHost(r.Context(), caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
