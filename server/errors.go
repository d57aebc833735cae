package server

import (
	"encoding/json"
	"errors"
	"net/http"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/vault"
)

// errorBody is the JSON error envelope of every non-2xx response.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err, "encoding response")
	}
}

// writeError maps err onto a status code and emits the error envelope.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *v1.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: verr.Detail})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Detail: err.Error()})
	case errors.Is(err, store.ErrAlreadyExists):
		s.writeJSON(w, http.StatusConflict, errorBody{Detail: err.Error()})
	case errors.Is(err, vault.ErrAuthenticationFailure), errors.Is(err, vault.ErrInvalidEncryptionKey):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	default:
		s.log.Error(err, "request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

// writeDetail emits a bare detail envelope with the given status.
func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorBody{Detail: detail})
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &v1.ValidationError{Detail: "malformed request body: " + err.Error()}
	}
	return nil
}
