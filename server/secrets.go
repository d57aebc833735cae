package server

import (
	"errors"
	"net/http"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/cloud"
	"github.com/OpenLabsHQ/openlabs-api/store"
)

func (s *Server) handleSecretStatus(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, secrets.Status())
}

func (s *Server) handleAWSSecrets(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var req v1.AWSSecretsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	bundle := &v1.SecretBundle{AWSAccessKey: req.AccessKey, AWSSecretKey: req.SecretKey}
	if !s.verifyCredentials(w, r, v1.ProviderAWS, bundle, "Invalid AWS credentials") {
		return
	}

	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	encAccess, encSecret, err := secrets.EncryptAWS(req.AccessKey, req.SecretKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetAWSSecrets(r.Context(), caller.UserID, encAccess, encSecret); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "AWS credentials saved"})
}

func (s *Server) handleAzureSecrets(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var req v1.AzureSecretsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	bundle := &v1.SecretBundle{
		AzureClientID:       req.ClientID,
		AzureClientSecret:   req.ClientSecret,
		AzureTenantID:       req.TenantID,
		AzureSubscriptionID: req.SubscriptionID,
	}
	if !s.verifyCredentials(w, r, v1.ProviderAzure, bundle, "Invalid Azure credentials") {
		return
	}

	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	encClientID, encClientSecret, encTenantID, encSubscriptionID, err :=
		secrets.EncryptAzure(req.ClientID, req.ClientSecret, req.TenantID, req.SubscriptionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.store.SetAzureSecrets(r.Context(), caller.UserID,
		encClientID, encClientSecret, encTenantID, encSubscriptionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Azure credentials saved"})
}

// verifyCredentials checks uploaded credentials against the provider
// before they are stored. Reports whether the request may proceed.
func (s *Server) verifyCredentials(w http.ResponseWriter, r *http.Request, provider v1.Provider, bundle *v1.SecretBundle, detail string) bool {
	controller, err := s.clouds(provider, v1.RegionUSEast1, bundle)
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if err := controller.CheckCredentials(r.Context()); err != nil {
		if errors.Is(err, cloud.ErrInvalidCredentials) {
			s.writeDetail(w, http.StatusUnauthorized, detail)
			return false
		}
		s.writeError(w, err)
		return false
	}
	return true
}
