// Package server is the HTTP front end of the control plane. Handlers
// validate, persist and enqueue; all cloud work happens in the worker.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/cloud"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/config"
)

// Store is the persistence surface the handlers depend on. *store.Store
// satisfies it; tests substitute fakes.
type Store interface {
	CreateUser(ctx context.Context, user *store.User, keys store.UserKeys) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	TouchLastLogin(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string, keys store.UserKeys) error
	GetSecrets(ctx context.Context, userID int64) (*store.EncryptedSecrets, error)
	SetAWSSecrets(ctx context.Context, userID int64, accessKey, secretKey string) error
	SetAzureSecrets(ctx context.Context, userID int64, clientID, clientSecret, tenantID, subscriptionID string) error

	CreateBlueprintRange(ctx context.Context, ownerID int64, create v1.BlueprintRangeCreate) (*v1.BlueprintRange, error)
	CreateBlueprintVPC(ctx context.Context, ownerID int64, create v1.BlueprintVPCCreate) (*v1.BlueprintVPC, error)
	CreateBlueprintSubnet(ctx context.Context, ownerID int64, create v1.BlueprintSubnetCreate) (*v1.BlueprintSubnet, error)
	CreateBlueprintHost(ctx context.Context, ownerID int64, create v1.BlueprintHostCreate) (*v1.BlueprintHost, error)
	GetBlueprintRange(ctx context.Context, scope store.Scope, rangeID int64) (*v1.BlueprintRange, error)
	GetBlueprintVPC(ctx context.Context, scope store.Scope, vpcID int64) (*v1.BlueprintVPC, error)
	GetBlueprintSubnet(ctx context.Context, scope store.Scope, subnetID int64) (*v1.BlueprintSubnet, error)
	GetBlueprintHost(ctx context.Context, scope store.Scope, hostID int64) (*v1.BlueprintHost, error)
	ListBlueprintRanges(ctx context.Context, scope store.Scope) ([]v1.BlueprintRangeHeader, error)
	ListBlueprintVPCs(ctx context.Context, scope store.Scope, standaloneOnly bool) ([]v1.BlueprintVPCHeader, error)
	ListBlueprintSubnets(ctx context.Context, scope store.Scope, standaloneOnly bool) ([]v1.BlueprintSubnetHeader, error)
	ListBlueprintHosts(ctx context.Context, scope store.Scope, standaloneOnly bool) ([]v1.BlueprintHostHeader, error)
	DeleteBlueprintRange(ctx context.Context, scope store.Scope, rangeID int64) error
	DeleteBlueprintVPC(ctx context.Context, scope store.Scope, vpcID int64) error
	DeleteBlueprintSubnet(ctx context.Context, scope store.Scope, subnetID int64) error
	DeleteBlueprintHost(ctx context.Context, scope store.Scope, hostID int64) error

	GetDeployedRange(ctx context.Context, scope store.Scope, rangeID uuid.UUID) (*v1.DeployedRange, error)
	ListDeployedRanges(ctx context.Context, scope store.Scope) ([]v1.DeployedRangeHeader, error)
	GetDeployedRangeKey(ctx context.Context, scope store.Scope, rangeID uuid.UUID) (*v1.DeployedRangeKey, error)

	RecordJobQueued(ctx context.Context, ownerID int64, arqJobID, jobName string, enqueueTime time.Time) error
	GetJob(ctx context.Context, scope store.Scope, arqJobID string) (*v1.JobRecord, error)
	ListJobs(ctx context.Context, scope store.Scope, status v1.JobStatus) ([]v1.JobRecord, error)
}

// Queue is the job submission surface the handlers depend on.
type Queue interface {
	EnqueueDeploy(ctx context.Context, payload v1.DeployJobPayload) (string, time.Time, error)
	EnqueueDestroy(ctx context.Context, payload v1.DestroyJobPayload) (string, time.Time, error)
	Status(ctx context.Context, taskID string) (v1.JobStatus, error)
}

// CloudFactory builds provider controllers; tests substitute fakes.
type CloudFactory func(provider v1.Provider, region v1.Region, secrets *v1.SecretBundle) (cloud.Controller, error)

// Server carries the handler dependencies.
type Server struct {
	store    Store
	queue    Queue
	clouds   CloudFactory
	settings *config.Settings
	log      logr.Logger
}

// New builds a Server.
func New(st Store, q Queue, settings *config.Settings, log logr.Logger) *Server {
	return &Server{
		store:    st,
		queue:    q,
		clouds:   cloud.NewController,
		settings: settings,
		log:      log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health/ping", s.handlePing)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)

	mux.Handle("GET /api/v1/users/me", s.authenticated(s.handleMe))
	mux.Handle("POST /api/v1/users/me/password", s.authenticated(s.handlePasswordUpdate))
	mux.Handle("GET /api/v1/users/me/secrets", s.authenticated(s.handleSecretStatus))
	mux.Handle("POST /api/v1/users/me/secrets/aws", s.authenticated(s.handleAWSSecrets))
	mux.Handle("POST /api/v1/users/me/secrets/azure", s.authenticated(s.handleAzureSecrets))

	mux.Handle("POST /api/v1/blueprints/ranges", s.authenticated(s.handleCreateBlueprintRange))
	mux.Handle("GET /api/v1/blueprints/ranges", s.authenticated(s.handleListBlueprintRanges))
	mux.Handle("GET /api/v1/blueprints/ranges/{id}", s.authenticated(s.handleGetBlueprintRange))
	mux.Handle("DELETE /api/v1/blueprints/ranges/{id}", s.authenticated(s.handleDeleteBlueprintRange))
	mux.Handle("POST /api/v1/blueprints/vpcs", s.authenticated(s.handleCreateBlueprintVPC))
	mux.Handle("GET /api/v1/blueprints/vpcs", s.authenticated(s.handleListBlueprintVPCs))
	mux.Handle("GET /api/v1/blueprints/vpcs/{id}", s.authenticated(s.handleGetBlueprintVPC))
	mux.Handle("DELETE /api/v1/blueprints/vpcs/{id}", s.authenticated(s.handleDeleteBlueprintVPC))
	mux.Handle("POST /api/v1/blueprints/subnets", s.authenticated(s.handleCreateBlueprintSubnet))
	mux.Handle("GET /api/v1/blueprints/subnets", s.authenticated(s.handleListBlueprintSubnets))
	mux.Handle("GET /api/v1/blueprints/subnets/{id}", s.authenticated(s.handleGetBlueprintSubnet))
	mux.Handle("DELETE /api/v1/blueprints/subnets/{id}", s.authenticated(s.handleDeleteBlueprintSubnet))
	mux.Handle("POST /api/v1/blueprints/hosts", s.authenticated(s.handleCreateBlueprintHost))
	mux.Handle("GET /api/v1/blueprints/hosts", s.authenticated(s.handleListBlueprintHosts))
	mux.Handle("GET /api/v1/blueprints/hosts/{id}", s.authenticated(s.handleGetBlueprintHost))
	mux.Handle("DELETE /api/v1/blueprints/hosts/{id}", s.authenticated(s.handleDeleteBlueprintHost))

	mux.Handle("POST /api/v1/ranges/deploy", s.authenticated(s.handleDeployRange))
	mux.Handle("GET /api/v1/ranges", s.authenticated(s.handleListDeployedRanges))
	mux.Handle("GET /api/v1/ranges/{id}", s.authenticated(s.handleGetDeployedRange))
	mux.Handle("GET /api/v1/ranges/{id}/key", s.authenticated(s.handleGetRangeKey))
	mux.Handle("DELETE /api/v1/ranges/{id}", s.authenticated(s.handleDestroyRange))
	mux.Handle("POST /api/v1/ranges/{id}/power", s.authenticated(s.handlePowerRange))

	mux.Handle("GET /api/v1/jobs", s.authenticated(s.handleListJobs))
	mux.Handle("GET /api/v1/jobs/{id}", s.authenticated(s.handleGetJob))

	return s.cors(s.logged(mux))
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", "addr", s.settings.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"msg": "pong"})
}

// logged emits one line per request.
func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.V(1).Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// cors applies the configured CORS policy.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.settings.CORSOrigins)
		if s.settings.CORSCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", s.settings.CORSMethods)
			h.Set("Access-Control-Allow-Headers", s.settings.CORSHeaders)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
