package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/cloud"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/config"
	"github.com/OpenLabsHQ/openlabs-api/support/vault"
)

// fakeStore implements Store in memory for handler tests.
type fakeStore struct {
	users      map[int64]*store.User
	secrets    map[int64]*store.EncryptedSecrets
	blueprints map[int64]*v1.BlueprintRange
	deployed   map[uuid.UUID]*v1.DeployedRange
	jobs       map[string]*v1.JobRecord

	recordJobErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[int64]*store.User{},
		secrets:    map[int64]*store.EncryptedSecrets{},
		blueprints: map[int64]*v1.BlueprintRange{},
		deployed:   map[uuid.UUID]*v1.DeployedRange{},
		jobs:       map[string]*v1.JobRecord{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user *store.User, keys store.UserKeys) (int64, error) {
	for _, u := range f.users {
		if u.Email == user.Email {
			return 0, fmt.Errorf("user %s: %w", user.Email, store.ErrAlreadyExists)
		}
	}
	id := int64(len(f.users) + 1)
	user.ID = id
	f.users[id] = user
	f.secrets[id] = &store.EncryptedSecrets{UserKeys: keys}
	return id, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) TouchLastLogin(context.Context, int64) error { return nil }

func (f *fakeStore) UpdatePassword(_ context.Context, userID int64, hash string, keys store.UserKeys) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	f.secrets[userID].UserKeys = keys
	return nil
}

func (f *fakeStore) GetSecrets(_ context.Context, userID int64) (*store.EncryptedSecrets, error) {
	if s, ok := f.secrets[userID]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SetAWSSecrets(_ context.Context, userID int64, accessKey, secretKey string) error {
	s, ok := f.secrets[userID]
	if !ok {
		return store.ErrNotFound
	}
	s.AWSAccessKey, s.AWSSecretKey = accessKey, secretKey
	return nil
}

func (f *fakeStore) SetAzureSecrets(_ context.Context, userID int64, clientID, clientSecret, tenantID, subscriptionID string) error {
	s, ok := f.secrets[userID]
	if !ok {
		return store.ErrNotFound
	}
	s.AzureClientID, s.AzureClientSecret = clientID, clientSecret
	s.AzureTenantID, s.AzureSubscriptionID = tenantID, subscriptionID
	return nil
}

func (f *fakeStore) CreateBlueprintRange(_ context.Context, _ int64, create v1.BlueprintRangeCreate) (*v1.BlueprintRange, error) {
	id := int64(len(f.blueprints) + 1)
	bp := &v1.BlueprintRange{
		ID: id, Name: create.Name, Description: create.Description,
		Provider: create.Provider, Region: create.Region, VNC: create.VNC, VPN: create.VPN,
	}
	f.blueprints[id] = bp
	return bp, nil
}

func (f *fakeStore) CreateBlueprintVPC(context.Context, int64, v1.BlueprintVPCCreate) (*v1.BlueprintVPC, error) {
	return &v1.BlueprintVPC{ID: 1}, nil
}

func (f *fakeStore) CreateBlueprintSubnet(context.Context, int64, v1.BlueprintSubnetCreate) (*v1.BlueprintSubnet, error) {
	return &v1.BlueprintSubnet{ID: 1}, nil
}

func (f *fakeStore) CreateBlueprintHost(context.Context, int64, v1.BlueprintHostCreate) (*v1.BlueprintHost, error) {
	return &v1.BlueprintHost{ID: 1}, nil
}

func (f *fakeStore) GetBlueprintRange(_ context.Context, _ store.Scope, rangeID int64) (*v1.BlueprintRange, error) {
	if bp, ok := f.blueprints[rangeID]; ok {
		return bp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBlueprintVPC(context.Context, store.Scope, int64) (*v1.BlueprintVPC, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBlueprintSubnet(context.Context, store.Scope, int64) (*v1.BlueprintSubnet, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBlueprintHost(context.Context, store.Scope, int64) (*v1.BlueprintHost, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListBlueprintRanges(context.Context, store.Scope) ([]v1.BlueprintRangeHeader, error) {
	return nil, nil
}

func (f *fakeStore) ListBlueprintVPCs(context.Context, store.Scope, bool) ([]v1.BlueprintVPCHeader, error) {
	return nil, nil
}

func (f *fakeStore) ListBlueprintSubnets(context.Context, store.Scope, bool) ([]v1.BlueprintSubnetHeader, error) {
	return nil, nil
}

func (f *fakeStore) ListBlueprintHosts(context.Context, store.Scope, bool) ([]v1.BlueprintHostHeader, error) {
	return nil, nil
}

func (f *fakeStore) DeleteBlueprintRange(_ context.Context, _ store.Scope, rangeID int64) error {
	if _, ok := f.blueprints[rangeID]; !ok {
		return store.ErrNotFound
	}
	delete(f.blueprints, rangeID)
	return nil
}

func (f *fakeStore) DeleteBlueprintVPC(context.Context, store.Scope, int64) error {
	return store.ErrNotFound
}

func (f *fakeStore) DeleteBlueprintSubnet(context.Context, store.Scope, int64) error {
	return store.ErrNotFound
}

func (f *fakeStore) DeleteBlueprintHost(context.Context, store.Scope, int64) error {
	return store.ErrNotFound
}

func (f *fakeStore) GetDeployedRange(_ context.Context, _ store.Scope, rangeID uuid.UUID) (*v1.DeployedRange, error) {
	if d, ok := f.deployed[rangeID]; ok {
		return d, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListDeployedRanges(context.Context, store.Scope) ([]v1.DeployedRangeHeader, error) {
	var headers []v1.DeployedRangeHeader
	for _, d := range f.deployed {
		headers = append(headers, v1.DeployedRangeHeader{
			ID: d.ID, Name: d.Name, Provider: d.Provider, Region: d.Region, State: d.State,
		})
	}
	return headers, nil
}

func (f *fakeStore) GetDeployedRangeKey(context.Context, store.Scope, uuid.UUID) (*v1.DeployedRangeKey, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) RecordJobQueued(_ context.Context, ownerID int64, arqJobID, jobName string, enqueueTime time.Time) error {
	if f.recordJobErr != nil {
		return f.recordJobErr
	}
	f.jobs[arqJobID] = &v1.JobRecord{
		ID: int64(len(f.jobs) + 1), ArqJobID: arqJobID, JobName: jobName,
		EnqueueTime: enqueueTime, Status: v1.JobStatusQueued,
	}
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, _ store.Scope, arqJobID string) (*v1.JobRecord, error) {
	if j, ok := f.jobs[arqJobID]; ok {
		return j, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListJobs(context.Context, store.Scope, v1.JobStatus) ([]v1.JobRecord, error) {
	return nil, nil
}

// fakeQueue implements Queue.
type fakeQueue struct {
	enqueueErr error
	lastDeploy *v1.DeployJobPayload
	status     v1.JobStatus
}

func (f *fakeQueue) EnqueueDeploy(_ context.Context, payload v1.DeployJobPayload) (string, time.Time, error) {
	if f.enqueueErr != nil {
		return "", time.Time{}, f.enqueueErr
	}
	f.lastDeploy = &payload
	return "task-1", time.Now().UTC(), nil
}

func (f *fakeQueue) EnqueueDestroy(context.Context, v1.DestroyJobPayload) (string, time.Time, error) {
	if f.enqueueErr != nil {
		return "", time.Time{}, f.enqueueErr
	}
	return "task-2", time.Now().UTC(), nil
}

func (f *fakeQueue) Status(context.Context, string) (v1.JobStatus, error) {
	if f.status == "" {
		return v1.JobStatusNotFound, nil
	}
	return f.status, nil
}

type fakeController struct {
	checkErr error
	powered  []string
}

func (f *fakeController) CheckCredentials(context.Context) error { return f.checkErr }

func (f *fakeController) Power(_ context.Context, _ v1.PowerAction, ids []string) error {
	f.powered = ids
	return nil
}

type fixture struct {
	server *Server
	store  *fakeStore
	queue  *fakeQueue
	cloud  *fakeController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFakeStore()
	q := &fakeQueue{}
	ctrl := &fakeController{}
	settings := &config.Settings{
		SecretKey:                "test-secret",
		AccessTokenExpireMinutes: 60,
		CORSOrigins:              "http://localhost:3000",
	}
	srv := New(st, q, settings, logr.Discard())
	srv.clouds = func(v1.Provider, v1.Region, *v1.SecretBundle) (cloud.Controller, error) {
		return ctrl, nil
	}
	return &fixture{server: srv, store: st, queue: q, cloud: ctrl}
}

// seedUser registers a user directly in the fake store with real key
// material and returns the session cookies.
func (fx *fixture) seedUser(t *testing.T, password string) (userID int64, token, encKey string) {
	t.Helper()
	g := NewWithT(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	g.Expect(err).ToNot(HaveOccurred())
	keys, err := newUserKeys(password)
	g.Expect(err).ToNot(HaveOccurred())

	userID, err = fx.store.CreateUser(context.Background(), &store.User{
		Name: "Tester", Email: "tester@example.com", PasswordHash: string(hash),
	}, *keys)
	g.Expect(err).ToNot(HaveOccurred())

	salt, err := base64.StdEncoding.DecodeString(keys.KeySalt)
	g.Expect(err).ToNot(HaveOccurred())
	masterKey, _, err := vault.DeriveMasterKey(password, salt)
	g.Expect(err).ToNot(HaveOccurred())

	token, err = fx.server.newToken(userID, time.Now())
	g.Expect(err).ToNot(HaveOccurred())
	return userID, token, base64.StdEncoding.EncodeToString(masterKey)
}

// seedAWSCredentials encrypts and stores AWS credentials for the user.
func (fx *fixture) seedAWSCredentials(t *testing.T, userID int64) {
	t.Helper()
	g := NewWithT(t)

	secrets := fx.store.secrets[userID]
	encAccess, encSecret, err := secrets.EncryptAWS("AKIAEXAMPLE", "wJalrXUt")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fx.store.SetAWSSecrets(context.Background(), userID, encAccess, encSecret)).To(Succeed())
}

func doJSON(handler http.Handler, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Detail
}

func TestRegister(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	handler := fx.server.Handler()

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/register", v1.RegisterRequest{
		Email: "new@example.com", Password: "longenough", Name: "New User",
	})
	g.Expect(rec.Code).To(Equal(http.StatusCreated))

	var resp v1.UserID
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.ID).To(BeNumerically(">", 0))

	// Same email again conflicts.
	rec = doJSON(handler, http.MethodPost, "/api/v1/auth/register", v1.RegisterRequest{
		Email: "new@example.com", Password: "longenough", Name: "New User",
	})
	g.Expect(rec.Code).To(Equal(http.StatusConflict))

	// Short password is rejected before any store call.
	rec = doJSON(handler, http.MethodPost, "/api/v1/auth/register", v1.RegisterRequest{
		Email: "other@example.com", Password: "short", Name: "X",
	})
	g.Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
}

func TestLogin(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", v1.LoginRequest{
		Email: "tester@example.com", Password: "correct-horse",
	})
	g.Expect(rec.Code).To(Equal(http.StatusOK))

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
		g.Expect(c.HttpOnly).To(BeTrue(), c.Name)
		g.Expect(c.SameSite).To(Equal(http.SameSiteStrictMode), c.Name)
	}
	g.Expect(names).To(HaveKey("token"))
	g.Expect(names).To(HaveKey("enc_key"))

	rec = doJSON(handler, http.MethodPost, "/api/v1/auth/login", v1.LoginRequest{
		Email: "tester@example.com", Password: "wrong",
	})
	g.Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	g.Expect(detail(t, rec)).To(Equal("Invalid email or password"))
}

func TestAuthRequired(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	handler := fx.server.Handler()

	rec := doJSON(handler, http.MethodGet, "/api/v1/users/me", nil)
	g.Expect(rec.Code).To(Equal(http.StatusUnauthorized))

	rec = doJSON(handler, http.MethodGet, "/api/v1/users/me", nil,
		&http.Cookie{Name: "token", Value: "garbage"})
	g.Expect(rec.Code).To(Equal(http.StatusUnauthorized))
}

func TestDeployRangeAdmission(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	userID, token, encKey := fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()

	tokenCookie := &http.Cookie{Name: "token", Value: token}
	encCookie := &http.Cookie{Name: "enc_key", Value: encKey}
	body := v1.DeployRequest{BlueprintID: 1, Name: "demo", Region: v1.RegionUSEast1}

	// Missing enc_key cookie.
	rec := doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	g.Expect(detail(t, rec)).To(ContainSubstring("No encryption key"))

	// Unparseable enc_key cookie.
	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie,
		&http.Cookie{Name: "enc_key", Value: "not-base64!!"})
	g.Expect(rec.Code).To(Equal(http.StatusBadRequest))

	// Blueprint does not exist yet.
	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Blueprint with id 1 not found"))

	_, err := fx.store.CreateBlueprintRange(context.Background(), userID, v1.BlueprintRangeCreate{
		Name: "bp", Provider: v1.ProviderAWS, Region: v1.RegionUSEast1,
	})
	g.Expect(err).ToNot(HaveOccurred())

	// Blueprint exists but no AWS credentials are stored.
	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
	g.Expect(detail(t, rec)).To(Equal("No credentials found for provider: aws"))

	fx.seedAWSCredentials(t, userID)

	// Accepted: queue payload carries the enc_key and blueprint.
	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusAccepted))

	var resp v1.JobSubmissionResponse
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.ArqJobID).To(Equal("task-1"))
	g.Expect(resp.Detail).To(Equal(v1.DetailDBSaveSuccess))
	g.Expect(fx.queue.lastDeploy).ToNot(BeNil())
	g.Expect(fx.queue.lastDeploy.EncKey).To(Equal(encKey))
	g.Expect(fx.queue.lastDeploy.UserID).To(Equal(userID))

	// A failed bookkeeping write degrades the detail but still accepts.
	fx.store.recordJobErr = fmt.Errorf("db down")
	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy", body, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusAccepted))
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.Detail).To(Equal(v1.DetailDBSaveFailure))
}

func TestGetJobPrefersLiveStatus(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	userID, token, _ := fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()
	tokenCookie := &http.Cookie{Name: "token", Value: token}

	g.Expect(fx.store.RecordJobQueued(context.Background(), userID, "task-9", v1.JobDeployRange, time.Now())).To(Succeed())
	fx.queue.status = v1.JobStatusInProgress

	rec := doJSON(handler, http.MethodGet, "/api/v1/jobs/task-9", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusOK))

	var record v1.JobRecord
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(Succeed())
	g.Expect(record.Status).To(Equal(v1.JobStatusInProgress))

	// Unknown to both the database and the queue.
	fx.queue.status = ""
	rec = doJSON(handler, http.MethodGet, "/api/v1/jobs/missing", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
}

func TestGetJobFallsBackToQueue(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	userID, token, encKey := fx.seedUser(t, "correct-horse")
	fx.seedAWSCredentials(t, userID)
	handler := fx.server.Handler()

	_, err := fx.store.CreateBlueprintRange(context.Background(), userID, v1.BlueprintRangeCreate{
		Name: "bp", Provider: v1.ProviderAWS, Region: v1.RegionUSEast1,
	})
	g.Expect(err).ToNot(HaveOccurred())

	tokenCookie := &http.Cookie{Name: "token", Value: token}
	encCookie := &http.Cookie{Name: "enc_key", Value: encKey}

	// The bookkeeping write fails, so the accepted job has no database
	// record.
	fx.store.recordJobErr = fmt.Errorf("db down")
	rec := doJSON(handler, http.MethodPost, "/api/v1/ranges/deploy",
		v1.DeployRequest{BlueprintID: 1, Name: "demo", Region: v1.RegionUSEast1},
		tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusAccepted))

	var resp v1.JobSubmissionResponse
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.Detail).To(Equal(v1.DetailDBSaveFailure))

	// The job stays pollable through the queue view.
	fx.queue.status = v1.JobStatusInProgress
	rec = doJSON(handler, http.MethodGet, "/api/v1/jobs/"+resp.ArqJobID, nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusOK))

	var record v1.JobRecord
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(Succeed())
	g.Expect(record.ArqJobID).To(Equal(resp.ArqJobID))
	g.Expect(record.Status).To(Equal(v1.JobStatusInProgress))

	// Once the queue forgets the task too, the job is gone.
	fx.queue.status = ""
	rec = doJSON(handler, http.MethodGet, "/api/v1/jobs/"+resp.ArqJobID, nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Job not found"))
}

func TestListDeployedRangesEmpty(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	_, token, _ := fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()
	tokenCookie := &http.Cookie{Name: "token", Value: token}

	rec := doJSON(handler, http.MethodGet, "/api/v1/ranges", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Unable to find any deployed ranges that you own!"))

	rangeID := uuid.New()
	fx.store.deployed[rangeID] = &v1.DeployedRange{
		ID: rangeID, Name: "demo", Provider: v1.ProviderAWS,
		Region: v1.RegionUSEast1, State: v1.RangeStateOn,
	}
	rec = doJSON(handler, http.MethodGet, "/api/v1/ranges", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusOK))

	var headers []v1.DeployedRangeHeader
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &headers)).To(Succeed())
	g.Expect(headers).To(HaveLen(1))
	g.Expect(headers[0].ID).To(Equal(rangeID))
}

func TestListBlueprintsEmpty(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	_, token, _ := fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()
	tokenCookie := &http.Cookie{Name: "token", Value: token}

	rec := doJSON(handler, http.MethodGet, "/api/v1/blueprints/ranges", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Unable to find any range blueprints that you own!"))

	rec = doJSON(handler, http.MethodGet, "/api/v1/blueprints/vpcs", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Unable to find any VPC blueprints that you own!"))

	rec = doJSON(handler, http.MethodGet, "/api/v1/blueprints/subnets?standalone_only=true", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Unable to find any standalone subnet blueprints that you own!"))

	rec = doJSON(handler, http.MethodGet, "/api/v1/blueprints/hosts?standalone_only=true", nil, tokenCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(detail(t, rec)).To(Equal("Unable to find any standalone host blueprints that you own!"))
}

func TestDestroyRangeAdmission(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	userID, token, encKey := fx.seedUser(t, "correct-horse")
	handler := fx.server.Handler()

	rangeID := uuid.New()
	fx.store.deployed[rangeID] = &v1.DeployedRange{
		ID: rangeID, Name: "demo", Provider: v1.ProviderAWS,
		Region: v1.RegionUSEast1, State: v1.RangeStateOn,
	}

	tokenCookie := &http.Cookie{Name: "token", Value: token}
	encCookie := &http.Cookie{Name: "enc_key", Value: encKey}

	// No credentials stored for the range's provider.
	rec := doJSON(handler, http.MethodDelete, "/api/v1/ranges/"+rangeID.String(), nil,
		tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
	g.Expect(detail(t, rec)).To(Equal("No credentials found for provider: aws"))

	fx.seedAWSCredentials(t, userID)

	rec = doJSON(handler, http.MethodDelete, "/api/v1/ranges/"+rangeID.String(), nil,
		tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusAccepted))

	var resp v1.JobSubmissionResponse
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.ArqJobID).To(Equal("task-2"))
}

func TestPowerRange(t *testing.T) {
	g := NewWithT(t)
	fx := newFixture(t)
	userID, token, encKey := fx.seedUser(t, "correct-horse")
	fx.seedAWSCredentials(t, userID)
	handler := fx.server.Handler()

	rangeID := uuid.New()
	fx.store.deployed[rangeID] = &v1.DeployedRange{
		ID: rangeID, Provider: v1.ProviderAWS, Region: v1.RegionUSEast1,
		VPCs: []v1.DeployedVPC{{
			Subnets: []v1.DeployedSubnet{{
				Hosts: []v1.DeployedHost{
					{ID: 1, ResourceID: "i-aaa"},
					{ID: 2, ResourceID: "i-bbb"},
				},
			}},
		}},
	}

	tokenCookie := &http.Cookie{Name: "token", Value: token}
	encCookie := &http.Cookie{Name: "enc_key", Value: encKey}

	rec := doJSON(handler, http.MethodPost, "/api/v1/ranges/"+rangeID.String()+"/power",
		v1.PowerRequest{Action: v1.PowerActionOff}, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(fx.cloud.powered).To(ConsistOf("i-aaa", "i-bbb"))

	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/"+rangeID.String()+"/power",
		v1.PowerRequest{Hosts: []int64{2}, Action: v1.PowerActionRestart}, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(fx.cloud.powered).To(ConsistOf("i-bbb"))

	rec = doJSON(handler, http.MethodPost, "/api/v1/ranges/"+rangeID.String()+"/power",
		v1.PowerRequest{Hosts: []int64{99}, Action: v1.PowerActionOn}, tokenCookie, encCookie)
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
}
