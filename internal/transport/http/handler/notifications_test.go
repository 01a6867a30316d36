package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-notify-nosql/internal/config"
	"github.com/go-notify-nosql/internal/domain"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
	"github.com/go-notify-nosql/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) CreateOrGet(ctx context.Context, userID string, req domain.CreateNotificationRequest) (*domain.CreateResult, error) {
	args := m.Called(ctx, userID, req)
	if res, _ := args.Get(0).(*domain.CreateResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, limit, since)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *mockNotificationSvc) Get(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	args := m.Called(ctx, userID, ids)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationSvc) Delete(ctx context.Context, userID, notificationID string) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

// bearerReq builds a request with a signed Bearer token for the given userID.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID string, body []byte) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, "sess1")
	require.NoError(t, err)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// withChiParams injects chi URL params (key, value pairs) into the request context.
func withChiParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serveAuthed wraps the handler with middleware.Auth before serving.
func serveAuthed(p *jwtinfra.Provider, h http.Handler, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p)(h).ServeHTTP(w, r)
}

// --- Send tests ---

func TestSend_MissingClaims(t *testing.T) {
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)
	r := httptest.NewRequest(http.MethodPost, "/v1/notifications/send-test", nil)
	rr := httptest.NewRecorder()
	h.Send(rr, r) // called directly, no claims in context
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSend_InvalidBody(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/send-test", "u1", []byte("not-json"))
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Send), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSend_ValidationFailure(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)
	body, _ := json.Marshal(domain.CreateNotificationRequest{Title: "no body"}) // body is required

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/send-test", "u1", body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Send), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSend_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	jobID := "j1"
	res := &domain.CreateResult{
		Notification: &domain.Notification{NotificationID: "n1", UserID: "u1", Title: "hi", Body: "there"},
		JobID:        &jobID,
	}
	svc.On("CreateOrGet", mock.Anything, "u1", mock.Anything).Return(res, nil)
	h := NewNotificationHandler(svc)
	body, _ := json.Marshal(domain.CreateNotificationRequest{Title: "hi", Body: "there"})

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/send-test", "u1", body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Send), rr, r)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp CreateEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.JobID)
	assert.Equal(t, "j1", *resp.JobID)
	assert.False(t, resp.Duplicated)
	svc.AssertExpectations(t)
}

func TestSend_Duplicate_StillAccepted(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	jobID := "j1"
	res := &domain.CreateResult{
		Notification: &domain.Notification{NotificationID: "n1", UserID: "u1", Title: "hi", Body: "there"},
		JobID:        &jobID,
		Duplicated:   true,
	}
	svc.On("CreateOrGet", mock.Anything, "u1", mock.Anything).Return(res, nil)
	h := NewNotificationHandler(svc)
	body, _ := json.Marshal(domain.CreateNotificationRequest{Title: "hi", Body: "there", IdempotencyKey: "k1"})

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/send-test", "u1", body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Send), rr, r)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp CreateEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Duplicated)
	assert.Equal(t, "duplicate notification detected", resp.Message)
	svc.AssertExpectations(t)
}

// --- List tests ---

func TestList_ReturnsUnreadCount(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	rows := []domain.Notification{
		{NotificationID: "n1", UserID: "u1", IsRead: true},
		{NotificationID: "n2", UserID: "u1"},
		{NotificationID: "n3", UserID: "u1"},
	}
	svc.On("List", mock.Anything, "u1", int32(20), time.Time{}).Return(rows, nil)
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/notifications", "u1", nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.List), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp NotificationListEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.UnreadCount)
	svc.AssertExpectations(t)
}

func TestList_BadSince(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/notifications?since=yesterday", "u1", nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.List), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestList_SinceAndLimitForwarded(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.On("List", mock.Anything, "u1", int32(5), since).Return([]domain.Notification{}, nil)
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/notifications?limit=5&since=2025-06-01T00:00:00Z", "u1", nil)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.List), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Get tests ---

func TestGetNotification_NotFound(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "u1", "n-missing").Return(nil, domain.ErrNotFound)
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodGet, "/v1/notifications/n-missing", "u1", nil)
	r = withChiParams(r, "id", "n-missing")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Get), rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertExpectations(t)
}

// --- MarkRead tests ---

func TestMarkRead_EmptyIDs(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	h := NewNotificationHandler(svc)
	body, _ := json.Marshal(domain.MarkReadRequest{IDs: []string{}})

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/mark-read", "u1", body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.MarkRead), rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMarkRead_ReturnsUpdatedCount(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	svc.On("MarkRead", mock.Anything, "u1", []string{"n1", "n2", "n3"}).Return(2, nil)
	h := NewNotificationHandler(svc)
	body, _ := json.Marshal(domain.MarkReadRequest{IDs: []string{"n1", "n2", "n3"}})

	r := bearerReq(t, p, http.MethodPost, "/v1/notifications/mark-read", "u1", body)
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.MarkRead), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp["updated"])
	svc.AssertExpectations(t)
}

// --- Delete tests ---

func TestDeleteNotification_HappyPath(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockNotificationSvc{}
	svc.On("Delete", mock.Anything, "u1", "n1").Return(nil)
	h := NewNotificationHandler(svc)

	r := bearerReq(t, p, http.MethodDelete, "/v1/notifications/n1", "u1", nil)
	r = withChiParams(r, "id", "n1")
	rr := httptest.NewRecorder()
	serveAuthed(p, http.HandlerFunc(h.Delete), rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
