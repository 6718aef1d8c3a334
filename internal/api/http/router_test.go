package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/api/http/handlers"
	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/service"
)

type stubSessions struct {
	mu     sync.Mutex
	active map[string]string
}

func (s *stubSessions) Create(_ context.Context, subjectID string) (*domain.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "sess-" + subjectID
	s.active[id] = subjectID
	return &domain.AuthSession{ID: id, SubjectID: subjectID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubSessions) Lookup(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[sessionID], nil
}

func (s *stubSessions) Revoke(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
	return nil
}

func (s *stubSessions) Subscribe(context.Context, string) (<-chan domain.AuthStateChange, func(), error) {
	return nil, func() {}, nil
}

type stubRecords map[string]domain.AccessControl

func (s stubRecords) GetBySubjectID(_ context.Context, subjectID string) (*domain.AccessControl, error) {
	record, ok := s[subjectID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &record, nil
}

func (s stubRecords) ListByCompany(context.Context, string, int, int) ([]domain.AccessControl, error) {
	return nil, nil
}

type noCredentials struct{}

func (noCredentials) GetBySubjectID(context.Context, string) (*domain.Credential, error) {
	return nil, pgx.ErrNoRows
}

func (noCredentials) GetByEmail(context.Context, string) (*domain.Credential, error) {
	return nil, pgx.ErrNoRows
}

func (noCredentials) UpdatePasswordHash(context.Context, string, string) error {
	return pgx.ErrNoRows
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app      *fiber.App
	tokens   *auth.TokenManager
	sessions *stubSessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	records := stubRecords{
		"mgr":  {SubjectID: "mgr", Name: "Max", Role: "Manager", CompanyName: "Acme", Department: "IT", IsActive: true},
		"emp":  {SubjectID: "emp", Name: "Eve", Role: "Employee", CompanyName: "Acme", Department: "IT", IsActive: true},
		"lead": {SubjectID: "lead", Name: "Lee", Role: "Team Leader", CompanyName: "Acme", Department: "IT", IsActive: true},
	}
	srv := &testServer{
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
		sessions: &stubSessions{active: map[string]string{}},
	}
	mw := auth.NewMiddleware(srv.tokens, srv.sessions, records, logger, metrics)
	authCfg := config.AuthConfig{LoginRatePerSecond: 0.001, LoginBurst: 1}

	authService := service.NewAuthService(authCfg, service.AuthDependencies{
		CredentialRepo:    noCredentials{},
		AccessControlRepo: records,
		Sessions:          srv.sessions,
		Tokens:            srv.tokens,
	})
	complaintService := service.NewComplaintService(service.ComplaintDependencies{AccessControlRepo: records, Metrics: metrics})

	srv.app = fiber.New()
	RegisterMiddlewares(srv.app, logger, metrics, time.Second)
	RegisterRoutes(srv.app, RouteConfig{
		Health: handlers.NewHealthHandler("itconnect", "test", map[string]handlers.Pinger{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Session:        handlers.NewSessionHandler(mw, logger),
		Complaints:     handlers.NewComplaintsHandler(complaintService),
		AuthMiddleware: mw,
		AuthConfig:     authCfg,
		Metrics:        metrics,
		Gatherer:       registry,
	})
	return srv
}

func (s *testServer) tokenFor(t *testing.T, subjectID string) string {
	t.Helper()
	sess, err := s.sessions.Create(context.Background(), subjectID)
	require.NoError(t, err)
	token, err := s.tokens.GenerateToken(subjectID, sess.ID, sess.ExpiresAt)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func errorCode(payload map[string]any) string {
	errBody, _ := payload["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t)

	status, payload := srv.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", errorCode(payload))
	details := payload["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["postgres"])
	assert.Equal(t, "connection refused", details["redis"])

	status, _ = srv.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	status, payload := srv.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))
}

func TestPermissionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	status, payload := srv.do(t, http.MethodGet, "/me/permissions", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(payload))

	status, payload = srv.do(t, http.MethodGet, "/me/permissions", srv.tokenFor(t, "mgr"), "")
	require.Equal(t, http.StatusOK, status)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "Manager", data["role_level"])
	assert.Equal(t, "department", data["initial_view_mode"])
	assert.Equal(t, []any{"personal", "assigned_to_me", "department", "global"}, data["allowed_view_modes"])
	permissions := data["permissions"].(map[string]any)
	assert.Equal(t, true, permissions["can_view_statistics"])
	assert.Equal(t, false, permissions["can_delete_complaints"])
}

func TestSessionEndpointReportsClosedStates(t *testing.T) {
	srv := newTestServer(t)

	status, payload := srv.do(t, http.MethodGet, "/session", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_authenticated", payload["data"].(map[string]any)["state"])

	status, payload = srv.do(t, http.MethodGet, "/session", srv.tokenFor(t, "emp"), "")
	require.Equal(t, http.StatusOK, status)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "authenticated", data["state"])
	assert.Equal(t, "emp", data["identity"].(map[string]any)["subject_id"])

	status, payload = srv.do(t, http.MethodGet, "/session", srv.tokenFor(t, "lead"), "")
	require.Equal(t, http.StatusOK, status)
	data = payload["data"].(map[string]any)
	assert.Equal(t, "invalid_role", data["state"])
	assert.Equal(t, "Team Leader", data["role"])
}

func TestTeamLeaderSessionIsRefusedOnProtectedRoutes(t *testing.T) {
	srv := newTestServer(t)
	token := srv.tokenFor(t, "lead")

	status, payload := srv.do(t, http.MethodGet, "/me/permissions", token, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INVALID_ROLE", errorCode(payload))
	assert.Empty(t, srv.sessions.active, "session must be revoked")
}

func TestComplaintRoutesEnforcePermissions(t *testing.T) {
	srv := newTestServer(t)

	status, payload := srv.do(t, http.MethodGet, "/complaints?view=all_company", srv.tokenFor(t, "mgr"), "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))

	status, payload = srv.do(t, http.MethodGet, "/complaints/stats", srv.tokenFor(t, "emp"), "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))

	status, payload = srv.do(t, http.MethodGet, "/complaints?view=sideways", srv.tokenFor(t, "emp"), "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newTestServer(t)
	body := `{"email":"nobody@acme.test","password":"whatever"}`

	status, payload := srv.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))

	status, payload = srv.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(payload))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/health/live", "", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "itconnect_http_requests_total")
}

func TestIPRateLimiterRefillsAndForgetsIdleClients(t *testing.T) {
	limiter := newIPRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, limiter.allow("10.0.0.1"))

	now = now.Add(limiterIdleTTL + time.Second)
	limiter.allow("10.0.0.3")
	assert.Len(t, limiter.limiters, 1)
}
