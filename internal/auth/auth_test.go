package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/rbac"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]string
	revoked  []string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]string{}}
}

func (m *memorySessions) Create(_ context.Context, subjectID string) (*domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "sess-" + subjectID
	m.sessions[id] = subjectID
	return &domain.AuthSession{ID: id, SubjectID: subjectID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *memorySessions) Lookup(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID], nil
}

func (m *memorySessions) Revoke(_ context.Context, sessionID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	m.revoked = append(m.revoked, sessionID)
	return nil
}

func (m *memorySessions) Subscribe(context.Context, string) (<-chan domain.AuthStateChange, func(), error) {
	return make(chan domain.AuthStateChange), func() {}, nil
}

type memoryRecords map[string]*domain.AccessControl

func (m memoryRecords) GetBySubjectID(_ context.Context, subjectID string) (*domain.AccessControl, error) {
	record, ok := m[subjectID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return record, nil
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, err := tm.GenerateToken("u-1", "s-1", time.Now().Add(tm.TTL()))
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.SubjectID)
	assert.Equal(t, "s-1", claims.SessionID)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	expired, err := tm.GenerateToken("u-1", "s-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = tm.ParseToken(expired)
	assert.Error(t, err)

	foreign, err := NewTokenManager("other", time.Minute).GenerateToken("u-1", "s-1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = tm.ParseToken(foreign)
	assert.Error(t, err)
}

func TestTokenManagerDefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, NewTokenManager("s", 0).TTL())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong"))

	assert.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("long enough"))
}

func TestTokenClient(t *testing.T) {
	sessions := newMemorySessions()
	sess, err := sessions.Create(context.Background(), "u-1")
	require.NoError(t, err)

	anonymous := NewTokenClient(nil, sessions)
	principal, err := anonymous.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	assert.Nil(t, principal)

	client := NewTokenClient(&Claims{SubjectID: "u-1", SessionID: sess.ID}, sessions)
	principal, err = client.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "u-1", principal.SubjectID)

	mismatched := NewTokenClient(&Claims{SubjectID: "u-2", SessionID: sess.ID}, sessions)
	principal, err = mismatched.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	assert.Nil(t, principal)

	require.NoError(t, sessions.Revoke(context.Background(), sess.ID, "u-1"))
	principal, err = client.CurrentPrincipal(context.Background())
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func newTestApp(t *testing.T, role string) (*fiber.App, *TokenManager, *memorySessions) {
	t.Helper()
	tm := NewTokenManager("secret", time.Hour)
	sessions := newMemorySessions()
	records := memoryRecords{"u-1": {SubjectID: "u-1", Name: "Dana", Role: role, CompanyName: "Acme"}}
	mw := NewMiddleware(tm, sessions, records, zap.NewNop(), nil)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		domainErr := apperrors.ToDomainError(err)
		return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
	}})
	app.Get("/me", mw.Bearer, mw.RequireSession, func(c *fiber.Ctx) error {
		identity, _ := IdentityFromContext(c)
		return c.SendString(identity.SubjectID)
	})
	app.Get("/stats", mw.Bearer, mw.RequireSession, RequireCapability(rbac.CapViewStatistics, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app, tm, sessions
}

func bearer(t *testing.T, tm *TokenManager, sessions *memorySessions, subjectID string) string {
	t.Helper()
	sess, err := sessions.Create(context.Background(), subjectID)
	require.NoError(t, err)
	token, err := tm.GenerateToken(subjectID, sess.ID, sess.ExpiresAt)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRequireSession(t *testing.T) {
	app, tm, sessions := newTestApp(t, "Manager")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, tm, sessions, "u-1"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, tm, sessions, "unknown"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequireSessionRevokesInvalidRole(t *testing.T) {
	app, tm, sessions := newTestApp(t, "Team Leader")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, tm, sessions, "u-1"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, []string{"sess-u-1"}, sessions.revoked)
}

func TestRequireCapability(t *testing.T) {
	for role, want := range map[string]int{
		"Manager":  http.StatusOK,
		"Employee": http.StatusForbidden,
	} {
		app, tm, sessions := newTestApp(t, role)
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.Header.Set(fiber.HeaderAuthorization, bearer(t, tm, sessions, "u-1"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, role)
	}
}
