package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/domain"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

type fakeSessions struct {
	mu        sync.Mutex
	seq       int
	active    map[string]string
	revoked   []string
	createErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: map[string]string{}}
}

func (f *fakeSessions) Create(_ context.Context, subjectID string) (*domain.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	id := fmt.Sprintf("%s-%d", subjectID, f.seq)
	f.active[id] = subjectID
	now := time.Now()
	return &domain.AuthSession{ID: id, SubjectID: subjectID, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}, nil
}

func (f *fakeSessions) Lookup(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[sessionID], nil
}

func (f *fakeSessions) Revoke(_ context.Context, sessionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, sessionID)
	f.revoked = append(f.revoked, sessionID)
	return nil
}

func (f *fakeSessions) Subscribe(context.Context, string) (<-chan domain.AuthStateChange, func(), error) {
	return make(chan domain.AuthStateChange), func() {}, nil
}

type authFixture struct {
	svc         *AuthService
	tokens      *auth.TokenManager
	sessions    *fakeSessions
	credentials *fakeCredentialRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)

	fx := &authFixture{
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
		sessions: newFakeSessions(),
		credentials: &fakeCredentialRepo{creds: map[string]*domain.Credential{
			"emp":   {SubjectID: "emp", Email: "eve@acme.test", PasswordHash: hash},
			"lead":  {SubjectID: "lead", Email: "lee@acme.test", PasswordHash: hash},
			"ghost": {SubjectID: "ghost", Email: "ghost@acme.test", PasswordHash: hash},
		}},
	}
	fx.svc = NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		CredentialRepo:    fx.credentials,
		AccessControlRepo: allUsers(),
		Sessions:          fx.sessions,
		Tokens:            fx.tokens,
	})
	return fx
}

func TestLogin(t *testing.T) {
	fx := newAuthFixture(t)

	result, err := fx.svc.Login(context.Background(), " eve@acme.test ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "emp", result.Identity.SubjectID)
	assert.Equal(t, "Employee", result.Identity.Role)

	claims, err := fx.tokens.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "emp", claims.SubjectID)
	assert.Equal(t, result.SessionID, claims.SessionID)
	assert.Contains(t, fx.sessions.active, result.SessionID)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{name: "missing fields", email: "", password: "", wantCode: apperrors.CodeValidationFailed},
		{name: "unknown email", email: "who@acme.test", password: "s3cret-pass", wantCode: apperrors.CodeUnauthorized},
		{name: "wrong password", email: "eve@acme.test", password: "nope", wantCode: apperrors.CodeUnauthorized},
		{name: "role outside allow-list", email: "lee@acme.test", password: "s3cret-pass", wantCode: apperrors.CodeInvalidRole},
		{name: "no access record", email: "ghost@acme.test", password: "s3cret-pass", wantCode: apperrors.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAuthFixture(t)

			_, err := fx.svc.Login(context.Background(), tt.email, tt.password)
			assertCode(t, err, tt.wantCode)
			assert.Empty(t, fx.sessions.active, "rejected sign-ins must not leave a session behind")
		})
	}
}

func TestLoginInvalidRoleRevokesSession(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Login(context.Background(), "lee@acme.test", "s3cret-pass")
	assertCode(t, err, apperrors.CodeInvalidRole)
	assert.Len(t, fx.sessions.revoked, 1)

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "Team Leader", domainErr.Details["role"])
}

func TestLoginSessionStoreDown(t *testing.T) {
	fx := newAuthFixture(t)
	fx.sessions.createErr = errors.New("redis down")

	_, err := fx.svc.Login(context.Background(), "eve@acme.test", "s3cret-pass")
	assertCode(t, err, apperrors.CodeServiceUnavailable)
}

func TestLogout(t *testing.T) {
	fx := newAuthFixture(t)

	result, err := fx.svc.Login(context.Background(), "eve@acme.test", "s3cret-pass")
	require.NoError(t, err)
	claims, err := fx.tokens.ParseToken(result.Token)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Logout(context.Background(), claims))
	assert.NotContains(t, fx.sessions.active, result.SessionID)

	assertCode(t, fx.svc.Logout(context.Background(), nil), apperrors.CodeNotAuthenticated)
}

func TestChangePassword(t *testing.T) {
	fx := newAuthFixture(t)
	identity := identityOf(employee)

	err := fx.svc.ChangePassword(context.Background(), identity, "s3cret-pass", "short")
	assertCode(t, err, apperrors.CodeValidationFailed)

	err = fx.svc.ChangePassword(context.Background(), identity, "wrong-current", "new-password-1")
	assertCode(t, err, apperrors.CodeUnauthorized)

	require.NoError(t, fx.svc.ChangePassword(context.Background(), identity, "s3cret-pass", "new-password-1"))
	assert.NoError(t, auth.ComparePassword(fx.credentials.creds["emp"].PasswordHash, "new-password-1"))

	_, err = fx.svc.Login(context.Background(), "eve@acme.test", "s3cret-pass")
	assertCode(t, err, apperrors.CodeUnauthorized)
}
