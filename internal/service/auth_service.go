package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/repository"
	"github.com/spec-kit/itconnect/internal/session"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// AuthService coordinates login, logout and self-service password changes.
type AuthService struct {
	credentials repository.CredentialRepository
	records     repository.AccessControlRepository
	sessions    auth.SessionRegistry
	tokens      *auth.TokenManager
	bcryptCost  int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	CredentialRepo    repository.CredentialRepository
	AccessControlRepo repository.AccessControlRepository
	Sessions          auth.SessionRegistry
	Tokens            *auth.TokenManager
	Logger            *zap.Logger
	Metrics           *observability.Metrics
}

// LoginResult is returned on successful sign-in.
type LoginResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	Identity  domain.Identity
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials: deps.CredentialRepo,
		records:     deps.AccessControlRepo,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		bcryptCost:  cfg.BcryptCost,
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// Login verifies credentials, registers a session and resolves it once. A
// session that does not resolve to authenticated is revoked immediately.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	cred, err := s.credentials.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	if err := auth.ComparePassword(cred.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	sess, err := s.sessions.Create(ctx, cred.SubjectID)
	if err != nil {
		return nil, apperrors.NewServiceUnavailable(err)
	}
	claims := &auth.Claims{SubjectID: cred.SubjectID, SessionID: sess.ID}

	resolver := session.NewResolver(auth.NewTokenClient(claims, s.sessions), s.records, s.logger, s.metrics)
	state := resolver.Check(ctx)
	if !state.IsAuthenticated() {
		if err := s.sessions.Revoke(ctx, sess.ID, cred.SubjectID); err != nil {
			s.logger.Warn("failed to revoke rejected session", zap.String("subject_id", cred.SubjectID), zap.Error(err))
		}
		s.logger.Info("sign-in rejected",
			zap.String("subject_id", cred.SubjectID), zap.String("state", string(state.Kind)))
		return nil, state.Err(cred.SubjectID)
	}

	token, err := s.tokens.GenerateToken(cred.SubjectID, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{
		Token:     token,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		Identity:  *state.Identity,
	}, nil
}

// Logout revokes the session behind the token and broadcasts signed_out.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperrors.NewNotAuthenticated()
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID, claims.SubjectID); err != nil {
		return apperrors.NewServiceUnavailable(err)
	}
	return nil
}

// ChangePassword updates the caller's own password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, identity domain.Identity, currentPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	cred, err := s.credentials.GetBySubjectID(ctx, identity.SubjectID)
	if err != nil {
		return notFoundOr(err, "credential", map[string]any{"subject_id": identity.SubjectID})
	}
	if err := auth.ComparePassword(cred.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.credentials.UpdatePasswordHash(ctx, identity.SubjectID, hash); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
