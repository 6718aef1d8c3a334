package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/session"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

const (
	claimsKey   = "auth_claims"
	identityKey = "auth_identity"
)

// Middleware authenticates bearer tokens and resolves sessions.
type Middleware struct {
	tokens   *TokenManager
	sessions SessionRegistry
	records  session.AccessLookup
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewMiddleware constructs the middleware.
func NewMiddleware(tokens *TokenManager, sessions SessionRegistry, records session.AccessLookup, logger *zap.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions, records: records, logger: logger, metrics: metrics}
}

// Bearer validates the token signature and stores its claims. It does not
// consult the session registry.
func (m *Middleware) Bearer(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewNotAuthenticated()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// OptionalBearer behaves like Bearer but lets requests without an
// Authorization header through unauthenticated.
func (m *Middleware) OptionalBearer(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) == "" {
		return c.Next()
	}
	return m.Bearer(c)
}

// Resolver returns a session resolver scoped to the request's token.
func (m *Middleware) Resolver(c *fiber.Ctx) *session.Resolver {
	claims, _ := ClaimsFromContext(c)
	return session.NewResolver(NewTokenClient(claims, m.sessions), m.records, m.logger, m.metrics)
}

// RequireSession runs a full session check and stores the identity. A role
// outside the session allow-list signs the caller out.
func (m *Middleware) RequireSession(c *fiber.Ctx) error {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		return apperrors.NewNotAuthenticated()
	}

	state := m.Resolver(c).Check(c.UserContext())
	if state.IsAuthenticated() {
		c.Locals(identityKey, state.Identity)
		return c.Next()
	}

	if state.Kind == session.KindInvalidRole {
		if err := m.sessions.Revoke(c.UserContext(), claims.SessionID, claims.SubjectID); err != nil {
			m.logger.Warn("failed to revoke session with invalid role",
				zap.String("subject_id", claims.SubjectID), zap.Error(err))
		}
	}
	return state.Err(claims.SubjectID)
}

// ClaimsFromContext returns the verified token claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// IdentityFromContext returns the resolved session identity.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
