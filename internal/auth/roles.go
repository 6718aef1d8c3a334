package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/rbac"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// RequireCapability refuses the request unless the session role's permission
// set grants capability. Must run after RequireSession.
func RequireCapability(capability rbac.Capability, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewNotAuthenticated()
		}
		allowed := rbac.HasPermission(identity.Role, capability)
		metrics.RecordAuthorization(string(capability), allowed)
		if !allowed {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}
