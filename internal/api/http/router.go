package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/itconnect/internal/api/http/handlers"
	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/rbac"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Session        *handlers.SessionHandler
	Complaints     *handlers.ComplaintsHandler
	Profiles       *handlers.ProfilesHandler
	RoleUpgrades   *handlers.RoleUpgradesHandler
	AuthMiddleware *auth.Middleware
	AuthConfig     config.AuthConfig
	Metrics        *observability.Metrics
	// Gatherer backs /metrics; nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	mw := cfg.AuthMiddleware
	session := []fiber.Handler{mw.Bearer, mw.RequireSession}
	capability := func(c rbac.Capability) fiber.Handler {
		return auth.RequireCapability(c, cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", LoginRateLimit(cfg.AuthConfig.LoginRatePerSecond, cfg.AuthConfig.LoginBurst), cfg.Auth.Login)
	authGroup.Post("/logout", mw.Bearer, cfg.Auth.Logout)
	authGroup.Post("/password/change", append(session, cfg.Auth.ChangePassword)...)

	app.Get("/session", mw.OptionalBearer, cfg.Session.Current)
	app.Get("/session/events", mw.OptionalBearer, cfg.Session.Events)
	app.Get("/me/permissions", append(session, cfg.Session.Permissions)...)

	complaints := app.Group("/complaints", session...)
	complaints.Post("/", cfg.Complaints.Create)
	complaints.Get("/", cfg.Complaints.List)
	complaints.Get("/stats", capability(rbac.CapViewStatistics), cfg.Complaints.Stats)
	complaints.Get("/assignable-users", capability(rbac.CapAssignComplaints), cfg.Complaints.AssignableUsers)
	complaints.Get("/:id", cfg.Complaints.Get)
	complaints.Get("/:id/history", cfg.Complaints.History)
	complaints.Patch("/:id", capability(rbac.CapEditComplaints), cfg.Complaints.Edit)
	complaints.Post("/:id/assign", capability(rbac.CapAssignComplaints), cfg.Complaints.Assign)
	complaints.Post("/:id/start", cfg.Complaints.Start)
	complaints.Post("/:id/cancel", cfg.Complaints.Cancel)
	complaints.Post("/:id/close", capability(rbac.CapCloseComplaints), cfg.Complaints.Close)
	complaints.Post("/:id/reopen", capability(rbac.CapReopenComplaints), cfg.Complaints.Reopen)
	complaints.Delete("/:id", capability(rbac.CapDeleteComplaints), cfg.Complaints.Delete)

	profiles := app.Group("/profiles", session...)
	profiles.Get("/:id", cfg.Profiles.Get)
	profiles.Get("/:id/access", cfg.Profiles.Access)
	profiles.Patch("/:id", cfg.Profiles.Update)

	upgrades := app.Group("/role-upgrades", session...)
	upgrades.Post("/", cfg.RoleUpgrades.Request)
	upgrades.Post("/:id/approve", capability(rbac.CapManageUsers), cfg.RoleUpgrades.Approve)
	upgrades.Post("/:id/reject", capability(rbac.CapManageUsers), cfg.RoleUpgrades.Reject)
}
