package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/api/dto"
	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/rbac"
)

const sseHeartbeat = 25 * time.Second

// SessionHandler reports the resolved session state.
type SessionHandler struct {
	middleware *auth.Middleware
	logger     *zap.Logger
}

// NewSessionHandler constructs handler.
func NewSessionHandler(middleware *auth.Middleware, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{middleware: middleware, logger: logger}
}

// Current handles GET /session. Every closed state is a 200 response; the
// state field carries the outcome.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	state := h.middleware.Resolver(c).Check(c.UserContext())
	return c.JSON(fiber.Map{"data": state})
}

// Events handles GET /session/events as a server-sent event stream. Each
// auth-state change yields a loading event followed by the new resolution.
func (h *SessionHandler) Events(c *fiber.Ctx) error {
	resolver := h.middleware.Resolver(c)
	ctx, cancel := context.WithCancel(context.Background())
	states := resolver.Observe(ctx)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case state, ok := <-states:
				if !ok {
					return
				}
				payload, err := json.Marshal(state)
				if err != nil {
					h.logger.Error("encode session state", zap.Error(err))
					return
				}
				fmt.Fprintf(w, "event: session\ndata: %s\n\n", payload)
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
			}
			// A failed flush means the client went away.
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

// Permissions handles GET /me/permissions.
func (h *SessionHandler) Permissions(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PermissionsResponse{
		Role:             identity.Role,
		RoleLevel:        rbac.Classify(identity.Role).String(),
		IsHR:             rbac.IsHR(identity.Role),
		Permissions:      rbac.PermissionsFor(identity.Role),
		InitialViewMode:  rbac.InitialViewMode(identity.Role),
		AllowedViewModes: rbac.AllowedViewModes(identity.Role),
	}})
}
