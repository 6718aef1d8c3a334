package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/api/dto"
	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/service"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// AuthHandler exposes sign-in, sign-out and password change.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     result.Token,
		SessionID: result.SessionID,
		ExpiresAt: result.ExpiresAt,
		Identity:  result.Identity,
	}})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, _ := auth.ClaimsFromContext(c)
	if err := h.auth.Logout(c.UserContext(), claims); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
