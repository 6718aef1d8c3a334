package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/api/dto"
	"github.com/spec-kit/itconnect/internal/service"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// RoleUpgradesHandler serves role upgrade requests and decisions.
type RoleUpgradesHandler struct {
	service *service.RoleUpgradeService
}

// NewRoleUpgradesHandler constructs handler.
func NewRoleUpgradesHandler(roleUpgradeService *service.RoleUpgradeService) *RoleUpgradesHandler {
	return &RoleUpgradesHandler{service: roleUpgradeService}
}

// Request handles POST /role-upgrades.
func (h *RoleUpgradesHandler) Request(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.RoleUpgradeRequestPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	upgrade, err := h.service.RequestUpgrade(c.UserContext(), identity, req.RequestedRole, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewRoleUpgradeResponse(upgrade)})
}

// Approve handles POST /role-upgrades/:id/approve.
func (h *RoleUpgradesHandler) Approve(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	upgrade, err := h.service.Approve(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleUpgradeResponse(upgrade)})
}

// Reject handles POST /role-upgrades/:id/reject.
func (h *RoleUpgradesHandler) Reject(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	upgrade, err := h.service.Reject(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRoleUpgradeResponse(upgrade)})
}
