package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/service"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// ProfilesHandler serves profile reads and field-filtered edits.
type ProfilesHandler struct {
	service *service.ProfileService
}

// NewProfilesHandler constructs handler.
func NewProfilesHandler(profileService *service.ProfileService) *ProfilesHandler {
	return &ProfilesHandler{service: profileService}
}

// Get handles GET /profiles/:id.
func (h *ProfilesHandler) Get(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	profile, err := h.service.GetProfile(c.UserContext(), identity.SubjectID, h.target(c, identity.SubjectID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": profile})
}

// Access handles GET /profiles/:id/access.
func (h *ProfilesHandler) Access(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	access, err := h.service.Access(c.UserContext(), identity.SubjectID, h.target(c, identity.SubjectID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": access})
}

// Update handles PATCH /profiles/:id. The body is a flat object of profile
// field keys.
func (h *ProfilesHandler) Update(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	fields := map[string]any{}
	if err := c.BodyParser(&fields); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.UpdateProfile(c.UserContext(), identity.SubjectID, h.target(c, identity.SubjectID), fields)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// target resolves the :id parameter; "me" addresses the caller.
func (h *ProfilesHandler) target(c *fiber.Ctx, self string) string {
	if id := c.Params("id"); id != "" && id != "me" {
		return id
	}
	return self
}
