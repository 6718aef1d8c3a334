package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/api/dto"
	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/service"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// ComplaintsHandler serves the complaint workflow.
type ComplaintsHandler struct {
	service *service.ComplaintService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService) *ComplaintsHandler {
	return &ComplaintsHandler{service: complaintService}
}

// Create handles POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.CreateComplaint(c.UserContext(), identity, service.ComplaintCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     req.Urgency,
		IsGlobal:    req.IsGlobal,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// List handles GET /complaints?view=.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	filter := service.ComplaintListFilter{}
	for _, status := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.ComplaintStatus(status))
	}
	for _, urgency := range splitCSV(c.Query("urgency")) {
		filter.Urgencies = append(filter.Urgencies, domain.ComplaintUrgency(urgency))
	}
	if q := c.Query("q"); q != "" {
		filter.SearchTerm = &q
	}
	filter.Limit, filter.Offset = pagination(c)

	mode, complaints, err := h.service.ListComplaints(c.UserContext(), identity, c.Query("view"), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintResponse, 0, len(complaints))
	for i := range complaints {
		items = append(items, dto.NewComplaintResponse(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items, "view_mode": mode})
}

// Stats handles GET /complaints/stats.
func (h *ComplaintsHandler) Stats(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	mode, stats, err := h.service.Stats(c.UserContext(), identity, c.Query("view"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats, "view_mode": mode})
}

// AssignableUsers handles GET /complaints/assignable-users.
func (h *ComplaintsHandler) AssignableUsers(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	users, err := h.service.AssignableUsers(c.UserContext(), identity, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}

// Get handles GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	complaint, err := h.service.GetComplaint(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// History handles GET /complaints/:id/history.
func (h *ComplaintsHandler) History(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	entries, err := h.service.History(c.UserContext(), identity, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewComplaintHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Edit handles PATCH /complaints/:id.
func (h *ComplaintsHandler) Edit(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.EditComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.EditComplaint(c.UserContext(), identity, c.Params("id"), service.ComplaintEditInput{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     req.Urgency,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// Assign handles POST /complaints/:id/assign.
func (h *ComplaintsHandler) Assign(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.AssignComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.AssignComplaint(c.UserContext(), identity, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}

// Start handles POST /complaints/:id/start.
func (h *ComplaintsHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.service.StartProgress)
}

// Cancel handles POST /complaints/:id/cancel.
func (h *ComplaintsHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.service.CancelComplaint)
}

// Close handles POST /complaints/:id/close.
func (h *ComplaintsHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.service.CloseComplaint)
}

// Reopen handles POST /complaints/:id/reopen.
func (h *ComplaintsHandler) Reopen(c *fiber.Ctx) error {
	return h.transition(c, h.service.ReopenComplaint)
}

// Delete handles DELETE /complaints/:id.
func (h *ComplaintsHandler) Delete(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteComplaint(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type transitionFunc func(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error)

func (h *ComplaintsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	complaint, err := fn(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintResponse(complaint)})
}
