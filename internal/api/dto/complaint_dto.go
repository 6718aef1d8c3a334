package dto

import (
	"time"

	"github.com/spec-kit/itconnect/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Urgency     domain.ComplaintUrgency `json:"urgency"`
	IsGlobal    bool                    `json:"is_global"`
}

// EditComplaintRequest carries optional edits.
type EditComplaintRequest struct {
	Title       *string                  `json:"title"`
	Description *string                  `json:"description"`
	Urgency     *domain.ComplaintUrgency `json:"urgency"`
}

// AssignComplaintRequest payload.
type AssignComplaintRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// ComplaintResponse is the wire form of a complaint.
type ComplaintResponse struct {
	ID          string                  `json:"id"`
	ExternalKey string                  `json:"external_key"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	CompanyName string                  `json:"company_name"`
	Department  string                  `json:"department"`
	CreatedBy   string                  `json:"created_by"`
	AssignedTo  *string                 `json:"assigned_to"`
	AssignedBy  *string                 `json:"assigned_by,omitempty"`
	Status      domain.ComplaintStatus  `json:"status"`
	Urgency     domain.ComplaintUrgency `json:"urgency"`
	IsGlobal    bool                    `json:"is_global"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ClosedAt    *time.Time              `json:"closed_at"`
}

// ComplaintHistoryResponse is one audit entry.
type ComplaintHistoryResponse struct {
	ID         string                     `json:"id"`
	ChangedBy  string                     `json:"changed_by"`
	ChangeType domain.ComplaintChangeType `json:"change_type"`
	OldValue   map[string]any             `json:"old_value"`
	NewValue   map[string]any             `json:"new_value"`
	CreatedAt  time.Time                  `json:"created_at"`
}

// NewComplaintResponse maps the aggregate.
func NewComplaintResponse(c *domain.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:          c.ID,
		ExternalKey: c.ExternalKey,
		Title:       c.Title,
		Description: c.Description,
		CompanyName: c.CompanyName,
		Department:  c.Department,
		CreatedBy:   c.CreatedBy,
		AssignedTo:  c.AssignedTo,
		AssignedBy:  c.AssignedBy,
		Status:      c.Status,
		Urgency:     c.Urgency,
		IsGlobal:    c.IsGlobal,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		ClosedAt:    c.ClosedAt,
	}
}

// NewComplaintHistoryResponse maps a history entry.
func NewComplaintHistoryResponse(h *domain.ComplaintHistory) ComplaintHistoryResponse {
	return ComplaintHistoryResponse{
		ID:         h.ID,
		ChangedBy:  h.ChangedBy,
		ChangeType: h.ChangeType,
		OldValue:   h.OldValue,
		NewValue:   h.NewValue,
		CreatedAt:  h.CreatedAt,
	}
}
