package dto

import (
	"time"

	"github.com/spec-kit/itconnect/internal/domain"
)

// RoleUpgradeRequestPayload asks for a higher role.
type RoleUpgradeRequestPayload struct {
	RequestedRole string `json:"requested_role"`
	Reason        string `json:"reason"`
}

// RoleUpgradeResponse is the wire form of an upgrade request.
type RoleUpgradeResponse struct {
	ID            string                   `json:"id"`
	SubjectID     string                   `json:"subject_id"`
	CurrentRole   string                   `json:"current_role"`
	RequestedRole string                   `json:"requested_role"`
	Reason        string                   `json:"reason,omitempty"`
	Status        domain.RoleUpgradeStatus `json:"status"`
	DecidedBy     *string                  `json:"decided_by,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	DecidedAt     *time.Time               `json:"decided_at,omitempty"`
}

// NewRoleUpgradeResponse maps the request.
func NewRoleUpgradeResponse(r *domain.RoleUpgradeRequest) RoleUpgradeResponse {
	return RoleUpgradeResponse{
		ID:            r.ID,
		SubjectID:     r.SubjectID,
		CurrentRole:   r.CurrentRole,
		RequestedRole: r.RequestedRole,
		Reason:        r.Reason,
		Status:        r.Status,
		DecidedBy:     r.DecidedBy,
		CreatedAt:     r.CreatedAt,
		DecidedAt:     r.DecidedAt,
	}
}
