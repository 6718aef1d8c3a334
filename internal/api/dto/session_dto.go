package dto

import (
	"github.com/spec-kit/itconnect/internal/rbac"
)

// PermissionsResponse describes what the session role may do.
type PermissionsResponse struct {
	Role             string             `json:"role"`
	RoleLevel        string             `json:"role_level"`
	IsHR             bool               `json:"is_hr"`
	Permissions      rbac.PermissionSet `json:"permissions"`
	InitialViewMode  rbac.ViewMode      `json:"initial_view_mode"`
	AllowedViewModes []rbac.ViewMode    `json:"allowed_view_modes"`
}
