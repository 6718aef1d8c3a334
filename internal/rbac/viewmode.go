package rbac

import (
	"fmt"
	"strings"
)

// ViewMode is the scope of complaints a list request may cover.
type ViewMode string

const (
	ViewPersonal     ViewMode = "personal"
	ViewAssignedToMe ViewMode = "assigned_to_me"
	ViewDepartment   ViewMode = "department"
	ViewAllCompany   ViewMode = "all_company"
	ViewGlobal       ViewMode = "global"
)

// orderedViewModes fixes the order AllowedViewModes reports in.
var orderedViewModes = []ViewMode{ViewPersonal, ViewAssignedToMe, ViewDepartment, ViewAllCompany, ViewGlobal}

// ParseViewMode accepts the wire names plus a few spelling variants.
func ParseViewMode(raw string) (ViewMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "personal", "mine":
		return ViewPersonal, nil
	case "assigned_to_me", "assigned":
		return ViewAssignedToMe, nil
	case "department":
		return ViewDepartment, nil
	case "all_company", "company":
		return ViewAllCompany, nil
	case "global":
		return ViewGlobal, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", raw)
	}
}

// InitialViewMode returns the mode a role's complaint list opens in.
func InitialViewMode(role string) ViewMode {
	switch Classify(role) {
	case RoleAdministrator:
		return ViewAllCompany
	case RoleManager, RoleTeamLeader, RoleSupervisor:
		return ViewDepartment
	default:
		return ViewPersonal
	}
}

// AllowedViewModes lists every mode the role may switch to.
func AllowedViewModes(role string) []ViewMode {
	allowed := make([]ViewMode, 0, len(orderedViewModes))
	for _, mode := range orderedViewModes {
		if CanAccessViewMode(role, mode) {
			allowed = append(allowed, mode)
		}
	}
	return allowed
}

// CanAccessViewMode must gate every mode switch; client state is not an
// authorization source.
func CanAccessViewMode(role string, mode ViewMode) bool {
	level := Classify(role)
	switch mode {
	case ViewPersonal, ViewAssignedToMe, ViewGlobal:
		return true
	case ViewDepartment:
		return level.AtLeast(RoleSupervisor)
	case ViewAllCompany:
		return level == RoleAdministrator
	default:
		return false
	}
}
