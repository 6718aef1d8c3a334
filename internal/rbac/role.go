// Package rbac classifies free-text role labels into a fixed hierarchy and
// derives capabilities and complaint view scopes from the result.
package rbac

import "strings"

// RoleLevel is the normalized position of a role in the hierarchy.
type RoleLevel int

const (
	RoleEmployee RoleLevel = iota + 1
	RoleSupervisor
	RoleTeamLeader
	RoleManager
	RoleAdministrator
)

// Canonical labels as provisioned by the admin workflows.
const (
	LabelAdministrator = "Administrator"
	LabelManager       = "Manager"
	LabelTeamLeader    = "Team Leader"
	LabelSupervisor    = "Supervisor"
	LabelEmployee      = "Employee"
)

var (
	teamLeaderKeywords = []string{"team leader", "teamleader", "lead", "team_leader"}
	supervisorKeywords = []string{"supervisor", "senior", "head"}
)

// Classify maps an arbitrary role label to a RoleLevel. The checks run from the
// most to the least privileged level and the first hit wins, so "Manager Admin"
// is an administrator. Unrecognized input falls back to RoleEmployee.
func Classify(role string) RoleLevel {
	normalized := strings.ToLower(strings.TrimSpace(role))

	switch {
	case strings.Contains(normalized, "admin") || normalized == "administrator":
		return RoleAdministrator
	case strings.Contains(normalized, "manager"):
		return RoleManager
	case containsAny(normalized, teamLeaderKeywords):
		return RoleTeamLeader
	case containsAny(normalized, supervisorKeywords):
		return RoleSupervisor
	default:
		return RoleEmployee
	}
}

// Level returns the ordinal in 1..5.
func (r RoleLevel) Level() int {
	if r < RoleEmployee || r > RoleAdministrator {
		return int(RoleEmployee)
	}
	return int(r)
}

// String returns the canonical label.
func (r RoleLevel) String() string {
	switch r {
	case RoleAdministrator:
		return LabelAdministrator
	case RoleManager:
		return LabelManager
	case RoleTeamLeader:
		return LabelTeamLeader
	case RoleSupervisor:
		return LabelSupervisor
	default:
		return LabelEmployee
	}
}

// AtLeast reports whether r sits at or above other in the hierarchy.
func (r RoleLevel) AtLeast(other RoleLevel) bool {
	return r.Level() >= other.Level()
}

// IsHR reports whether the label names a human-resources role. HR is not part
// of the hierarchy and only matters for profile editing.
func IsHR(role string) bool {
	normalized := strings.ToLower(strings.TrimSpace(role))
	if strings.Contains(normalized, "human resource") {
		return true
	}
	for _, word := range strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '/'
	}) {
		if word == "hr" {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
