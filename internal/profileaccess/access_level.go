// Package profileaccess decides how much of another user's profile a requester
// may rewrite and strips everything else from an update payload.
package profileaccess

import (
	"strings"

	"github.com/spec-kit/itconnect/internal/rbac"
)

// AccessLevel is the cross-user profile editing tier.
type AccessLevel string

const (
	NoAccess      AccessLevel = "no_access"
	TeamAccess    AccessLevel = "team_access"
	HRAccess      AccessLevel = "hr_access"
	CompanyAccess AccessLevel = "company_access"
	FullAccess    AccessLevel = "full_access"
)

// Request carries the snapshot inputs for an access decision.
type Request struct {
	RequesterID         string
	RequesterRole       string
	RequesterCompany    string
	RequesterDepartment string
	TargetID            string
	TargetCompany       string
	TargetDepartment    string
}

// IsSelf reports whether the requester edits their own profile.
func (r Request) IsSelf() bool {
	return r.RequesterID != "" && r.RequesterID == r.TargetID
}

// ResolveAccessLevel evaluates the rules in order and returns the first match.
// Self-service always yields FullAccess regardless of role.
func ResolveAccessLevel(req Request) AccessLevel {
	if req.IsSelf() {
		return FullAccess
	}

	sameCompany := sameOrg(req.RequesterCompany, req.TargetCompany)

	switch level := rbac.Classify(req.RequesterRole); {
	case level == rbac.RoleAdministrator:
		return FullAccess
	case level == rbac.RoleManager:
		if sameCompany {
			return CompanyAccess
		}
		return NoAccess
	case rbac.IsHR(req.RequesterRole):
		if sameCompany {
			return HRAccess
		}
		return NoAccess
	case level == rbac.RoleTeamLeader:
		if sameCompany && sameOrg(req.RequesterDepartment, req.TargetDepartment) {
			return TeamAccess
		}
		return NoAccess
	default:
		return NoAccess
	}
}

// sameOrg compares company or department names exactly. Blank never matches.
func sameOrg(a, b string) bool {
	a = strings.TrimSpace(a)
	return a != "" && a == strings.TrimSpace(b)
}
