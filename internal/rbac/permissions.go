package rbac

// PermissionSet is the fixed capability record derived from a role.
type PermissionSet struct {
	CanViewAllComplaints        bool `json:"can_view_all_complaints"`
	CanViewDepartmentComplaints bool `json:"can_view_department_complaints"`
	CanAssignComplaints         bool `json:"can_assign_complaints"`
	CanReopenComplaints         bool `json:"can_reopen_complaints"`
	CanCloseComplaints          bool `json:"can_close_complaints"`
	CanDeleteComplaints         bool `json:"can_delete_complaints"`
	CanEditComplaints           bool `json:"can_edit_complaints"`
	CanViewStatistics           bool `json:"can_view_statistics"`
	CanManageUsers              bool `json:"can_manage_users"`
}

// Capability names a single PermissionSet flag.
type Capability string

const (
	CapViewAllComplaints        Capability = "view_all_complaints"
	CapViewDepartmentComplaints Capability = "view_department_complaints"
	CapAssignComplaints         Capability = "assign_complaints"
	CapReopenComplaints         Capability = "reopen_complaints"
	CapCloseComplaints          Capability = "close_complaints"
	CapDeleteComplaints         Capability = "delete_complaints"
	CapEditComplaints           Capability = "edit_complaints"
	CapViewStatistics           Capability = "view_statistics"
	CapManageUsers              Capability = "manage_users"
)

var rolePermissions = map[RoleLevel]PermissionSet{
	RoleAdministrator: {
		CanViewAllComplaints:        true,
		CanViewDepartmentComplaints: true,
		CanAssignComplaints:         true,
		CanReopenComplaints:         true,
		CanCloseComplaints:          true,
		CanDeleteComplaints:         true,
		CanEditComplaints:           true,
		CanViewStatistics:           true,
		CanManageUsers:              true,
	},
	RoleManager: {
		CanViewDepartmentComplaints: true,
		CanAssignComplaints:         true,
		CanReopenComplaints:         true,
		CanCloseComplaints:          true,
		CanEditComplaints:           true,
		CanViewStatistics:           true,
	},
	RoleTeamLeader: {
		CanViewDepartmentComplaints: true,
		CanAssignComplaints:         true,
		CanReopenComplaints:         true,
		CanEditComplaints:           true,
	},
	RoleSupervisor: {
		CanViewDepartmentComplaints: true,
		CanAssignComplaints:         true,
	},
	RoleEmployee: {},
}

// PermissionsFor returns the capabilities of a role label. It is total: any
// input, including garbage, yields the employee set at worst.
func PermissionsFor(role string) PermissionSet {
	return PermissionsForLevel(Classify(role))
}

// PermissionsForLevel returns the capabilities of an already classified role.
func PermissionsForLevel(level RoleLevel) PermissionSet {
	return rolePermissions[RoleLevel(level.Level())]
}

// Allows reports whether the set grants the capability.
func (p PermissionSet) Allows(capability Capability) bool {
	switch capability {
	case CapViewAllComplaints:
		return p.CanViewAllComplaints
	case CapViewDepartmentComplaints:
		return p.CanViewDepartmentComplaints
	case CapAssignComplaints:
		return p.CanAssignComplaints
	case CapReopenComplaints:
		return p.CanReopenComplaints
	case CapCloseComplaints:
		return p.CanCloseComplaints
	case CapDeleteComplaints:
		return p.CanDeleteComplaints
	case CapEditComplaints:
		return p.CanEditComplaints
	case CapViewStatistics:
		return p.CanViewStatistics
	case CapManageUsers:
		return p.CanManageUsers
	default:
		return false
	}
}

// HasPermission is shorthand for PermissionsFor(role).Allows(capability).
func HasPermission(role string, capability Capability) bool {
	return PermissionsFor(role).Allows(capability)
}

// CanAssignToUser applies the assignment-target rule. It is independent of
// CanAssignComplaints; a valid assignment needs both.
func CanAssignToUser(assignerRole, targetRole string) bool {
	target := Classify(targetRole)

	switch Classify(assignerRole) {
	case RoleAdministrator:
		return true
	case RoleManager:
		return target != RoleAdministrator && target != RoleManager
	case RoleTeamLeader:
		return target != RoleAdministrator && target != RoleManager && target != RoleTeamLeader
	case RoleSupervisor:
		return target == RoleEmployee
	default:
		return false
	}
}

// CanEscalateToRole reports whether moving from current to target is an upgrade.
func CanEscalateToRole(currentRole, targetRole string) bool {
	return Classify(targetRole).Level() > Classify(currentRole).Level()
}
