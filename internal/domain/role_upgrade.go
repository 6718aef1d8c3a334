package domain

import "time"

// RoleUpgradeStatus tracks the decision on an upgrade request.
type RoleUpgradeStatus string

const (
	RoleUpgradePending  RoleUpgradeStatus = "pending"
	RoleUpgradeApproved RoleUpgradeStatus = "approved"
	RoleUpgradeRejected RoleUpgradeStatus = "rejected"
)

// RoleUpgradeRequest asks an administrator to raise a subject's role.
type RoleUpgradeRequest struct {
	ID            string
	SubjectID     string
	CurrentRole   string
	RequestedRole string
	Reason        string
	Status        RoleUpgradeStatus
	DecidedBy     *string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}
