package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "open"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusAssigned   ComplaintStatus = "assigned"
	ComplaintStatusClosed     ComplaintStatus = "closed"
	ComplaintStatusCancelled  ComplaintStatus = "cancelled"
	ComplaintStatusReopened   ComplaintStatus = "reopened"
)

// IsFinal reports whether the complaint is no longer being worked on.
func (s ComplaintStatus) IsFinal() bool {
	return s == ComplaintStatusClosed || s == ComplaintStatusCancelled
}

// ComplaintUrgency enumerates complaint urgency.
type ComplaintUrgency string

const (
	UrgencyCritical ComplaintUrgency = "critical"
	UrgencyHigh     ComplaintUrgency = "high"
	UrgencyMedium   ComplaintUrgency = "medium"
	UrgencyLow      ComplaintUrgency = "low"
)

// Valid reports whether u is a known urgency.
func (u ComplaintUrgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// Complaint is the aggregate for internal IT complaints.
type Complaint struct {
	ID          string
	ExternalKey string
	Title       string
	Description string
	CompanyName string
	Department  string
	CreatedBy   string
	AssignedTo  *string
	AssignedBy  *string
	Status      ComplaintStatus
	Urgency     ComplaintUrgency
	IsGlobal    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// ComplaintChangeType captures what changed in a history entry.
type ComplaintChangeType string

const (
	ChangeTypeStatus   ComplaintChangeType = "status_change"
	ChangeTypeAssignee ComplaintChangeType = "assignee_change"
	ChangeTypeEdit     ComplaintChangeType = "edit"
)

// ComplaintHistory is an immutable audit trail entry.
type ComplaintHistory struct {
	ID          string
	ComplaintID string
	ChangedBy   string
	ChangeType  ComplaintChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}

// ComplaintStats aggregates complaint counts within a scope.
type ComplaintStats struct {
	Total      int                      `json:"total"`
	Unassigned int                      `json:"unassigned"`
	ByStatus   map[ComplaintStatus]int  `json:"by_status"`
	ByUrgency  map[ComplaintUrgency]int `json:"by_urgency"`
}
