package events

import (
	"time"

	"github.com/spec-kit/itconnect/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintEdited        EventType = "complaint_edited"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventComplaintAssigned      EventType = "complaint_assigned"
	EventComplaintDeleted       EventType = "complaint_deleted"
	EventProfileUpdated         EventType = "profile_updated"
	EventRoleUpgradeRequested   EventType = "role_upgrade_requested"
	EventRoleUpgraded           EventType = "role_upgraded"
)

// Actor identifies who caused an event.
type Actor struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
}

// ActorOf builds an Actor from a session identity.
func ActorOf(identity domain.Identity) Actor {
	return Actor{SubjectID: identity.SubjectID, Role: identity.Role}
}

// Event represents a domain event emitted by services. AggregateID is the
// complaint id, profile subject id or role-upgrade request id.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	AggregateID string      `json:"aggregate_id"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	CompanyName string                  `json:"company_name"`
	Department  string                  `json:"department"`
	Urgency     domain.ComplaintUrgency `json:"urgency"`
	Title       string                  `json:"title"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus domain.ComplaintStatus `json:"old_status"`
	NewStatus domain.ComplaintStatus `json:"new_status"`
}

// ComplaintAssignedPayload payload.
type ComplaintAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee string  `json:"new_assignee"`
}

// ProfileUpdatedPayload lists the keys that were written.
type ProfileUpdatedPayload struct {
	AccessLevel string   `json:"access_level"`
	Fields      []string `json:"fields"`
}

// RoleChangePayload payload for role upgrade events.
type RoleChangePayload struct {
	SubjectID string `json:"subject_id"`
	FromRole  string `json:"from_role"`
	ToRole    string `json:"to_role"`
}
