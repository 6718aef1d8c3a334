package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/events"
)

// Notification is one outbound message produced from a domain event.
type Notification struct {
	Channel   string
	Recipient string
	Subject   string
	EventType events.EventType
	Aggregate string
}

// NotificationService turns complaint and role-upgrade events into email and
// webhook notifications. Delivery is logged only.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	sent       func(Notification)
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintCreated, n.onComplaintCreated)
	n.dispatcher.Subscribe(events.EventComplaintStatusChanged, n.onStatusChanged)
	n.dispatcher.Subscribe(events.EventComplaintAssigned, n.onAssigned)
	n.dispatcher.Subscribe(events.EventRoleUpgradeRequested, n.onRoleUpgradeRequested)
	n.dispatcher.Subscribe(events.EventRoleUpgraded, n.onRoleUpgraded)
}

func (n *NotificationService) onComplaintCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ComplaintCreatedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("complaint created",
		zap.String("complaint_id", event.AggregateID),
		zap.String("company", payload.CompanyName),
		zap.String("department", payload.Department),
		zap.String("urgency", string(payload.Urgency)))
	n.webhook(event, "new "+string(payload.Urgency)+" complaint: "+payload.Title)
	return nil
}

func (n *NotificationService) onStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ComplaintStatusChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("complaint status changed",
		zap.String("complaint_id", event.AggregateID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)),
		zap.String("actor_id", event.Actor.SubjectID))
	n.webhook(event, "complaint "+string(payload.OldStatus)+" -> "+string(payload.NewStatus))
	return nil
}

func (n *NotificationService) onAssigned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ComplaintAssignedPayload)
	if !ok {
		return nil
	}
	fields := []zap.Field{
		zap.String("complaint_id", event.AggregateID),
		zap.String("assignee", payload.NewAssignee),
		zap.String("assigned_by", event.Actor.SubjectID),
	}
	if payload.OldAssignee != nil {
		fields = append(fields, zap.String("previous_assignee", *payload.OldAssignee))
	}
	n.logger.Info("complaint assigned", fields...)

	n.email(event, payload.NewAssignee, "a complaint was assigned to you")
	if payload.OldAssignee != nil && *payload.OldAssignee != payload.NewAssignee {
		n.email(event, *payload.OldAssignee, "a complaint was reassigned")
	}
	return nil
}

func (n *NotificationService) onRoleUpgradeRequested(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleChangePayload)
	if !ok {
		return nil
	}
	n.logger.Info("role upgrade requested",
		zap.String("request_id", event.AggregateID),
		zap.String("subject_id", payload.SubjectID),
		zap.String("from_role", payload.FromRole),
		zap.String("to_role", payload.ToRole))
	n.webhook(event, payload.SubjectID+" requests "+payload.FromRole+" -> "+payload.ToRole)
	return nil
}

func (n *NotificationService) onRoleUpgraded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleChangePayload)
	if !ok {
		return nil
	}
	n.logger.Info("role upgraded",
		zap.String("request_id", event.AggregateID),
		zap.String("subject_id", payload.SubjectID),
		zap.String("from_role", payload.FromRole),
		zap.String("to_role", payload.ToRole),
		zap.String("approved_by", event.Actor.SubjectID))
	n.email(event, payload.SubjectID, "your role is now "+payload.ToRole)
	return nil
}

func (n *NotificationService) email(event events.Event, recipient, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || recipient == "" {
		return
	}
	n.deliver(Notification{Channel: "email", Recipient: recipient, Subject: subject, EventType: event.Type, Aggregate: event.AggregateID})
}

func (n *NotificationService) webhook(event events.Event, subject string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.deliver(Notification{Channel: "webhook", Recipient: n.cfg.WebhookURL, Subject: subject, EventType: event.Type, Aggregate: event.AggregateID})
}

func (n *NotificationService) deliver(msg Notification) {
	n.logger.Debug("notification queued",
		zap.String("channel", msg.Channel),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.String("event_type", string(msg.EventType)),
		zap.String("aggregate_id", msg.Aggregate))
	if n.sent != nil {
		n.sent(msg)
	}
}
