package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/events"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/rbac"
	"github.com/spec-kit/itconnect/internal/repository"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// RoleUpgradeService handles requests to move a subject up the role hierarchy.
type RoleUpgradeService struct {
	requests   repository.RoleUpgradeRepository
	records    repository.AccessControlRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// RoleUpgradeDependencies bundles collaborators.
type RoleUpgradeDependencies struct {
	RoleUpgradeRepo   repository.RoleUpgradeRepository
	AccessControlRepo repository.AccessControlRepository
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Metrics           *observability.Metrics
}

// NewRoleUpgradeService builds the service.
func NewRoleUpgradeService(deps RoleUpgradeDependencies) *RoleUpgradeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleUpgradeService{
		requests:   deps.RoleUpgradeRepo,
		records:    deps.AccessControlRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// RequestUpgrade files a pending request. The requested role must rank
// strictly above the caller's stored role.
func (s *RoleUpgradeService) RequestUpgrade(ctx context.Context, actor domain.Identity, requestedRole, reason string) (*domain.RoleUpgradeRequest, error) {
	requestedRole = strings.TrimSpace(requestedRole)
	if requestedRole == "" {
		return nil, apperrors.NewValidationError("requested role is required", map[string]any{"field": "requested_role"})
	}

	record, err := s.records.GetBySubjectID(ctx, actor.SubjectID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"subject_id": actor.SubjectID})
	}
	allowed := rbac.CanEscalateToRole(record.Role, requestedRole)
	s.metrics.RecordAuthorization("escalate_to_role", allowed)
	if !allowed {
		return nil, apperrors.NewForbidden("requested role is not above the current role")
	}

	req := &domain.RoleUpgradeRequest{
		SubjectID:     record.SubjectID,
		CurrentRole:   record.Role,
		RequestedRole: requestedRole,
		Reason:        strings.TrimSpace(reason),
		Status:        domain.RoleUpgradePending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventRoleUpgradeRequested,
		AggregateID: req.ID,
		Actor:       events.ActorOf(actor),
		Payload: events.RoleChangePayload{
			SubjectID: req.SubjectID,
			FromRole:  req.CurrentRole,
			ToRole:    req.RequestedRole,
		},
	})
	return req, nil
}

// Approve grants a pending request and rewrites the subject's role.
func (s *RoleUpgradeService) Approve(ctx context.Context, actor domain.Identity, requestID string) (*domain.RoleUpgradeRequest, error) {
	req, err := s.pending(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	// The subject's role may have changed since the request was filed.
	record, err := s.records.GetBySubjectID(ctx, req.SubjectID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"subject_id": req.SubjectID})
	}
	if !rbac.CanEscalateToRole(record.Role, req.RequestedRole) {
		return nil, apperrors.NewConflict("request is no longer an upgrade",
			map[string]any{"current_role": record.Role, "requested_role": req.RequestedRole})
	}

	if err := s.requests.Approve(ctx, req, actor.SubjectID); err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewConflict("request already decided", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("role upgraded",
		zap.String("subject_id", req.SubjectID),
		zap.String("from_role", record.Role),
		zap.String("to_role", req.RequestedRole),
		zap.String("approved_by", actor.SubjectID))

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventRoleUpgraded,
		AggregateID: req.ID,
		Actor:       events.ActorOf(actor),
		Payload: events.RoleChangePayload{
			SubjectID: req.SubjectID,
			FromRole:  record.Role,
			ToRole:    req.RequestedRole,
		},
	})
	return req, nil
}

// Reject declines a pending request.
func (s *RoleUpgradeService) Reject(ctx context.Context, actor domain.Identity, requestID string) (*domain.RoleUpgradeRequest, error) {
	req, err := s.pending(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Reject(ctx, req, actor.SubjectID); err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewConflict("request already decided", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

func (s *RoleUpgradeService) pending(ctx context.Context, actor domain.Identity, requestID string) (*domain.RoleUpgradeRequest, error) {
	allowed := rbac.HasPermission(actor.Role, rbac.CapManageUsers)
	s.metrics.RecordAuthorization(string(rbac.CapManageUsers), allowed)
	if !allowed {
		return nil, apperrors.NewForbidden("insufficient permissions")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "role upgrade request", map[string]any{"request_id": requestID})
	}
	if req.Status != domain.RoleUpgradePending {
		return nil, apperrors.NewConflict("request already decided", map[string]any{"status": req.Status})
	}
	return req, nil
}
