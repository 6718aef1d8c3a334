package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/events"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/rbac"
	"github.com/spec-kit/itconnect/internal/repository"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// ComplaintService coordinates complaint workflows behind the permission matrix.
type ComplaintService struct {
	complaints repository.ComplaintRepository
	history    repository.ComplaintHistoryRepository
	records    repository.AccessControlRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	ComplaintRepo     repository.ComplaintRepository
	HistoryRepo       repository.ComplaintHistoryRepository
	AccessControlRepo repository.AccessControlRepository
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Metrics           *observability.Metrics
}

// ComplaintCreateInput describes complaint creation payload.
type ComplaintCreateInput struct {
	Title       string
	Description string
	Urgency     domain.ComplaintUrgency
	IsGlobal    bool
}

// ComplaintEditInput carries optional edits.
type ComplaintEditInput struct {
	Title       *string
	Description *string
	Urgency     *domain.ComplaintUrgency
}

// ComplaintListFilter narrows a view-mode listing.
type ComplaintListFilter struct {
	Statuses   []domain.ComplaintStatus
	Urgencies  []domain.ComplaintUrgency
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		complaints: deps.ComplaintRepo,
		history:    deps.HistoryRepo,
		records:    deps.AccessControlRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// CreateComplaint files a complaint in the actor's company and department.
func (s *ComplaintService) CreateComplaint(ctx context.Context, actor domain.Identity, input ComplaintCreateInput) (*domain.Complaint, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}
	if !urgency.Valid() {
		return nil, apperrors.NewValidationError("invalid urgency", map[string]any{"urgency": urgency})
	}
	if input.IsGlobal {
		if err := s.require(actor, rbac.CapViewAllComplaints); err != nil {
			return nil, err
		}
	}

	complaint := &domain.Complaint{
		ExternalKey: generateComplaintKey(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		CompanyName: actor.CompanyName,
		Department:  actor.Department,
		CreatedBy:   actor.SubjectID,
		Status:      domain.ComplaintStatusOpen,
		Urgency:     urgency,
		IsGlobal:    input.IsGlobal,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventComplaintCreated,
		AggregateID: complaint.ID,
		Actor:       events.ActorOf(actor),
		Payload: events.ComplaintCreatedPayload{
			CompanyName: complaint.CompanyName,
			Department:  complaint.Department,
			Urgency:     complaint.Urgency,
			Title:       complaint.Title,
		},
	})
	return complaint, nil
}

// ResolveViewMode parses the requested mode, defaulting to the role's initial
// mode, and refuses modes the role may not use.
func (s *ComplaintService) ResolveViewMode(actor domain.Identity, requested string) (rbac.ViewMode, error) {
	if strings.TrimSpace(requested) == "" {
		return rbac.InitialViewMode(actor.Role), nil
	}
	mode, err := rbac.ParseViewMode(requested)
	if err != nil {
		return "", apperrors.NewValidationError("unknown view mode", map[string]any{"view": requested})
	}
	allowed := rbac.CanAccessViewMode(actor.Role, mode)
	s.metrics.RecordAuthorization("view_mode:"+string(mode), allowed)
	if !allowed {
		return "", apperrors.NewForbidden("view mode not permitted for role")
	}
	return mode, nil
}

// ListComplaints lists complaints in the scope of a permitted view mode.
func (s *ComplaintService) ListComplaints(ctx context.Context, actor domain.Identity, requested string, filter ComplaintListFilter) (rbac.ViewMode, []domain.Complaint, error) {
	mode, err := s.ResolveViewMode(actor, requested)
	if err != nil {
		return "", nil, err
	}
	repoFilter, ok := scopeFilter(actor, mode)
	if !ok {
		return mode, []domain.Complaint{}, nil
	}
	repoFilter.Statuses = filter.Statuses
	repoFilter.Urgencies = filter.Urgencies
	repoFilter.SearchTerm = filter.SearchTerm
	repoFilter.Limit = filter.Limit
	repoFilter.Offset = filter.Offset

	complaints, err := s.complaints.List(ctx, repoFilter)
	if err != nil {
		return "", nil, apperrors.MapError(err)
	}
	if complaints == nil {
		complaints = []domain.Complaint{}
	}
	return mode, complaints, nil
}

// Stats aggregates complaint counts within a view-mode scope.
func (s *ComplaintService) Stats(ctx context.Context, actor domain.Identity, requested string) (rbac.ViewMode, *domain.ComplaintStats, error) {
	if err := s.require(actor, rbac.CapViewStatistics); err != nil {
		return "", nil, err
	}
	mode, err := s.ResolveViewMode(actor, requested)
	if err != nil {
		return "", nil, err
	}
	repoFilter, ok := scopeFilter(actor, mode)
	if !ok {
		return mode, emptyStats(), nil
	}
	stats, err := s.complaints.Stats(ctx, repoFilter)
	if err != nil {
		return "", nil, apperrors.MapError(err)
	}
	return mode, stats, nil
}

// GetComplaint fetches a complaint visible to the actor.
func (s *ComplaintService) GetComplaint(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "complaint", map[string]any{"complaint_id": id})
	}
	if !canSee(actor, complaint) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return complaint, nil
}

// History lists the audit trail of a visible complaint.
func (s *ComplaintService) History(ctx context.Context, actor domain.Identity, id string, limit, offset int) ([]domain.ComplaintHistory, error) {
	if _, err := s.GetComplaint(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByComplaint(ctx, id, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.ComplaintHistory{}
	}
	return entries, nil
}

// EditComplaint changes title, description or urgency.
func (s *ComplaintService) EditComplaint(ctx context.Context, actor domain.Identity, id string, input ComplaintEditInput) (*domain.Complaint, error) {
	if err := s.require(actor, rbac.CapEditComplaints); err != nil {
		return nil, err
	}
	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsFinal() {
		return nil, apperrors.NewConflict("complaint is closed", map[string]any{"status": complaint.Status})
	}

	oldValue := map[string]any{}
	newValue := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
		}
		if title != complaint.Title {
			oldValue["title"], newValue["title"] = complaint.Title, title
			complaint.Title = title
		}
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description != complaint.Description {
			oldValue["description"], newValue["description"] = complaint.Description, description
			complaint.Description = description
		}
	}
	if input.Urgency != nil {
		if !input.Urgency.Valid() {
			return nil, apperrors.NewValidationError("invalid urgency", map[string]any{"urgency": *input.Urgency})
		}
		if *input.Urgency != complaint.Urgency {
			oldValue["urgency"], newValue["urgency"] = complaint.Urgency, *input.Urgency
			complaint.Urgency = *input.Urgency
		}
	}
	if len(newValue) == 0 {
		return complaint, nil
	}

	if err := s.complaints.Update(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordHistory(ctx, actor, complaint.ID, domain.ChangeTypeEdit, oldValue, newValue); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventComplaintEdited,
		AggregateID: complaint.ID,
		Actor:       events.ActorOf(actor),
		Payload:     newValue,
	})
	return complaint, nil
}

// AssignComplaint assigns a complaint. The actor needs the assign capability
// and the assignment-target rule must allow the assignee's role.
func (s *ComplaintService) AssignComplaint(ctx context.Context, actor domain.Identity, id, assigneeID string) (*domain.Complaint, error) {
	if err := s.require(actor, rbac.CapAssignComplaints); err != nil {
		return nil, err
	}
	if strings.TrimSpace(assigneeID) == "" {
		return nil, apperrors.NewValidationError("assignee is required", map[string]any{"field": "assignee_id"})
	}

	assignee, err := s.records.GetBySubjectID(ctx, assigneeID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"subject_id": assigneeID})
	}
	if !assignee.IsActive {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"subject_id": assigneeID})
	}
	allowed := rbac.CanAssignToUser(actor.Role, assignee.Role)
	s.metrics.RecordAuthorization("assign_to_user", allowed)
	if !allowed {
		s.logger.Info("assignment refused by target role",
			zap.String("actor_id", actor.SubjectID),
			zap.String("actor_role", actor.Role),
			zap.String("assignee_role", assignee.Role))
		return nil, apperrors.NewForbidden("cannot assign to a user with this role")
	}

	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsFinal() {
		return nil, apperrors.NewConflict("complaint is closed", map[string]any{"status": complaint.Status})
	}
	if !rbac.Classify(actor.Role).AtLeast(rbac.RoleAdministrator) && assignee.CompanyName != complaint.CompanyName {
		return nil, apperrors.NewForbidden("assignee outside complaint company")
	}

	oldAssignee := complaint.AssignedTo
	oldStatus := complaint.Status
	complaint.AssignedTo = &assignee.SubjectID
	complaint.AssignedBy = &actor.SubjectID
	if complaint.Status == domain.ComplaintStatusOpen || complaint.Status == domain.ComplaintStatusReopened {
		complaint.Status = domain.ComplaintStatusAssigned
	}
	if err := s.complaints.Update(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordHistory(ctx, actor, complaint.ID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_to": oldAssignee},
		map[string]any{"assigned_to": assignee.SubjectID}); err != nil {
		return nil, err
	}
	if oldStatus != complaint.Status {
		if err := s.recordStatusChange(ctx, actor, complaint, oldStatus); err != nil {
			return nil, err
		}
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventComplaintAssigned,
		AggregateID: complaint.ID,
		Actor:       events.ActorOf(actor),
		Payload: events.ComplaintAssignedPayload{
			OldAssignee: oldAssignee,
			NewAssignee: assignee.SubjectID,
		},
	})
	return complaint, nil
}

// StartProgress lets the assignee, or whoever assigned it, mark an assigned
// complaint as in progress.
func (s *ComplaintService) StartProgress(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error) {
	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !isSubject(complaint.AssignedTo, actor) && !isSubject(complaint.AssignedBy, actor) {
		return nil, apperrors.NewForbidden("only the assignee or assigner can start work")
	}
	if complaint.Status != domain.ComplaintStatusAssigned && complaint.Status != domain.ComplaintStatusReopened {
		return nil, apperrors.NewConflict("complaint cannot be started", map[string]any{"status": complaint.Status})
	}
	return s.transition(ctx, actor, complaint, domain.ComplaintStatusInProgress)
}

// CancelComplaint lets the creator, or an administrator, withdraw a complaint
// nobody has closed.
func (s *ComplaintService) CancelComplaint(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error) {
	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if complaint.CreatedBy != actor.SubjectID {
		allowed := rbac.HasPermission(actor.Role, rbac.CapViewAllComplaints)
		s.metrics.RecordAuthorization("cancel_others", allowed)
		if !allowed {
			return nil, apperrors.NewForbidden("only the creator or an administrator can cancel")
		}
	}
	if complaint.Status.IsFinal() {
		return nil, apperrors.NewConflict("complaint already closed", map[string]any{"status": complaint.Status})
	}
	return s.transition(ctx, actor, complaint, domain.ComplaintStatusCancelled)
}

// CloseComplaint closes an active complaint.
func (s *ComplaintService) CloseComplaint(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error) {
	if err := s.require(actor, rbac.CapCloseComplaints); err != nil {
		return nil, err
	}
	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsFinal() {
		return nil, apperrors.NewConflict("complaint already closed", map[string]any{"status": complaint.Status})
	}
	return s.transition(ctx, actor, complaint, domain.ComplaintStatusClosed)
}

// ReopenComplaint reopens a closed or cancelled complaint.
func (s *ComplaintService) ReopenComplaint(ctx context.Context, actor domain.Identity, id string) (*domain.Complaint, error) {
	if err := s.require(actor, rbac.CapReopenComplaints); err != nil {
		return nil, err
	}
	complaint, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !complaint.Status.IsFinal() {
		return nil, apperrors.NewConflict("complaint is not closed", map[string]any{"status": complaint.Status})
	}
	return s.transition(ctx, actor, complaint, domain.ComplaintStatusReopened)
}

// DeleteComplaint removes a complaint and its history.
func (s *ComplaintService) DeleteComplaint(ctx context.Context, actor domain.Identity, id string) error {
	if err := s.require(actor, rbac.CapDeleteComplaints); err != nil {
		return err
	}
	if err := s.complaints.Delete(ctx, id); err != nil {
		return notFoundOr(err, "complaint", map[string]any{"complaint_id": id})
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventComplaintDeleted,
		AggregateID: id,
		Actor:       events.ActorOf(actor),
	})
	return nil
}

// assignableBatchSize is how many access records AssignableUsers reads per query.
var assignableBatchSize = 100

// AssignableUsers lists active users in the actor's company the actor may
// assign complaints to. limit and offset page over the eligible users, not
// over the raw company roster.
func (s *ComplaintService) AssignableUsers(ctx context.Context, actor domain.Identity, limit, offset int) ([]domain.Identity, error) {
	if err := s.require(actor, rbac.CapAssignComplaints); err != nil {
		return nil, err
	}
	result := []domain.Identity{}
	if strings.TrimSpace(actor.CompanyName) == "" {
		return result, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	for read := 0; len(result) < offset+limit; read += assignableBatchSize {
		records, err := s.records.ListByCompany(ctx, actor.CompanyName, assignableBatchSize, read)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for i := range records {
			if rbac.CanAssignToUser(actor.Role, records[i].Role) {
				result = append(result, records[i].Identity())
			}
		}
		if len(records) < assignableBatchSize {
			break
		}
	}

	if offset >= len(result) {
		return []domain.Identity{}, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}

func (s *ComplaintService) transition(ctx context.Context, actor domain.Identity, complaint *domain.Complaint, next domain.ComplaintStatus) (*domain.Complaint, error) {
	oldStatus := complaint.Status
	complaint.Status = next
	switch {
	case next.IsFinal():
		now := time.Now().UTC()
		complaint.ClosedAt = &now
	default:
		complaint.ClosedAt = nil
	}
	if err := s.complaints.Update(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordStatusChange(ctx, actor, complaint, oldStatus); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventComplaintStatusChanged,
		AggregateID: complaint.ID,
		Actor:       events.ActorOf(actor),
		Payload: events.ComplaintStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: complaint.Status,
		},
	})
	return complaint, nil
}

func (s *ComplaintService) require(actor domain.Identity, capability rbac.Capability) error {
	allowed := rbac.HasPermission(actor.Role, capability)
	s.metrics.RecordAuthorization(string(capability), allowed)
	if !allowed {
		return apperrors.NewForbidden("insufficient permissions")
	}
	return nil
}

func (s *ComplaintService) recordStatusChange(ctx context.Context, actor domain.Identity, complaint *domain.Complaint, oldStatus domain.ComplaintStatus) error {
	return s.recordHistory(ctx, actor, complaint.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": complaint.Status})
}

func (s *ComplaintService) recordHistory(ctx context.Context, actor domain.Identity, complaintID string, changeType domain.ComplaintChangeType, oldValue, newValue map[string]any) error {
	entry := &domain.ComplaintHistory{
		ComplaintID: complaintID,
		ChangedBy:   actor.SubjectID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// scopeFilter maps a view mode onto repository scope. ok is false when the
// scope is empty by construction (blank company or department).
func scopeFilter(actor domain.Identity, mode rbac.ViewMode) (repository.ComplaintFilter, bool) {
	var filter repository.ComplaintFilter
	switch mode {
	case rbac.ViewPersonal:
		filter.CreatedBy = &actor.SubjectID
	case rbac.ViewAssignedToMe:
		filter.AssignedTo = &actor.SubjectID
	case rbac.ViewDepartment:
		company, department := strings.TrimSpace(actor.CompanyName), strings.TrimSpace(actor.Department)
		if company == "" || department == "" {
			return filter, false
		}
		filter.CompanyName = &company
		filter.Department = &department
	case rbac.ViewAllCompany:
		company := strings.TrimSpace(actor.CompanyName)
		if company == "" {
			return filter, false
		}
		filter.CompanyName = &company
	case rbac.ViewGlobal:
		filter.GlobalOnly = true
	default:
		return filter, false
	}
	return filter, true
}

// canSee reports whether a single complaint is visible to the actor. It never
// reaches past the widest list scope, so administrators see their own company
// plus global complaints.
func canSee(actor domain.Identity, complaint *domain.Complaint) bool {
	if complaint.IsGlobal || complaint.CreatedBy == actor.SubjectID {
		return true
	}
	if complaint.AssignedTo != nil && *complaint.AssignedTo == actor.SubjectID {
		return true
	}
	permissions := rbac.PermissionsFor(actor.Role)
	if permissions.CanViewAllComplaints {
		return sameScope(actor.CompanyName, complaint.CompanyName)
	}
	if permissions.CanViewDepartmentComplaints {
		return sameScope(actor.CompanyName, complaint.CompanyName) && sameScope(actor.Department, complaint.Department)
	}
	return false
}

func isSubject(id *string, actor domain.Identity) bool {
	return id != nil && *id == actor.SubjectID
}

func sameScope(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}

func emptyStats() *domain.ComplaintStats {
	return &domain.ComplaintStats{
		ByStatus:  map[domain.ComplaintStatus]int{},
		ByUrgency: map[domain.ComplaintUrgency]int{},
	}
}

func generateComplaintKey() string {
	return "CMP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
