package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/events"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/profileaccess"
	"github.com/spec-kit/itconnect/internal/repository"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// ProfileMirror is the read copy refreshed after profile writes.
type ProfileMirror interface {
	PutAccess(ctx context.Context, record *domain.AccessControl) error
	PutProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error)
	Evict(ctx context.Context, subjectID string) error
}

// ProfileService applies field-level access rules to profile reads and edits.
type ProfileService struct {
	records     repository.AccessControlRepository
	profiles    repository.ProfileRepository
	credentials repository.CredentialRepository
	mirror      ProfileMirror
	dispatcher  events.Dispatcher
	bcryptCost  int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// ProfileDependencies bundles collaborators.
type ProfileDependencies struct {
	AccessControlRepo repository.AccessControlRepository
	ProfileRepo       repository.ProfileRepository
	CredentialRepo    repository.CredentialRepository
	Mirror            ProfileMirror
	Dispatcher        events.Dispatcher
	BcryptCost        int
	Logger            *zap.Logger
	Metrics           *observability.Metrics
}

// ProfileAccess summarizes what the requester may do to a target profile.
type ProfileAccess struct {
	TargetID       string                    `json:"target_id"`
	Level          profileaccess.AccessLevel `json:"access_level"`
	WritableFields []string                  `json:"writable_fields"`
}

// ProfileUpdateResult reports the keys that were written. Dropped keys are
// deliberately not itemized.
type ProfileUpdateResult struct {
	TargetID string                    `json:"target_id"`
	Level    profileaccess.AccessLevel `json:"access_level"`
	Applied  []string                  `json:"applied_fields"`
}

// NewProfileService builds the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		records:     deps.AccessControlRepo,
		profiles:    deps.ProfileRepo,
		credentials: deps.CredentialRepo,
		mirror:      deps.Mirror,
		dispatcher:  deps.Dispatcher,
		bcryptCost:  deps.BcryptCost,
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// Access resolves the requester's access level over the target.
func (s *ProfileService) Access(ctx context.Context, requesterID, targetID string) (*ProfileAccess, error) {
	_, target, req, err := s.loadPair(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	level := profileaccess.ResolveAccessLevel(req)
	return &ProfileAccess{
		TargetID:       target.SubjectID,
		Level:          level,
		WritableFields: profileaccess.WritableFields(level),
	}, nil
}

// GetProfile returns the target's profile document when the requester has any
// access to it. The document is read from Postgres and falls back to the
// mirror on a transient fault; the access decision always uses Postgres.
func (s *ProfileService) GetProfile(ctx context.Context, requesterID, targetID string) (*domain.Profile, error) {
	_, target, req, err := s.loadPair(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if profileaccess.ResolveAccessLevel(req) == profileaccess.NoAccess {
		return nil, apperrors.NewForbidden("no access to this profile")
	}

	profile, err := s.profiles.GetByPath(ctx, target.DocumentPath)
	if err == nil {
		s.refreshMirror(ctx, nil, profile)
		return profile, nil
	}
	if isNoRows(err) {
		return nil, apperrors.NewNotFound("profile", map[string]any{"subject_id": targetID})
	}

	if s.mirror != nil {
		if cached, mirrorErr := s.mirror.GetProfile(ctx, target.SubjectID); mirrorErr == nil {
			s.logger.Warn("serving profile from mirror", zap.String("subject_id", targetID), zap.Error(err))
			return cached, nil
		}
	}
	return nil, apperrors.NewServiceUnavailable(err)
}

// UpdateProfile filters fields by the requester's access level and applies the
// survivors. Unauthorized fields are dropped silently; an update with no
// surviving field fails.
func (s *ProfileService) UpdateProfile(ctx context.Context, requesterID, targetID string, fields map[string]any) (*ProfileUpdateResult, error) {
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	_, target, req, err := s.loadPair(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}

	if err := profileaccess.CheckPassword(req, fields); err != nil {
		if errors.Is(err, profileaccess.ErrCrossUserPassword) {
			return nil, apperrors.NewUnsupportedOperation("passwords can only be changed by their owner through self-service")
		}
		return nil, apperrors.MapError(err)
	}

	level := profileaccess.ResolveAccessLevel(req)
	allowed, dropped := profileaccess.FilterFields(level, fields)
	if len(dropped) > 0 {
		s.logger.Info("profile update fields dropped",
			zap.String("requester_id", requesterID),
			zap.String("target_id", targetID),
			zap.String("access_level", string(level)),
			zap.Strings("fields", dropped))
		s.metrics.RecordDroppedFields(string(level), len(dropped))
	}
	if len(allowed) == 0 {
		return nil, apperrors.NewNoAuthorizedFields()
	}

	raw, passwordSet := allowed[profileaccess.FieldPassword]
	if passwordSet {
		delete(allowed, profileaccess.FieldPassword)
		if err := s.setPassword(ctx, target.SubjectID, raw); err != nil {
			return nil, err
		}
	}

	if len(allowed) > 0 {
		update := repository.ProfileUpdate{
			SubjectID:    target.SubjectID,
			DocumentPath: target.DocumentPath,
			Fields:       allowed,
		}
		if err := s.profiles.ApplyUpdate(ctx, update); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return nil, apperrors.NewConflict("email already in use", map[string]any{"field": "email"})
			}
			return nil, notFoundOr(err, "profile", map[string]any{"subject_id": targetID})
		}
		s.refreshAfterWrite(ctx, target)
	}

	applied := make([]string, 0, len(allowed)+1)
	for key := range allowed {
		applied = append(applied, key)
	}
	if passwordSet {
		applied = append(applied, profileaccess.FieldPassword)
	}
	sort.Strings(applied)

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:        events.EventProfileUpdated,
		AggregateID: target.SubjectID,
		Actor:       events.Actor{SubjectID: requesterID, Role: req.RequesterRole},
		Payload: events.ProfileUpdatedPayload{
			AccessLevel: string(level),
			Fields:      applied,
		},
	})

	return &ProfileUpdateResult{TargetID: target.SubjectID, Level: level, Applied: applied}, nil
}

// loadPair fetches requester and target access records concurrently.
func (s *ProfileService) loadPair(ctx context.Context, requesterID, targetID string) (*domain.AccessControl, *domain.AccessControl, profileaccess.Request, error) {
	var requester, target *domain.AccessControl

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, err := s.records.GetBySubjectID(gctx, requesterID)
		if err != nil {
			return notFoundOr(err, "user", map[string]any{"subject_id": requesterID})
		}
		requester = record
		return nil
	})
	g.Go(func() error {
		record, err := s.records.GetBySubjectID(gctx, targetID)
		if err != nil {
			return notFoundOr(err, "user", map[string]any{"subject_id": targetID})
		}
		target = record
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, profileaccess.Request{}, err
	}

	req := profileaccess.Request{
		RequesterID:         requester.SubjectID,
		RequesterRole:       requester.Role,
		RequesterCompany:    requester.CompanyName,
		RequesterDepartment: requester.Department,
		TargetID:            target.SubjectID,
		TargetCompany:       target.CompanyName,
		TargetDepartment:    target.Department,
	}
	return requester, target, req, nil
}

func (s *ProfileService) setPassword(ctx context.Context, subjectID string, raw any) error {
	password, ok := raw.(string)
	if !ok {
		return apperrors.NewValidationError("password must be a string", nil)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.credentials.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		return notFoundOr(err, "credential", map[string]any{"subject_id": subjectID})
	}
	return nil
}

// refreshAfterWrite re-reads the committed documents into the mirror. Failures
// evict the subject so stale copies are not served.
func (s *ProfileService) refreshAfterWrite(ctx context.Context, target *domain.AccessControl) {
	if s.mirror == nil {
		return
	}
	record, err := s.records.GetBySubjectID(ctx, target.SubjectID)
	if err != nil {
		s.evict(ctx, target.SubjectID, err)
		return
	}
	profile, err := s.profiles.GetByPath(ctx, record.DocumentPath)
	if err != nil {
		s.evict(ctx, target.SubjectID, err)
		return
	}
	s.refreshMirror(ctx, record, profile)
}

func (s *ProfileService) refreshMirror(ctx context.Context, record *domain.AccessControl, profile *domain.Profile) {
	if s.mirror == nil {
		return
	}
	if record != nil {
		if err := s.mirror.PutAccess(ctx, record); err != nil {
			s.logger.Warn("mirror access write failed", zap.String("subject_id", record.SubjectID), zap.Error(err))
		}
	}
	if profile != nil {
		if err := s.mirror.PutProfile(ctx, profile); err != nil {
			s.logger.Warn("mirror profile write failed", zap.String("subject_id", profile.SubjectID), zap.Error(err))
		}
	}
}

func (s *ProfileService) evict(ctx context.Context, subjectID string, cause error) {
	s.logger.Warn("mirror refresh failed", zap.String("subject_id", subjectID), zap.Error(cause))
	if err := s.mirror.Evict(ctx, subjectID); err != nil {
		s.logger.Warn("mirror evict failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}
