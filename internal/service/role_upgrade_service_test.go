package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/events"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

type roleUpgradeFixture struct {
	svc      *RoleUpgradeService
	access   *fakeAccessRepo
	requests *fakeRoleUpgradeRepo
	upgraded []events.RoleChangePayload
}

func newRoleUpgradeFixture(t *testing.T) *roleUpgradeFixture {
	t.Helper()
	access := allUsers()
	fx := &roleUpgradeFixture{
		access:   access,
		requests: &fakeRoleUpgradeRepo{requests: map[string]*domain.RoleUpgradeRequest{}, access: access},
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(events.EventRoleUpgraded, func(_ context.Context, e events.Event) error {
		fx.upgraded = append(fx.upgraded, e.Payload.(events.RoleChangePayload))
		return nil
	})
	fx.svc = NewRoleUpgradeService(RoleUpgradeDependencies{
		RoleUpgradeRepo:   fx.requests,
		AccessControlRepo: access,
		Dispatcher:        dispatcher,
	})
	return fx
}

func TestRequestUpgrade(t *testing.T) {
	tests := []struct {
		name      string
		requester domain.AccessControl
		requested string
		wantCode  string
	}{
		{name: "employee to supervisor", requester: employee, requested: "Supervisor"},
		{name: "employee to administrator", requester: employee, requested: "Administrator"},
		{name: "team leader to manager", requester: teamLead, requested: "Manager"},
		{name: "same level", requester: manager, requested: "Project Manager", wantCode: apperrors.CodeForbidden},
		{name: "downgrade", requester: manager, requested: "Employee", wantCode: apperrors.CodeForbidden},
		{name: "administrator has nowhere to go", requester: admin, requested: "Administrator", wantCode: apperrors.CodeForbidden},
		{name: "unrecognized label is an employee", requester: employee, requested: "Wizard", wantCode: apperrors.CodeForbidden},
		{name: "blank role", requester: employee, requested: "  ", wantCode: apperrors.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newRoleUpgradeFixture(t)

			req, err := fx.svc.RequestUpgrade(context.Background(), identityOf(tt.requester), tt.requested, " need access ")
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				assert.Empty(t, fx.requests.requests)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.RoleUpgradePending, req.Status)
			assert.Equal(t, tt.requester.Role, req.CurrentRole)
			assert.Equal(t, tt.requested, req.RequestedRole)
			assert.Equal(t, "need access", req.Reason)
		})
	}
}

func TestRequestUpgradeUsesStoredRole(t *testing.T) {
	fx := newRoleUpgradeFixture(t)
	stale := identityOf(manager)
	stale.Role = "Employee"

	_, err := fx.svc.RequestUpgrade(context.Background(), stale, "Supervisor", "")
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestApproveUpgrade(t *testing.T) {
	fx := newRoleUpgradeFixture(t)
	ctx := context.Background()

	req, err := fx.svc.RequestUpgrade(ctx, identityOf(employee), "Team Leader", "")
	require.NoError(t, err)

	_, err = fx.svc.Approve(ctx, identityOf(manager), req.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	approved, err := fx.svc.Approve(ctx, identityOf(admin), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUpgradeApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, "admin", *approved.DecidedBy)
	assert.NotNil(t, approved.DecidedAt)

	record, err := fx.access.GetBySubjectID(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, "Team Leader", record.Role)
	assert.Equal(t, []events.RoleChangePayload{{SubjectID: "emp", FromRole: "Employee", ToRole: "Team Leader"}}, fx.upgraded)

	_, err = fx.svc.Approve(ctx, identityOf(admin), req.ID)
	assertCode(t, err, apperrors.CodeConflict)

	_, err = fx.svc.Approve(ctx, identityOf(admin), "r-missing")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestApproveRechecksEscalation(t *testing.T) {
	fx := newRoleUpgradeFixture(t)
	ctx := context.Background()

	req, err := fx.svc.RequestUpgrade(ctx, identityOf(employee), "Supervisor", "")
	require.NoError(t, err)
	fx.access.records["emp"].Role = "Manager"

	_, err = fx.svc.Approve(ctx, identityOf(admin), req.ID)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Empty(t, fx.upgraded)
}

func TestRejectUpgrade(t *testing.T) {
	fx := newRoleUpgradeFixture(t)
	ctx := context.Background()

	req, err := fx.svc.RequestUpgrade(ctx, identityOf(supervisor), "Manager", "")
	require.NoError(t, err)

	rejected, err := fx.svc.Reject(ctx, identityOf(admin), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUpgradeRejected, rejected.Status)

	record, err := fx.access.GetBySubjectID(ctx, "sup")
	require.NoError(t, err)
	assert.Equal(t, "Supervisor", record.Role)

	_, err = fx.svc.Approve(ctx, identityOf(admin), req.ID)
	assertCode(t, err, apperrors.CodeConflict)
	assert.Empty(t, fx.upgraded)
}
