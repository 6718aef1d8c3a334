package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/events"
)

type recordingEvicter struct {
	evicted []string
	err     error
}

func (r *recordingEvicter) Evict(_ context.Context, subjectID string) error {
	r.evicted = append(r.evicted, subjectID)
	return r.err
}

func TestMirrorInvalidationOnRoleUpgrade(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	evicter := &recordingEvicter{}
	StartMirrorInvalidation(dispatcher, evicter, zap.NewNop())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventRoleUpgraded,
		Payload: events.RoleChangePayload{SubjectID: "u-1", FromRole: "Employee", ToRole: "Manager"},
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventComplaintCreated,
		Payload: events.RoleChangePayload{SubjectID: "u-2"},
	}))

	assert.Equal(t, []string{"u-1"}, evicter.evicted)
}

func TestMirrorInvalidationFailureDoesNotBreakPublish(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	evicter := &recordingEvicter{err: errors.New("redis down")}
	StartMirrorInvalidation(dispatcher, evicter, zap.NewNop())

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventRoleUpgraded,
		Payload: events.RoleChangePayload{SubjectID: "u-1"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, evicter.evicted)
}

func TestNotificationWorkerHandlesComplaintEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(nil)
	notifications := StartNotificationWorker(dispatcher, config.NotificationConfig{EmailFrom: "it@acme.test"}, zap.New(core))
	require.NotNil(t, notifications)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:        events.EventComplaintAssigned,
		AggregateID: "c-1",
		Actor:       events.Actor{SubjectID: "mgr", Role: "Manager"},
		Payload:     events.ComplaintAssignedPayload{NewAssignee: "emp"},
	}))

	assigned := logs.FilterMessage("complaint assigned").All()
	require.Len(t, assigned, 1)
	assert.Equal(t, "emp", assigned[0].ContextMap()["assignee"])
	assert.Equal(t, "mgr", assigned[0].ContextMap()["assigned_by"])

	queued := logs.FilterMessage("notification queued").All()
	require.Len(t, queued, 1)
	assert.Equal(t, "email", queued[0].ContextMap()["channel"])
	assert.Equal(t, "emp", queued[0].ContextMap()["recipient"])
	assert.Equal(t, "c-1", queued[0].ContextMap()["aggregate_id"])
}

func TestNotificationWorkerWithoutDispatcher(t *testing.T) {
	assert.Nil(t, StartNotificationWorker(nil, config.NotificationConfig{}, nil))
}
