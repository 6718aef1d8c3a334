package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/events"
)

// Evicter drops a subject's mirrored documents.
type Evicter interface {
	Evict(ctx context.Context, subjectID string) error
}

// StartMirrorInvalidation evicts mirrored documents whenever a role upgrade
// rewrites a subject outside the profile update path.
func StartMirrorInvalidation(dispatcher events.Dispatcher, mirror Evicter, logger *zap.Logger) {
	if dispatcher == nil || mirror == nil {
		return
	}
	dispatcher.Subscribe(events.EventRoleUpgraded, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.RoleChangePayload)
		if !ok || payload.SubjectID == "" {
			return nil
		}
		if err := mirror.Evict(ctx, payload.SubjectID); err != nil {
			logger.Warn("mirror eviction failed", zap.String("subject_id", payload.SubjectID), zap.Error(err))
			return err
		}
		return nil
	})
}
