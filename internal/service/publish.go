package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itconnect/internal/events"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

// notFoundOr maps pgx.ErrNoRows onto a NOT_FOUND for resource and anything
// else through MapError.
func notFoundOr(err error, resource string, details map[string]any) error {
	if isNoRows(err) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
