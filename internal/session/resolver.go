package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/observability"
)

// Principal is the subject currently signed in with the external auth provider.
type Principal struct {
	SubjectID string
	SessionID string
}

// AuthClient is the external-auth handle the resolver reads from.
type AuthClient interface {
	// CurrentPrincipal returns nil with a nil error when nobody is signed in.
	CurrentPrincipal(ctx context.Context) (*Principal, error)
	// Listen subscribes to sign-in/sign-out changes. The returned func
	// releases the subscription and must be called exactly once.
	Listen(ctx context.Context) (<-chan domain.AuthStateChange, func(), error)
}

// AccessLookup loads access-control records. Missing records are reported as
// pgx.ErrNoRows.
type AccessLookup interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.AccessControl, error)
}

// sessionRoles is the set of roles allowed to hold a session. It is narrower
// than the role hierarchy: Team Leader and Supervisor accounts resolve to
// invalid_role here even though rbac recognizes them.
var sessionRoles = map[string]struct{}{
	"Administrator": {},
	"Manager":       {},
	"Employee":      {},
}

// Resolver turns the current auth principal into a session State.
type Resolver struct {
	auth    AuthClient
	records AccessLookup
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewResolver builds a resolver over an injected auth client.
func NewResolver(auth AuthClient, records AccessLookup, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{auth: auth, records: records, logger: logger, metrics: metrics}
}

// Check performs one full resolution. It never returns loading.
func (r *Resolver) Check(ctx context.Context) State {
	state := r.resolve(ctx)
	r.metrics.RecordSessionState(string(state.Kind))
	return state
}

func (r *Resolver) resolve(ctx context.Context) State {
	principal, err := r.auth.CurrentPrincipal(ctx)
	if err != nil {
		r.logger.Warn("auth principal lookup failed", zap.Error(err))
		return Failed(err.Error())
	}
	if principal == nil || principal.SubjectID == "" {
		return NotAuthenticated()
	}

	record, err := r.records.GetBySubjectID(ctx, principal.SubjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserNotFound()
	}
	if err != nil {
		r.logger.Warn("access record lookup failed",
			zap.String("subject_id", principal.SubjectID), zap.Error(err))
		return Failed(err.Error())
	}

	if record.Role == "" {
		return InvalidRole(nil)
	}
	if _, ok := sessionRoles[record.Role]; !ok {
		role := record.Role
		return InvalidRole(&role)
	}
	return Authenticated(record.Identity())
}

// Observe emits loading followed by a resolution, then loading and a fresh
// resolution after every auth-state change. The channel closes and the
// listener is released when ctx ends or the listener stops.
func (r *Resolver) Observe(ctx context.Context) <-chan State {
	out := make(chan State, 1)

	go func() {
		defer close(out)

		if !emit(ctx, out, Loading()) {
			return
		}

		changes, release, err := r.auth.Listen(ctx)
		if err != nil {
			r.logger.Warn("auth listener unavailable", zap.Error(err))
			emit(ctx, out, Failed(err.Error()))
			return
		}
		defer release()

		if !emit(ctx, out, r.Check(ctx)) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				r.logger.Debug("auth state changed", zap.String("change", string(change)))
				if !emit(ctx, out, Loading()) {
					return
				}
				if !emit(ctx, out, r.Check(ctx)) {
					return
				}
			}
		}
	}()

	return out
}

func emit(ctx context.Context, out chan<- State, state State) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- state:
		return true
	}
}
