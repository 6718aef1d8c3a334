package session

import (
	"encoding/json"

	"github.com/spec-kit/itconnect/internal/domain"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

// Kind names a session state. The set is closed.
type Kind string

const (
	KindLoading          Kind = "loading"
	KindNotAuthenticated Kind = "not_authenticated"
	KindAuthenticated    Kind = "authenticated"
	KindInvalidRole      Kind = "invalid_role"
	KindUserNotFound     Kind = "user_not_found"
	KindError            Kind = "error"
)

// State is one resolution outcome. Identity is set only for KindAuthenticated,
// Role only for KindInvalidRole (and may be nil there), Message only for KindError.
type State struct {
	Kind     Kind
	Identity *domain.Identity
	Role     *string
	Message  string
}

func Loading() State {
	return State{Kind: KindLoading}
}

func NotAuthenticated() State {
	return State{Kind: KindNotAuthenticated}
}

func UserNotFound() State {
	return State{Kind: KindUserNotFound}
}

func Authenticated(identity domain.Identity) State {
	return State{Kind: KindAuthenticated, Identity: &identity}
}

func InvalidRole(role *string) State {
	return State{Kind: KindInvalidRole, Role: role}
}

func Failed(message string) State {
	return State{Kind: KindError, Message: message}
}

// IsAuthenticated reports whether the state carries a usable identity.
func (s State) IsAuthenticated() bool {
	return s.Kind == KindAuthenticated && s.Identity != nil
}

// Err maps a terminal non-authenticated state onto the error taxonomy.
// Authenticated and loading states return nil.
func (s State) Err(subjectID string) error {
	switch s.Kind {
	case KindNotAuthenticated:
		return apperrors.NewNotAuthenticated()
	case KindUserNotFound:
		return apperrors.NewUserNotFound(subjectID)
	case KindInvalidRole:
		return apperrors.NewInvalidRole(s.Role)
	case KindError:
		return apperrors.NewServiceUnavailable(errString(s.Message))
	}
	return nil
}

type stateJSON struct {
	State    Kind             `json:"state"`
	Identity *domain.Identity `json:"identity,omitempty"`
	Role     *string          `json:"role,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// MarshalJSON renders the state for the session endpoints.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{State: s.Kind, Identity: s.Identity, Role: s.Role, Message: s.Message})
}

type errString string

func (e errString) Error() string { return string(e) }
