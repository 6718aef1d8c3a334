package domain

import "time"

// AuthStateChange is broadcast whenever a subject signs in or out.
type AuthStateChange string

const (
	AuthSignedIn  AuthStateChange = "signed_in"
	AuthSignedOut AuthStateChange = "signed_out"
)

// AuthSession is an active sign-in registered in the session store.
type AuthSession struct {
	ID        string
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credential stores the login secret of a subject.
type Credential struct {
	SubjectID    string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
