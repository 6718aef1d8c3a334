package auth

import (
	"context"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/session"
)

// TokenClient is the auth client for one bearer token. It reports a principal
// only while the token's session is still registered.
type TokenClient struct {
	claims   *Claims
	sessions SessionRegistry
}

// NewTokenClient binds claims (nil for an anonymous caller) to the registry.
func NewTokenClient(claims *Claims, sessions SessionRegistry) *TokenClient {
	return &TokenClient{claims: claims, sessions: sessions}
}

func (c *TokenClient) CurrentPrincipal(ctx context.Context) (*session.Principal, error) {
	if c.claims == nil {
		return nil, nil
	}
	subjectID, err := c.sessions.Lookup(ctx, c.claims.SessionID)
	if err != nil {
		return nil, err
	}
	if subjectID == "" || subjectID != c.claims.SubjectID {
		return nil, nil
	}
	return &session.Principal{SubjectID: subjectID, SessionID: c.claims.SessionID}, nil
}

func (c *TokenClient) Listen(ctx context.Context) (<-chan domain.AuthStateChange, func(), error) {
	if c.claims == nil {
		return nil, func() {}, nil
	}
	return c.sessions.Subscribe(ctx, c.claims.SubjectID)
}
