package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager. A non-positive ttl defaults to one hour.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of issued tokens and their Redis sessions.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Claims binds a token to a subject and one registered session.
type Claims struct {
	SubjectID string `json:"sub"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the session.
func (tm *TokenManager) GenerateToken(subjectID, sessionID string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		SubjectID: subjectID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
