package dto

import (
	"time"

	"github.com/spec-kit/itconnect/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse contains the bearer token and its session.
type AuthResponse struct {
	Token     string          `json:"token"`
	SessionID string          `json:"session_id"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  domain.Identity `json:"identity"`
}
