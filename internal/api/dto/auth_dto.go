package dto

import "time"

// LoginRequest payload for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CSRFTokenResponse carries the token the client echoes in X-CSRF-Token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}
