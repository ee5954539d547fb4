package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Credential and token failures. Login and refresh failures that would
// reveal which part of the credential was wrong are collapsed into a
// single sentinel so the HTTP layer cannot leak it either.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrMissingToken        = errors.New("refresh token is required")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenMalformed      = errors.New("token malformed")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrResetTokenInvalid   = errors.New("reset token is invalid or expired")
	ErrDeliveryFailed      = errors.New("reset email delivery failed")
	ErrTooManyAttempts     = errors.New("too many login attempts")
	ErrValidation          = errors.New("missing required field")
)

// ValidRole reports whether role is one of the two supported roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// Account is the credential store's core entity. PasswordHash is never
// serialized; RefreshToken holds at most one active session token.
type Account struct {
	ID                   string    `json:"id"`
	Username             string    `json:"username"`
	Email                string    `json:"email"`
	FullName             string    `json:"fullname,omitempty"`
	PasswordHash         string    `json:"-"`
	RefreshToken         string    `json:"-"`
	PasswordResetToken   string    `json:"-"`
	PasswordResetExpires time.Time `json:"-"`
	Role                 string    `json:"role"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Sanitized returns a copy safe to hand to clients: credential and
// reset fields zeroed so an accidental re-serialization cannot leak them.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PasswordHash = ""
	clone.RefreshToken = ""
	clone.PasswordResetToken = ""
	clone.PasswordResetExpires = time.Time{}
	return &clone
}

// ResetPending reports whether a password reset is pending and still
// inside its validity window at the given instant. An expired token is
// treated exactly as if it did not exist.
func (a *Account) ResetPending(now time.Time) bool {
	return a.PasswordResetToken != "" && now.Before(a.PasswordResetExpires)
}

// NormalizeEmail lowercases an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
