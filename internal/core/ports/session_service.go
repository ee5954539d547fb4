package ports

import (
	"context"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
)

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     string
}

// LoginResult bundles the minted token pair with the sanitized account.
type LoginResult struct {
	Account *domain.Account
	Tokens  TokenPair
}

// SessionService orchestrates the login/refresh/logout lifecycle.
type SessionService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.Account, error)
	// Login accepts a username or an email as identifier. Unknown account
	// and wrong password both fail with domain.ErrInvalidCredentials.
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	// Refresh rotates the token pair. The presented refresh token becomes
	// unusable on success even though it has not expired.
	Refresh(ctx context.Context, presentedRefreshToken string) (*TokenPair, error)
	// Logout clears the stored refresh token; idempotent.
	Logout(ctx context.Context, accountID string) error
	// ChangePassword replaces the password hash and clears the stored
	// refresh token, forcing re-login on all devices.
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	CurrentAccount(ctx context.Context, accountID string) (*domain.Account, error)
	// RevokeSession force-clears any account's refresh token (admin operation).
	RevokeSession(ctx context.Context, accountID string) error
}
