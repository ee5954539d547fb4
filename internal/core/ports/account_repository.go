package ports

import (
	"context"
	"time"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
)

// AccountRepository defines persistence operations for account credentials.
// Implementations must return domain.ErrAccountNotFound for missing
// accounts and domain.ErrAccountExists on unique-index violations.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByIdentifier matches the identifier against the username or the
	// (case-insensitively stored) email.
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByResetTokenHash returns the account whose pending reset token
	// hash equals hash and whose expiry is after now.
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.Account, error)

	// SetRefreshToken unconditionally replaces the stored refresh token.
	// An empty token clears it (logout).
	SetRefreshToken(ctx context.Context, id string, token string) error
	// CompareAndSwapRefreshToken atomically replaces the stored refresh
	// token with next only if it currently equals expected. Returns false
	// when the stored value did not match (rotation race or replay).
	CompareAndSwapRefreshToken(ctx context.Context, id string, expected, next string) (bool, error)

	// UpdatePassword stores a new password hash. When clearSession is set
	// the refresh token is cleared in the same write.
	UpdatePassword(ctx context.Context, id string, passwordHash string, clearSession bool) error
	// SetResetToken stores the reset token hash and expiry for a pending reset.
	SetResetToken(ctx context.Context, id string, hash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	// ConsumeResetToken stores a new password hash and clears the reset
	// fields (and optionally the refresh token) in a single write.
	ConsumeResetToken(ctx context.Context, id string, passwordHash string, clearSession bool) error
}
