package ports

import "context"

// ResetService manages one-time password reset tokens. The raw token is
// emailed to the account holder and never persisted; only its one-way
// hash is stored.
type ResetService interface {
	// RequestReset generates and emails a reset token. For an unknown
	// email it returns nil without mutating any state, so callers cannot
	// probe which addresses exist.
	RequestReset(ctx context.Context, email, baseURL string) error
	// ConsumeReset exchanges a valid raw token for a password change and
	// clears the pending reset. Not-found and expired are merged into
	// domain.ErrResetTokenInvalid.
	ConsumeReset(ctx context.Context, rawToken, newPassword string) error
}
