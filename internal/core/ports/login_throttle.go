package ports

import "context"

// LoginThrottle tracks consecutive failed login attempts per identifier.
// A best-effort guard: implementations should fail open when the backing
// store is unreachable rather than lock everyone out.
type LoginThrottle interface {
	// Blocked reports whether the identifier has exceeded the attempt limit.
	Blocked(ctx context.Context, identifier string) (bool, error)
	// Failure records one failed attempt.
	Failure(ctx context.Context, identifier string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, identifier string) error
}
