package ports

import "context"

// PasswordHasher derives and checks one-way password hashes.
type PasswordHasher interface {
	// Hash fails only on empty input (domain.ErrValidation) or an
	// internal hashing fault.
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify returns false, nil on a mismatch; an error only for a
	// malformed stored hash.
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

// HashRunner schedules CPU-heavy credential work onto a bounded set of
// workers so a burst of logins cannot stall unrelated requests. Run
// blocks until the job completes or ctx is cancelled while waiting for
// a worker.
type HashRunner interface {
	Run(ctx context.Context, job func()) error
}
