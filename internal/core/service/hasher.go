package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// BcryptHasher hashes passwords with bcrypt at a configurable cost.
// When a HashRunner is supplied the expensive bcrypt calls execute on
// its bounded workers; with a nil runner they run inline (tests).
type BcryptHasher struct {
	cost   int
	runner ports.HashRunner
}

func NewBcryptHasher(cost int, runner ports.HashRunner) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost, runner: runner}
}

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password", domain.ErrValidation)
	}

	var (
		hash []byte
		err  error
	)
	if runErr := h.run(ctx, func() {
		hash, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	}); runErr != nil {
		return "", runErr
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	var err error
	if runErr := h.run(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	}); runErr != nil {
		return false, runErr
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		// Anything else means the stored hash is not a bcrypt hash at
		// all, which is data corruption, not a wrong password.
		return false, fmt.Errorf("malformed password hash: %w", err)
	}
}

func (h *BcryptHasher) run(ctx context.Context, job func()) error {
	if h.runner == nil {
		job()
		return nil
	}
	return h.runner.Run(ctx, job)
}
