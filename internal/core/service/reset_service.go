package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

const defaultResetTTL = 10 * time.Minute

// PasswordResetService implements the one-time reset-token flow. Only
// the sha256 of the raw token is ever persisted; a compromised store
// does not yield usable reset tokens.
type PasswordResetService struct {
	repo   ports.AccountRepository
	hasher ports.PasswordHasher
	mailer ports.Mailer
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewPasswordResetService(repo ports.AccountRepository, hasher ports.PasswordHasher, mailer ports.Mailer, ttl time.Duration, logger zerolog.Logger) *PasswordResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &PasswordResetService{repo: repo, hasher: hasher, mailer: mailer, ttl: ttl, logger: logger, now: time.Now}
}

// RequestReset generates a reset token and emails it. An unknown email
// returns nil with no store mutation so the endpoint cannot be used to
// probe which addresses are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, baseURL string) error {
	if email == "" {
		return fmt.Errorf("%w: email", domain.ErrValidation)
	}

	account, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil
		}
		return err
	}

	raw, hash, err := newResetToken()
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(s.ttl)
	if err := s.repo.SetResetToken(ctx, account.ID, hash, expires); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", baseURL, raw)
	mail := ports.Mail{
		To:      account.Email,
		Subject: "Password Reset",
		Text:    fmt.Sprintf("You requested a password reset. Click here: %s", resetURL),
		HTML:    fmt.Sprintf("<p>You requested a password reset.</p><p>Click <a href=%q>here</a> to reset your password.</p>", resetURL),
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		// Roll back so the account holds no token that was never delivered.
		if clearErr := s.repo.ClearResetToken(ctx, account.ID); clearErr != nil {
			s.logger.Error().Err(clearErr).Str("account_id", account.ID).Msg("reset token rollback failed")
		}
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("reset email delivery failed")
		return domain.ErrDeliveryFailed
	}

	s.logger.Info().Str("account_id", account.ID).Time("expires", expires).Msg("password reset requested")
	return nil
}

// ConsumeReset exchanges a valid raw token for a new password. A token
// whose hash matches but whose window has passed behaves exactly like a
// token that never existed.
func (s *PasswordResetService) ConsumeReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" || newPassword == "" {
		return domain.ErrValidation
	}

	account, err := s.repo.FindByResetTokenHash(ctx, HashResetToken(rawToken), s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrResetTokenInvalid
		}
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ConsumeResetToken(ctx, account.ID, hash, true); err != nil {
		return err
	}

	s.logger.Info().Str("account_id", account.ID).Msg("password reset completed")
	return nil
}

// HashResetToken is the one-way transform applied to reset tokens at
// rest. Exported so the repository tests can build fixtures.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}
