package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// SessionService implements login, token rotation, logout, and password
// changes over the credential store.
type SessionService struct {
	repo     ports.AccountRepository
	hasher   ports.PasswordHasher
	issuer   ports.TokenIssuer
	throttle ports.LoginThrottle
	logger   zerolog.Logger
}

// NewSessionService wires the session controller. throttle may be nil to
// disable login-attempt limiting (tests, single-tenant deployments).
func NewSessionService(repo ports.AccountRepository, hasher ports.PasswordHasher, issuer ports.TokenIssuer, throttle ports.LoginThrottle, logger zerolog.Logger) *SessionService {
	return &SessionService{repo: repo, hasher: hasher, issuer: issuer, throttle: throttle, logger: logger}
}

func (s *SessionService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Account, error) {
	if strings.TrimSpace(input.Username) == "" || strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, domain.ErrValidation
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, domain.ErrValidation
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Username:     strings.TrimSpace(input.Username),
		Email:        domain.NormalizeEmail(input.Email),
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("account_id", created.ID).Str("username", created.Username).Msg("account registered")
	return created.Sanitized(), nil
}

// Login authenticates by username or email. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, identifier, password string) (*ports.LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.throttle != nil {
		blocked, err := s.throttle.Blocked(ctx, identifier)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login throttle unavailable")
		} else if blocked {
			return nil, domain.ErrTooManyAttempts
		}
	}

	account, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.recordFailure(ctx, identifier)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordFailure(ctx, identifier)
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRefreshToken(ctx, account.ID, tokens.RefreshToken); err != nil {
		return nil, err
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, identifier); err != nil {
			s.logger.Warn().Err(err).Msg("login throttle reset failed")
		}
	}

	s.logger.Info().Str("account_id", account.ID).Msg("login succeeded")
	return &ports.LoginResult{Account: account.Sanitized(), Tokens: *tokens}, nil
}

// Refresh rotates the token pair. The compare-and-swap against the
// stored token guarantees exactly one winner when the same refresh token
// is presented concurrently; the loser sees ErrInvalidRefreshToken.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*ports.TokenPair, error) {
	if presented == "" {
		return nil, domain.ErrMissingToken
	}

	claims, err := s.issuer.Verify(presented, ports.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if account.RefreshToken != presented {
		// Reuse after logout or after a prior rotation.
		s.logger.Warn().Str("account_id", account.ID).Msg("refresh token reuse detected")
		return nil, domain.ErrInvalidRefreshToken
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	swapped, err := s.repo.CompareAndSwapRefreshToken(ctx, account.ID, presented, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost the rotation race to a concurrent refresh.
		s.logger.Warn().Str("account_id", account.ID).Msg("refresh rotation race lost")
		return nil, domain.ErrInvalidRefreshToken
	}

	return tokens, nil
}

// Logout clears the stored refresh token. Logging out twice is not an error.
func (s *SessionService) Logout(ctx context.Context, accountID string) error {
	if err := s.repo.SetRefreshToken(ctx, accountID, ""); err != nil {
		return err
	}
	s.logger.Info().Str("account_id", accountID).Msg("logged out")
	return nil
}

// ChangePassword replaces the hash and clears the stored refresh token
// so any other device has to log in again with the new password.
func (s *SessionService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return domain.ErrValidation
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(ctx, oldPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, accountID, hash, true); err != nil {
		return err
	}

	s.logger.Info().Str("account_id", accountID).Msg("password changed")
	return nil
}

func (s *SessionService) CurrentAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

// RevokeSession force-clears an account's refresh token. Used by the
// admin endpoint; the write is identical to a logout.
func (s *SessionService) RevokeSession(ctx context.Context, accountID string) error {
	if _, err := s.repo.FindByID(ctx, accountID); err != nil {
		return err
	}
	if err := s.repo.SetRefreshToken(ctx, accountID, ""); err != nil {
		return err
	}
	s.logger.Info().Str("account_id", accountID).Msg("session revoked by admin")
	return nil
}

func (s *SessionService) issueTokens(account *domain.Account) (*ports.TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(account)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefreshToken(account.ID)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) recordFailure(ctx context.Context, identifier string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Failure(ctx, identifier); err != nil {
		s.logger.Warn().Err(err).Msg("login throttle record failed")
	}
}
