package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// stubAccountRepo is an in-memory AccountRepository. The mutex makes the
// compare-and-swap atomic, mirroring the conditional update the Mongo
// implementation relies on.
type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	nextID   int
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return nil, domain.ErrAccountExists
		}
	}
	r.nextID++
	clone := cloneAccount(account)
	clone.ID = fmt.Sprintf("acc_%d", r.nextID)
	r.accounts[clone.ID] = clone
	return cloneAccount(clone), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) FindByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == identifier || a.Email == domain.NormalizeEmail(identifier) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == domain.NormalizeEmail(email) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByResetTokenHash(_ context.Context, hash string, now time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.PasswordResetToken == hash && now.Before(a.PasswordResetExpires) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) SetRefreshToken(_ context.Context, id string, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.RefreshToken = token
	return nil
}

func (r *stubAccountRepo) CompareAndSwapRefreshToken(_ context.Context, id string, expected, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	if a.RefreshToken != expected {
		return false, nil
	}
	a.RefreshToken = next
	return true, nil
}

func (r *stubAccountRepo) UpdatePassword(_ context.Context, id string, passwordHash string, clearSession bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	if clearSession {
		a.RefreshToken = ""
	}
	return nil
}

func (r *stubAccountRepo) SetResetToken(_ context.Context, id string, hash string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.PasswordResetToken = hash
	a.PasswordResetExpires = expires
	return nil
}

func (r *stubAccountRepo) ClearResetToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.PasswordResetToken = ""
	a.PasswordResetExpires = time.Time{}
	return nil
}

func (r *stubAccountRepo) ConsumeResetToken(_ context.Context, id string, passwordHash string, clearSession bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	a.PasswordResetToken = ""
	a.PasswordResetExpires = time.Time{}
	if clearSession {
		a.RefreshToken = ""
	}
	return nil
}

// get returns the live stored account for direct inspection.
func (r *stubAccountRepo) get(id string) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.accounts[id])
}

type stubThrottle struct {
	mu       sync.Mutex
	failures map[string]int
	limit    int
}

func newStubThrottle(limit int) *stubThrottle {
	return &stubThrottle{failures: make(map[string]int), limit: limit}
}

func (t *stubThrottle) Blocked(_ context.Context, identifier string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[identifier] >= t.limit, nil
}

func (t *stubThrottle) Failure(_ context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[identifier]++
	return nil
}

func (t *stubThrottle) Reset(_ context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, identifier)
	return nil
}

func newTestSessionService(repo *stubAccountRepo, throttle ports.LoginThrottle) *SessionService {
	hasher := NewBcryptHasher(bcrypt.MinCost, nil)
	return NewSessionService(repo, hasher, testIssuer(), throttle, zerolog.Nop())
}

func registerAccount(t *testing.T, svc *SessionService, username, email, password string) *domain.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), ports.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return account
}

func TestSessionService_Register(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)

	account := registerAccount(t, svc, "ana", "Ana@Example.com", "Secret1")
	if account.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %s", account.Role)
	}
	if account.Email != "ana@example.com" {
		t.Fatalf("expected lowercased email, got %s", account.Email)
	}
	if account.PasswordHash != "" {
		t.Fatalf("sanitized account must not expose the hash")
	}

	stored := repo.get(account.ID)
	if stored.PasswordHash == "" || stored.PasswordHash == "Secret1" {
		t.Fatalf("stored hash missing or plaintext")
	}

	if _, err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "ana", Email: "other@example.com", Password: "Secret1",
	}); !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	if _, err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "pw", Role: "superuser",
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad role, got %v", err)
	}
}

func TestSessionService_Login_PersistsRefreshTokenVerbatim(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	result, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", result.Tokens)
	}
	if result.Tokens.AccessToken == result.Tokens.RefreshToken {
		t.Fatalf("access and refresh tokens must differ")
	}
	if result.Account.PasswordHash != "" || result.Account.RefreshToken != "" {
		t.Fatalf("account not sanitized: %+v", result.Account)
	}

	stored := repo.get(account.ID)
	if stored.RefreshToken != result.Tokens.RefreshToken {
		t.Fatalf("stored refresh token does not match returned token")
	}
}

func TestSessionService_Login_ByEmail(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	if _, err := svc.Login(context.Background(), "Ana@Example.com", "Secret1"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
}

func TestSessionService_Login_DistinctTokensPerCall(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	first, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.Tokens.RefreshToken == second.Tokens.RefreshToken {
		t.Fatalf("expected distinct refresh tokens per login")
	}
	if first.Tokens.AccessToken == second.Tokens.AccessToken {
		t.Fatalf("expected distinct access tokens per login")
	}
}

func TestSessionService_Login_CollapsesUnknownAndWrongPassword(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	if _, err := svc.Login(context.Background(), "ana", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost", "Secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown account, got %v", err)
	}
}

func TestSessionService_Login_Throttled(t *testing.T) {
	repo := newStubAccountRepo()
	throttle := newStubThrottle(2)
	svc := newTestSessionService(repo, throttle)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(context.Background(), "ana", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Limit reached: even the correct password is refused until the
	// window expires.
	if _, err := svc.Login(context.Background(), "ana", "Secret1"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestSessionService_Login_SuccessResetsThrottle(t *testing.T) {
	repo := newStubAccountRepo()
	throttle := newStubThrottle(3)
	svc := newTestSessionService(repo, throttle)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	_, _ = svc.Login(context.Background(), "ana", "wrong")
	if _, err := svc.Login(context.Background(), "ana", "Secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if n := throttle.failures["ana"]; n != 0 {
		t.Fatalf("expected throttle reset, still %d failures", n)
	}
}

func TestSessionService_Refresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	result, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	oldRefresh := result.Tokens.RefreshToken

	rotated, err := svc.Refresh(context.Background(), oldRefresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == oldRefresh {
		t.Fatalf("refresh must issue a new refresh token")
	}
	if stored := repo.get(account.ID); stored.RefreshToken != rotated.RefreshToken {
		t.Fatalf("rotation not persisted")
	}

	// The consumed token is one-shot: replaying it must fail even though
	// it has not expired.
	if _, err := svc.Refresh(context.Background(), oldRefresh); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on replay, got %v", err)
	}
}

func TestSessionService_Refresh_MissingToken(t *testing.T) {
	svc := newTestSessionService(newStubAccountRepo(), nil)

	if _, err := svc.Refresh(context.Background(), ""); !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSessionService_Refresh_ExpiredTokenDoesNotMutate(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	// Mint an already-expired refresh token with the same secrets.
	backdated := testIssuer()
	backdated.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := backdated.IssueRefreshToken(account.ID)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	if err := repo.SetRefreshToken(context.Background(), account.ID, expired); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), expired); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if stored := repo.get(account.ID); stored.RefreshToken != expired {
		t.Fatalf("expired refresh must not mutate the account")
	}
}

func TestSessionService_Refresh_AfterLogout(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	result, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), account.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// Idempotent: logging out twice is not an error.
	if err := svc.Logout(context.Background(), account.ID); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), result.Tokens.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}
}

func TestSessionService_Refresh_ConcurrentSingleWinner(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	result, err := svc.Login(context.Background(), "ana", "Secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	presented := result.Tokens.RefreshToken

	const callers = 2
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(context.Background(), presented)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrInvalidRefreshToken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
}

func TestSessionService_ChangePassword(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")
	before := repo.get(account.ID).PasswordHash

	if err := svc.ChangePassword(context.Background(), account.ID, "wrongOld", "New1pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if repo.get(account.ID).PasswordHash != before {
		t.Fatalf("failed change must leave the hash untouched")
	}

	if _, err := svc.Login(context.Background(), "ana", "Secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.ChangePassword(context.Background(), account.ID, "Secret1", "New1pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	stored := repo.get(account.ID)
	if stored.PasswordHash == before {
		t.Fatalf("hash not replaced")
	}
	if stored.RefreshToken != "" {
		t.Fatalf("password change must clear the refresh token")
	}

	if _, err := svc.Login(context.Background(), "ana", "New1pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestSessionService_RevokeSession(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	if _, err := svc.Login(context.Background(), "ana", "Secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.RevokeSession(context.Background(), account.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if stored := repo.get(account.ID); stored.RefreshToken != "" {
		t.Fatalf("revoke must clear the refresh token")
	}

	if err := svc.RevokeSession(context.Background(), "acc_missing"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestSessionService_CurrentAccount(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestSessionService(repo, nil)
	account := registerAccount(t, svc, "ana", "ana@example.com", "Secret1")

	current, err := svc.CurrentAccount(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("current account: %v", err)
	}
	if current.Username != "ana" || current.PasswordHash != "" {
		t.Fatalf("unexpected account: %+v", current)
	}
}
