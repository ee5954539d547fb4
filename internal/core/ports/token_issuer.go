package ports

import "github.com/worldlaptopcare/auth-service/internal/core/domain"

// TokenKind discriminates the two token families. A refresh token
// presented where an access token is expected (or vice versa) must fail
// verification as malformed.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the verified identity extracted from a token. Username,
// Email and Role are populated only for access tokens; refresh tokens
// deliberately carry identity alone.
type TokenClaims struct {
	AccountID string
	Username  string
	Email     string
	Role      string
	Kind      TokenKind
}

// TokenPair is an access/refresh token pair as returned to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer signs and verifies session tokens. Implementations hold
// their signing secrets as startup-loaded configuration and perform no I/O.
type TokenIssuer interface {
	IssueAccessToken(account *domain.Account) (string, error)
	IssueRefreshToken(accountID string) (string, error)
	// Verify fails with domain.ErrTokenExpired past expiry and
	// domain.ErrTokenMalformed for any structural, signature, or kind
	// mismatch.
	Verify(token string, kind TokenKind) (*TokenClaims, error)
}
