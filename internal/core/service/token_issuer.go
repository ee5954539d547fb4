package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// sessionClaims is the JWT payload for both token kinds. Refresh tokens
// carry identity only; profile claims stay empty so rotating a refresh
// token never re-circulates stale profile data.
type sessionClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Kind     string `json:"tk"`
	jwt.RegisteredClaims
}

// KeySet holds the signing key for one token kind plus any previous
// keys that remain valid for verification during a key rollover.
type KeySet struct {
	Current  string
	Previous []string
}

func (k KeySet) all() []string {
	return append([]string{k.Current}, k.Previous...)
}

// JWTIssuer issues and verifies HS256 session tokens. Secrets and
// expiries are fixed at construction and never mutated afterwards.
type JWTIssuer struct {
	accessKeys  KeySet
	refreshKeys KeySet
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

func NewJWTIssuer(accessKeys, refreshKeys KeySet, accessTTL, refreshTTL time.Duration) *JWTIssuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTIssuer{
		accessKeys:  accessKeys,
		refreshKeys: refreshKeys,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}
}

func (i *JWTIssuer) IssueAccessToken(account *domain.Account) (string, error) {
	now := i.now()
	claims := sessionClaims{
		Username: account.Username,
		Email:    account.Email,
		Role:     account.Role,
		Kind:     string(ports.TokenKindAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ID:        newJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	return i.sign(claims, i.accessKeys.Current)
}

func (i *JWTIssuer) IssueRefreshToken(accountID string) (string, error) {
	now := i.now()
	claims := sessionClaims{
		Kind: string(ports.TokenKindRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        newJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	return i.sign(claims, i.refreshKeys.Current)
}

// newJTI gives every token a unique ID so two tokens minted for the
// same subject within the same second still differ.
func newJTI() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}

func (i *JWTIssuer) sign(claims sessionClaims, key string) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token of the expected kind. It tries the
// current key first and then any previous keys still accepted after a
// rollover. Expiry is checked against the verifier's clock by jwt/v5.
func (i *JWTIssuer) Verify(token string, kind ports.TokenKind) (*ports.TokenClaims, error) {
	keys := i.accessKeys
	if kind == ports.TokenKindRefresh {
		keys = i.refreshKeys
	}

	for _, key := range keys.all() {
		claims := &sessionClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(key), nil
		}, jwt.WithTimeFunc(i.now))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				// Wrong key; a previous key may still match.
				continue
			}
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, domain.ErrTokenExpired
			}
			return nil, domain.ErrTokenMalformed
		}
		if !parsed.Valid || claims.Kind != string(kind) || claims.Subject == "" {
			return nil, domain.ErrTokenMalformed
		}
		return &ports.TokenClaims{
			AccountID: claims.Subject,
			Username:  claims.Username,
			Email:     claims.Email,
			Role:      claims.Role,
			Kind:      kind,
		}, nil
	}
	return nil, domain.ErrTokenMalformed
}
