package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxAccountID = "account_id"
	CtxUsername  = "username"
	CtxEmail     = "email"
	CtxRole      = "role"
)

// AccessTokenCookie is the cookie the token pair travels in for browser
// clients; non-browser clients use the Authorization header.
const AccessTokenCookie = "accessToken"

// Auth validates the access token and injects identity into context.
// The cookie is checked first, then the bearer header, matching how the
// tokens are handed out.
func Auth(issuer ports.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			claims, err := issuer.Verify(token, ports.TokenKindAccess)
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					// Distinguished so clients know to call refresh
					// instead of forcing a re-login.
					return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set(CtxAccountID, claims.AccountID)
			c.Set(CtxUsername, claims.Username)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxRole, claims.Role)

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
