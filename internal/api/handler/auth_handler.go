package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/worldlaptopcare/auth-service/internal/api/metrics"
	"github.com/worldlaptopcare/auth-service/internal/api/middleware"
	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// RefreshTokenCookie mirrors middleware.AccessTokenCookie for the long-
// lived half of the pair.
const RefreshTokenCookie = "refreshToken"

// CookieConfig controls the attributes of the token cookies. Secure is
// dropped only in development, where there is no TLS listener.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthHandler struct {
	sessions ports.SessionService
	resets   ports.ResetService
	cookies  CookieConfig
	resetURL string
}

func NewAuthHandler(sessions ports.SessionService, resets ports.ResetService, cookies CookieConfig, resetURL string) *AuthHandler {
	return &AuthHandler{sessions: sessions, resets: resets, cookies: cookies, resetURL: resetURL}
}

// apiResponse is the envelope for all successful responses.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, apiResponse{Success: true, Message: message, Data: data})
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullname"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type loginRequest struct {
	// Identifier takes a username or an email; the separate fields are
	// kept for older clients that send one or the other explicitly.
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password" validate:"required"`
}

func (r *loginRequest) identifier() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Username != "":
		return r.Username
	default:
		return r.Email
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type sessionData struct {
	Account      *domain.Account `json:"account,omitempty"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

// Register creates a new account.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, err := h.sessions.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return ok(c, http.StatusCreated, "account registered", map[string]any{"account": account})
}

// Login authenticates by username or email and sets the token cookies.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  map[string]any
// @Failure      429   {object}  map[string]any
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.sessions.Login(c.Request().Context(), req.identifier(), req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	h.setTokenCookies(c, result.Tokens)
	return ok(c, http.StatusOK, "login successful", sessionData{
		Account:      result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Refresh rotates the token pair. The refresh token is read from the
// cookie first, then from the JSON body for non-browser clients.
//
// @Summary      Refresh the token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	presented := ""
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	tokens, err := h.sessions.Refresh(c.Request().Context(), presented)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(refreshResult(err)).Inc()
		return err
	}
	metrics.RefreshesTotal.WithLabelValues("success").Inc()

	h.setTokenCookies(c, *tokens)
	return ok(c, http.StatusOK, "token refreshed", sessionData{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Logout clears the stored refresh token and expires both cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	accountID, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	if err := h.sessions.Logout(c.Request().Context(), accountID); err != nil {
		return err
	}

	h.clearTokenCookies(c)
	return ok(c, http.StatusOK, "logged out", nil)
}

// ChangePassword verifies the old password and stores a new hash. The
// stored refresh token is cleared, so the cookies are expired too.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  map[string]any
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	accountID, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.sessions.ChangePassword(c.Request().Context(), accountID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}

	h.clearTokenCookies(c)
	return ok(c, http.StatusOK, "password changed", nil)
}

// Me returns the sanitized profile of the authenticated account.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  map[string]any
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	accountID, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	account, err := h.sessions.CurrentAccount(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", map[string]any{"account": account})
}

// ForgotPassword starts the reset flow. The response is identical for
// known and unknown emails.
//
// @Summary      Request a password reset email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  map[string]any
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.resets.RequestReset(c.Request().Context(), req.Email, h.resetURL); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("delivery_failed").Inc()
		return err
	}
	metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()

	return ok(c, http.StatusOK, "if the email is registered, a reset link has been sent", nil)
}

// ResetPassword consumes a reset token from the URL.
//
// @Summary      Reset password with a one-time token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Raw reset token"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  apiResponse
// @Failure      400    {object}  map[string]any
// @Router       /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.resets.ConsumeReset(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.PasswordResetsTotal.WithLabelValues("consumed").Inc()

	return ok(c, http.StatusOK, "password has been reset", nil)
}

// RevokeSession force-clears an account's refresh token. Admin only.
//
// @Summary      Revoke an account's session
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  apiResponse
// @Failure      403  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /admin/accounts/{id}/revoke [post]
func (h *AuthHandler) RevokeSession(c echo.Context) error {
	if err := h.sessions.RevokeSession(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "session revoked", nil)
}

func (h *AuthHandler) setTokenCookies(c echo.Context, tokens ports.TokenPair) {
	c.SetCookie(h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, h.cookies.AccessTTL))
	c.SetCookie(h.cookie(RefreshTokenCookie, tokens.RefreshToken, h.cookies.RefreshTTL))
}

func (h *AuthHandler) clearTokenCookies(c echo.Context) {
	c.SetCookie(h.cookie(middleware.AccessTokenCookie, "", -time.Second))
	c.SetCookie(h.cookie(RefreshTokenCookie, "", -time.Second))
}

func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
	} else if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	return cookie
}

// ctxAccountID extracts the account identity injected by the Auth
// middleware; its absence means the route was wired without the gate.
func ctxAccountID(c echo.Context) (string, error) {
	id, _ := c.Get(middleware.CtxAccountID).(string)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "throttled"
	default:
		return "error"
	}
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenMalformed), errors.Is(err, domain.ErrInvalidRefreshToken), errors.Is(err, domain.ErrMissingToken):
		return "invalid"
	default:
		return "error"
	}
}
