package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/worldlaptopcare/auth-service/internal/api/handler"
	"github.com/worldlaptopcare/auth-service/internal/api/middleware"
	"github.com/worldlaptopcare/auth-service/internal/core/domain"
	"github.com/worldlaptopcare/auth-service/internal/core/ports"
)

// Deps carries the constructed services the router wires to routes.
type Deps struct {
	Sessions ports.SessionService
	Resets   ports.ResetService
	Issuer   ports.TokenIssuer
	Cookies  handler.CookieConfig
	ResetURL string
	Mongo    *mongo.Database
	Redis    *redis.Client
	Logger   zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("auth"))

	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Resets, deps.Cookies, deps.ResetURL)
	authGate := middleware.Auth(deps.Issuer)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh-token", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password/:token", authHandler.ResetPassword)
	auth.POST("/logout", authHandler.Logout, authGate)
	auth.POST("/change-password", authHandler.ChangePassword, authGate)
	auth.GET("/me", authHandler.Me, authGate)

	// --- Admin routes ---
	admin := e.Group("/admin", authGate, adminOnly)
	admin.POST("/accounts/:id/revoke", authHandler.RevokeSession)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
