package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/worldlaptopcare/auth-service/internal/api"
	"github.com/worldlaptopcare/auth-service/internal/api/handler"
	"github.com/worldlaptopcare/auth-service/internal/core/service"
	"github.com/worldlaptopcare/auth-service/internal/infrastructure/config"
	mongodb "github.com/worldlaptopcare/auth-service/internal/infrastructure/db/mongo"
	redisdb "github.com/worldlaptopcare/auth-service/internal/infrastructure/db/redis"
	"github.com/worldlaptopcare/auth-service/internal/infrastructure/mail"
	"github.com/worldlaptopcare/auth-service/internal/infrastructure/workers"
	"github.com/worldlaptopcare/auth-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Development(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	accountRepo := mongodb.NewAccountRepository(db)
	if err := accountRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("account index bootstrap failed")
	}

	// --- Core services ---
	hashPool := workers.NewHashPool(cfg.Hashing.Workers, log)
	defer hashPool.Close()

	hasher := service.NewBcryptHasher(cfg.Hashing.BcryptCost, hashPool)
	issuer := service.NewJWTIssuer(
		service.KeySet{Current: cfg.Tokens.AccessSecret, Previous: cfg.Tokens.AccessPrevSecrets},
		service.KeySet{Current: cfg.Tokens.RefreshSecret, Previous: cfg.Tokens.RefreshPrevSecrets},
		cfg.Tokens.AccessExpiry,
		cfg.Tokens.RefreshExpiry,
	)
	throttle := redisdb.NewLoginThrottle(rdb, cfg.Redis.MaxAttempts, cfg.Redis.AttemptWindow)
	mailer := mail.NewSMTPMailer(mail.Config{
		Addr:     cfg.SMTP.Addr,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})

	sessions := service.NewSessionService(accountRepo, hasher, issuer, throttle, log)
	resets := service.NewPasswordResetService(accountRepo, hasher, mailer, cfg.Reset.TokenTTL, log)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Sessions: sessions,
		Resets:   resets,
		Issuer:   issuer,
		Cookies: handler.CookieConfig{
			Secure:     !cfg.Development(),
			AccessTTL:  cfg.Tokens.AccessExpiry,
			RefreshTTL: cfg.Tokens.RefreshExpiry,
		},
		ResetURL: cfg.Reset.BaseURL,
		Mongo:    db,
		Redis:    rdb,
		Logger:   log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting auth service")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("auth service stopped")
}
