package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltdesk/be-plt-auth/internal/config"
	"github.com/voltdesk/be-plt-auth/internal/handler"
	"github.com/voltdesk/be-plt-auth/internal/logging"
	"github.com/voltdesk/be-plt-auth/internal/metrics"
	"github.com/voltdesk/be-plt-auth/internal/provider"
	"github.com/voltdesk/be-plt-auth/internal/repository"
	"github.com/voltdesk/be-plt-auth/internal/service"
	"github.com/voltdesk/be-plt-auth/pkg/cache"
	"github.com/voltdesk/be-plt-auth/pkg/cookies"
	"github.com/voltdesk/be-plt-auth/pkg/token"
)

func main() {
	cfg := config.Load()

	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "auth-service",
		Pretty:      !cfg.Production(),
	})

	// Bearer token keys. Development generates an ephemeral pair so the
	// service starts with zero configuration.
	privateKeyPEM, publicKeyPEM := cfg.JWTPrivateKey, cfg.JWTPublicKey
	if privateKeyPEM == "" || publicKeyPEM == "" {
		log.Info().Msg("generating JWT key pair (development mode)")
		var err error
		privateKeyPEM, publicKeyPEM, err = token.GenerateKeyPair()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate JWT key pair")
		}
	}
	tokenManager, err := token.NewManager(privateKeyPEM, publicKeyPEM, cfg.AccessTokenDuration, cfg.RefreshTokenDuration)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token manager")
	}

	log.Info().Msg("connecting to database")
	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbPool.Close()
	if err := dbPool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("database connection established")

	// Context cache: Redis when configured, in-process otherwise.
	var contextCache service.ContextCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis[*service.CompanyAuthContext](cfg.RedisURL, "authctx")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		contextCache = redisCache
		log.Info().Msg("using redis context cache")
	} else {
		contextCache = cache.NewMemory[*service.CompanyAuthContext]()
		log.Info().Msg("using in-memory context cache")
	}

	m := metrics.New()
	jar := cookies.New(cfg.Production())

	userRepo := repository.NewUserRepository(dbPool, log)
	companyRepo := repository.NewCompanyRepository(dbPool, log)
	membershipRepo := repository.NewMembershipRepository(dbPool, log)
	permissionRepo := repository.NewPermissionRepository(dbPool, log)
	sessionRepo := repository.NewSessionRepository(dbPool, log)
	impersonationRepo := repository.NewImpersonationRepository(dbPool, log)
	auditRepo := repository.NewAuditRepository(dbPool, log)

	providers := []service.IdentityProvider{
		provider.NewClient(cfg.ProviderAName, cfg.ProviderAURL, log),
		provider.NewClient(cfg.ProviderBName, cfg.ProviderBURL, log),
	}

	authService := service.NewAuthService(userRepo, companyRepo, membershipRepo, sessionRepo, tokenManager, jar, providers, auditRepo, m, log)
	authzService := service.NewAuthzService(authService, membershipRepo, permissionRepo, sessionRepo, jar, contextCache, cfg.ContextCacheTTL, m, log)
	impersonationService := service.NewImpersonationService(impersonationRepo, userRepo, auditRepo, cfg.ImpersonationTTL, log)
	membershipService := service.NewMembershipService(membershipRepo, permissionRepo, userRepo, sessionRepo, auditRepo, log)

	httpHandler := handler.NewHTTPHandler(authService, authzService, impersonationService, membershipService, jar, log)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpHandler.Routes(m.Handler()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server stopped")
}
