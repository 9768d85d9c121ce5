package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/messaging"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("WLE_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("events", cfg.Events.Provider).
		Msg("Starting Wallet Ledger")

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := pgStorage.RunMigrations(cfg.Database.DSN()); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout)

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}
	var ledgerOpts []service.LedgerOption
	var rateLimitStore *redisStorage.RateLimitStore

	// Redis is optional: without it idempotency falls back to the unique
	// index and rate limiting is off.
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		ledgerOpts = append(ledgerOpts, service.WithIdempotencyCache(
			redisStorage.NewIdempotencyCache(rdb), cfg.Ledger.IdempotencyTTL))
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	publisher, err := messaging.New(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize event publisher")
	}
	ledgerOpts = append(ledgerOpts, service.WithEventPublisher(publisher, cfg.Events.Topic))

	// Initialize core services
	hasher, err := service.NewIntegrityHasher(cfg.Ledger.IntegrityKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize integrity hasher")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)

	verifier := service.NewIntegrityService(entryRepo, hasher, auditSvc, log)
	verifyPool, err := service.NewVerificationPool(cfg.Worker.PoolSize, verifier)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start verification pool")
	}
	defer verifyPool.Release()

	ledgerSvc := service.NewLedgerService(walletRepo, entryRepo, transactor, hasher, auditSvc, log, ledgerOpts...)
	statementSvc := service.NewStatementService(walletRepo, entryRepo, verifyPool, cfg.Ledger.StatementLimit, log)
	reconSvc := service.NewReconciliationService(walletRepo, entryRepo, transactor, verifyPool, auditSvc, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         ledgerSvc,
		Statements:     statementSvc,
		Reconciliation: reconSvc,
		Verifier:       verifier,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Logger:         log,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RateLimit:      cfg.Server.RateLimit,
		RateWindow:     cfg.Server.RateWindow,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
	}).Handler(router)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: corsHandler,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	auditSvc.Wait()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("Event publisher close failed")
	}

	log.Info().Msg("Server exited")
}
