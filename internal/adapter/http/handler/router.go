package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	Statements     ports.StatementService
	Reconciliation ports.ReconciliationService
	Verifier       ports.IntegrityVerifier
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
	MaxBodyBytes   int64
	RateLimit      int
	RateWindow     time.Duration
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	window := deps.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	rules := middleware.DefaultRateLimitRules(deps.RateLimit, window)

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	ledger := NewLedgerHandler(deps.Ledger, deps.Statements, deps.Reconciliation, deps.Verifier)

	v1 := r.Group("/api/v1", jwtAuth)

	wallets := v1.Group("/wallets/:owner_id")
	{
		wallets.PUT("", rl(middleware.GroupLedgerWrite), ledger.ProvisionWallet)
		wallets.POST("/transactions", rl(middleware.GroupLedgerWrite), ledger.RecordTransaction)
		wallets.GET("/statement", rl(middleware.GroupLedgerRead), ledger.GetStatement)
		wallets.GET("/reconcile", rl(middleware.GroupAudit), ledger.Reconcile)
	}

	entries := v1.Group("/entries")
	{
		entries.GET("/:entry_id/verify", rl(middleware.GroupLedgerRead), ledger.VerifyEntry)
	}

	return r
}
