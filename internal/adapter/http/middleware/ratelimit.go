package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Endpoint groups with their own counters.
const (
	GroupLedgerWrite = "ledger_write"
	GroupLedgerRead  = "ledger_read"
	GroupAudit       = "audit"
)

// DefaultRateLimitRules derives per-group limits from the configured write
// budget: reads get three times as much, full-history audits a tenth.
func DefaultRateLimitRules(limit int, window time.Duration) map[string]RateLimitRule {
	base := int64(max(limit, 1))
	return map[string]RateLimitRule{
		GroupLedgerWrite: {Limit: base, Window: window},
		GroupLedgerRead:  {Limit: base * 3, Window: window},
		GroupAudit:       {Limit: max(base/10, 1), Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys the counter by authenticated caller, falling back
// to the client IP.
func extractIdentifier(c *gin.Context) string {
	if caller := c.GetString(CtxCaller); caller != "" {
		return "caller:" + caller
	}
	return "ip:" + c.ClientIP()
}
