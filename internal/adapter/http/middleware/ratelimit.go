package middleware

import (
	"context"
	"strconv"
	"time"

	redisStore "digital-wallet/internal/adapter/storage/redis"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Limiter counts one request against key. *redis.RateLimitStore satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule is the request budget of one route group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Route groups with their own budget.
const (
	GroupRead        = "read"
	GroupMoney       = "money"
	GroupMethods     = "methods"
	GroupEligibility = "eligibility"
)

// RateLimitRules derives per-group budgets from the configured read budget.
// Money movement and method changes get half of it, eligibility a tenth.
func RateLimitRules(limit int64, window time.Duration) map[string]RateLimitRule {
	atLeastOne := func(n int64) int64 {
		if n < 1 {
			return 1
		}
		return n
	}
	return map[string]RateLimitRule{
		GroupRead:        {Limit: limit, Window: window},
		GroupMoney:       {Limit: atLeastOne(limit / 2), Window: window},
		GroupMethods:     {Limit: atLeastOne(limit / 2), Window: window},
		GroupEligibility: {Limit: atLeastOne(limit / 10), Window: window},
	}
}

// RateLimiter enforces rule for group per caller. Limiter failures let the
// request through.
func RateLimiter(store Limiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := callerKey(c) + ":" + group

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

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

// callerKey prefers the authenticated user over the client address.
func callerKey(c *gin.Context) string {
	if userID, ok := UserID(c); ok {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
