package handler

import (
	"time"

	"digital-wallet/internal/adapter/http/middleware"
	"digital-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds everything the routes need.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	EligibilitySvc ports.EligibilityService
	AuditSvc       ports.AuditService // nil disables audit logging
	Limiter        middleware.Limiter // nil disables rate limiting
	RateLimit      int64
	RateWindow     time.Duration
	MaxBodyBytes   int64
	AdminToken     string // empty disables the admin routes
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(middleware.MaxBodySize(maxBody))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.RateLimitRules(deps.RateLimit, deps.RateWindow)
	rl := func(group string) gin.HandlerFunc {
		if deps.Limiter == nil || deps.RateLimit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.Limiter, group, rules[group], deps.Logger)
	}

	wallets := NewWalletHandler(deps.WalletSvc)
	qr := NewQRHandler(deps.WalletSvc)
	methods := NewMethodHandler(deps.WalletSvc)
	eligibility := NewEligibilityHandler(deps.EligibilitySvc)

	v1 := r.Group("/api/v1", middleware.UserIdentity())
	{
		v1.POST("/eligibility", rl(middleware.GroupEligibility), eligibility.Submit)
		v1.GET("/eligibility", rl(middleware.GroupRead), eligibility.Get)

		v1.POST("/wallets", rl(middleware.GroupMoney), wallets.CreateWallet)
		v1.GET("/wallets/me", rl(middleware.GroupRead), wallets.GetBalance)
		v1.GET("/wallets/me/transactions", rl(middleware.GroupRead), wallets.ListTransactions)
		v1.GET("/payments/:intent_id", rl(middleware.GroupRead), wallets.GetPaymentStatus)

		v1.POST("/deposits", rl(middleware.GroupMoney), wallets.Deposit)
		v1.POST("/deposits/intents", rl(middleware.GroupMoney), wallets.CreateDepositIntent)
		v1.POST("/deposits/confirm", rl(middleware.GroupMoney), wallets.ConfirmDeposit)
		v1.POST("/withdrawals", rl(middleware.GroupMoney), wallets.Withdraw)
		v1.POST("/transfers", rl(middleware.GroupMoney), wallets.Transfer)

		v1.POST("/qr", rl(middleware.GroupMoney), qr.Generate)
		v1.POST("/qr/initiate", rl(middleware.GroupMoney), qr.Initiate)
		v1.POST("/qr/confirm", rl(middleware.GroupMoney), qr.Confirm)

		v1.POST("/payment-methods", rl(middleware.GroupMethods), methods.Add)
		v1.GET("/payment-methods", rl(middleware.GroupRead), methods.List)
		v1.DELETE("/payment-methods/:method_id", rl(middleware.GroupMethods), methods.Remove)
	}

	if deps.AdminToken != "" {
		admin := r.Group("/api/v1/admin", middleware.AdminAuth(deps.AdminToken))
		admin.PUT("/eligibility/:user_id", eligibility.Update)
	}

	return r
}
