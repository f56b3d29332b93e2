package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digital-wallet/config"
	"digital-wallet/internal/adapter/gateway/simulated"
	stripeGateway "digital-wallet/internal/adapter/gateway/stripe"
	httpHandler "digital-wallet/internal/adapter/http/handler"
	"digital-wallet/internal/adapter/notify"
	memStorage "digital-wallet/internal/adapter/storage/memory"
	pgStorage "digital-wallet/internal/adapter/storage/postgres"
	redisStorage "digital-wallet/internal/adapter/storage/redis"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/internal/service"
	"digital-wallet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// storage is the set of repositories behind one storage driver.
type storage struct {
	wallets      ports.WalletRepository
	transactions ports.TransactionRepository
	methods      ports.PaymentMethodRepository
	idempotency  ports.IdempotencyRepository
	recon        ports.ReconciliationRepository
	eligibility  ports.EligibilityRepository
	audit        ports.AuditRepository
	deliveries   ports.DeliveryLogRepository // nil when the driver keeps no delivery log
	transactor   ports.DBTransactor
	health       ports.HealthChecker
	close        func()
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("DWL_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("notify", cfg.Notify.Driver).
		Msg("Starting digital wallet")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	checkers := []ports.HealthChecker{store.health}

	var (
		idemCache ports.IdempotencyCache
		inflight  ports.InFlightGuard
		limiter   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		idemCache = redisStorage.NewIdempotencyCache(rdb)
		inflight = redisStorage.NewInFlightGuard(rdb)
		limiter = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, idempotency and in-flight guards are process-local")
	}

	gateway := buildGateway(cfg.Gateway, log)

	notifier, closeNotifier, err := buildNotifier(cfg.Notify, store.deliveries, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize notifier")
	}
	defer closeNotifier()

	qrSecret := cfg.QR.SigningSecret
	if qrSecret == "" {
		qrSecret = randomSecret()
		log.Warn().Msg("qr.signing_secret not set, QR codes will not survive a restart")
	}

	currency, ok := domain.ParseCurrency(cfg.Wallet.DefaultCurrency)
	if !ok {
		log.Fatal().Str("currency", cfg.Wallet.DefaultCurrency).Msg("Unsupported wallet.default_currency")
	}

	auditSvc := service.NewAuditService(store.audit, log)
	eligibilitySvc := service.NewEligibilityService(store.eligibility, cfg.Eligibility.AutoApprove, log)
	walletSvc := service.NewWalletService(service.WalletDeps{
		Wallets:        store.wallets,
		Transactions:   store.transactions,
		Methods:        store.methods,
		Idempotency:    store.idempotency,
		Reconciliation: store.recon,
		Transactor:     store.transactor,
		Gateway:        gateway,
		Eligibility:    eligibilitySvc,
		QR:             service.NewQRTokenService(qrSecret, cfg.QR.TTL, cfg.QR.Issuer),
		Notifier:       notifier,
		Cache:          idemCache,
		InFlight:       inflight,
		Audit:          auditSvc,
	}, service.WalletSettings{
		DefaultCurrency: currency,
		IdempotencyTTL:  cfg.Redis.CacheTTL,
		InFlightTTL:     cfg.Redis.LockTTL,
	}, log)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	routerDeps := httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		EligibilitySvc: eligibilitySvc,
		AuditSvc:       auditSvc,
		RateLimit:      int64(cfg.Server.RateLimit),
		RateWindow:     cfg.Server.RateWindow,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AdminToken:     cfg.Server.AdminToken,
		HealthCheckers: checkers,
		Logger:         logger.Component(log, "http"),
	}
	if limiter != nil {
		routerDeps.Limiter = limiter
	}
	router := httpHandler.SetupRouter(routerDeps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let queued notifications finish before the notifier closes.
	done := make(chan struct{})
	go func() {
		walletSvc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Pending notifications abandoned at shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, all data is lost on exit")
		s := memStorage.NewStore()
		return &storage{
			wallets:      memStorage.NewWalletRepo(s),
			transactions: memStorage.NewTransactionRepo(s),
			methods:      memStorage.NewPaymentMethodRepo(s),
			idempotency:  memStorage.NewIdempotencyRepo(s),
			recon:        memStorage.NewReconciliationRepo(s),
			eligibility:  memStorage.NewEligibilityRepo(s),
			audit:        memStorage.NewAuditRepo(s),
			transactor:   s,
			health:       s,
			close:        func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	if cfg.Storage.Migrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		log.Info().Msg("Schema migrated")
	}

	return &storage{
		wallets:      pgStorage.NewWalletRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		methods:      pgStorage.NewPaymentMethodRepo(pool),
		idempotency:  pgStorage.NewIdempotencyRepo(pool),
		recon:        pgStorage.NewReconciliationRepo(pool),
		eligibility:  pgStorage.NewEligibilityRepo(pool),
		audit:        pgStorage.NewAuditRepo(pool),
		deliveries:   pgStorage.NewDeliveryLogRepo(pool),
		transactor:   pgStorage.NewTransactor(pool),
		health:       pgStorage.NewHealthCheck(pool),
		close:        pool.Close,
	}, nil
}

// buildGateway fronts Stripe with the simulated gateway so published test
// methods never leave the process. Without a key everything is simulated.
func buildGateway(cfg config.GatewayConfig, log zerolog.Logger) ports.PaymentGateway {
	policy := simulated.NewPolicy(cfg.TestMethodIDs, cfg.DeclineMethodIDs)
	if cfg.Simulated || cfg.StripeKey == "" {
		log.Warn().Msg("Payment gateway fully simulated")
		return simulated.New(nil, policy, log, simulated.WithRetention(cfg.SimulatedRetention))
	}
	return simulated.New(stripeGateway.New(cfg, log), policy, log, simulated.WithRetention(cfg.SimulatedRetention))
}

func buildNotifier(cfg config.NotifyConfig, deliveries ports.DeliveryLogRepository, log zerolog.Logger) (ports.Notifier, func(), error) {
	switch cfg.Driver {
	case "webhook":
		var opts []notify.WebhookOption
		if deliveries != nil {
			opts = append(opts, notify.WithDeliveryLog(deliveries))
		}
		client := &http.Client{Timeout: cfg.Timeout}
		return notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, client, log, opts...), func() {}, nil
	case "rabbitmq":
		n, closeFn, err := notify.DialRabbit(cfg.AMQPURL, cfg.Exchange, log)
		if err != nil {
			return nil, nil, err
		}
		return n, func() {
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Msg("closing rabbitmq connection")
			}
		}, nil
	default:
		return notify.NewLogNotifier(log), func() {}, nil
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
