package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultInFlightTTL    = 30 * time.Second
	defaultPageSize       = 20
	maxPageSize           = 100
)

// WalletSettings configures the engine.
type WalletSettings struct {
	DefaultCurrency domain.Currency
	IdempotencyTTL  time.Duration
	InFlightTTL     time.Duration
}

// WalletDeps are the engine's collaborators. Cache, InFlight, Notifier,
// Reconciliation and Audit are optional.
type WalletDeps struct {
	Wallets        ports.WalletRepository
	Transactions   ports.TransactionRepository
	Methods        ports.PaymentMethodRepository
	Idempotency    ports.IdempotencyRepository
	Reconciliation ports.ReconciliationRepository
	Transactor     ports.DBTransactor
	Gateway        ports.PaymentGateway
	Eligibility    ports.EligibilityService
	QR             ports.QRCodec
	Notifier       ports.Notifier
	Cache          ports.IdempotencyCache
	InFlight       ports.InFlightGuard
	Audit          ports.AuditService
}

// WalletServiceImpl implements ports.WalletService.
//
// Every money movement follows the same order: validate, check guarded
// preconditions, call the processor with no lock held, then apply the local
// mutation in one atomic unit. Notifications and cache writes happen after
// commit and never affect the result.
type WalletServiceImpl struct {
	wallets    ports.WalletRepository
	txRepo     ports.TransactionRepository
	methods    ports.PaymentMethodRepository
	idempRepo  ports.IdempotencyRepository
	reconRepo  ports.ReconciliationRepository
	transactor ports.DBTransactor
	gateway    ports.PaymentGateway
	eligible   ports.EligibilityService
	qr         ports.QRCodec
	notifier   ports.Notifier
	idempCache ports.IdempotencyCache
	inflight   ports.InFlightGuard
	local      *localInFlight
	audit      ports.AuditService

	settings WalletSettings
	reserved *reservations
	pending  sync.WaitGroup
	now      func() time.Time
	log      zerolog.Logger
}

// NewWalletService creates a WalletServiceImpl.
func NewWalletService(deps WalletDeps, settings WalletSettings, log zerolog.Logger) *WalletServiceImpl {
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = domain.CurrencyUSD
	}
	if settings.IdempotencyTTL <= 0 {
		settings.IdempotencyTTL = defaultIdempotencyTTL
	}
	if settings.InFlightTTL <= 0 {
		settings.InFlightTTL = defaultInFlightTTL
	}

	s := &WalletServiceImpl{
		wallets:    deps.Wallets,
		txRepo:     deps.Transactions,
		methods:    deps.Methods,
		idempRepo:  deps.Idempotency,
		reconRepo:  deps.Reconciliation,
		transactor: deps.Transactor,
		gateway:    deps.Gateway,
		eligible:   deps.Eligibility,
		qr:         deps.QR,
		notifier:   deps.Notifier,
		idempCache: deps.Cache,
		inflight:   deps.InFlight,
		local:      newLocalInFlight(),
		audit:      deps.Audit,
		settings:   settings,
		reserved:   newReservations(),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("component", "wallet_engine").Logger(),
	}
	if s.inflight == nil {
		s.inflight = s.local
	}
	return s
}

var _ ports.WalletService = (*WalletServiceImpl)(nil)

// Wait blocks until background notifications have finished.
func (s *WalletServiceImpl) Wait() {
	s.pending.Wait()
}

// CreateWallet opens the single wallet of an approved user.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	if req.UserID == "" {
		return nil, apperror.Validation("user_id is required")
	}
	if req.InitialBalance < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	currency := s.settings.DefaultCurrency
	if req.Currency != "" {
		c, ok := domain.ParseCurrency(string(req.Currency))
		if !ok {
			return nil, apperror.Validation(fmt.Sprintf("unsupported currency %q", req.Currency))
		}
		currency = c
	}

	approved, err := s.eligible.IsApproved(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, apperror.ErrNotEligible()
	}

	existing, err := s.wallets.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyExists("wallet")
	}

	customerRef, err := s.gateway.CreateCustomer(ctx, req.Email, map[string]string{"user_id": req.UserID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	wallet := &domain.Wallet{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Balance:     req.InitialBalance,
		Currency:    currency,
		CustomerRef: customerRef,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.wallets.Create(ctx, dbTx, wallet); err != nil {
		return nil, walletCreateErr(err)
	}

	var initial *domain.Transaction
	if req.InitialBalance > 0 {
		initial = &domain.Transaction{
			ID:         uuid.New(),
			Type:       domain.TransactionTypeDeposit,
			Amount:     req.InitialBalance,
			Currency:   currency,
			ToWalletID: &wallet.ID,
			Status:     domain.TransactionStatusCompleted,
			Metadata:   map[string]string{"source": "initial_balance"},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.txRepo.Create(ctx, dbTx, initial); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create initial deposit: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, walletCreateErr(err)
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", wallet.UserID).
		Int64("amount", wallet.Balance).
		Msg("wallet created")

	s.notifyWalletCreated(wallet, initial)
	return wallet, nil
}

func walletCreateErr(err error) error {
	if errors.Is(err, domain.ErrAlreadyExists) {
		return apperror.ErrAlreadyExists("wallet")
	}
	return apperror.InternalError(fmt.Errorf("create wallet: %w", err))
}

// GetBalance returns the caller's wallet.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.walletFor(ctx, userID)
}

// ListTransactions returns a newest-first page of the caller's history.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, req ports.ListTransactionsRequest) ([]domain.Transaction, int64, error) {
	wallet, err := s.walletFor(ctx, req.UserID)
	if err != nil {
		return nil, 0, err
	}

	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	txns, total, err := s.txRepo.ListByWallet(ctx, ports.TransactionListParams{
		WalletID: wallet.ID,
		Status:   req.Status,
		Type:     req.Type,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// GetPaymentStatus returns the transaction carrying intentID if the caller is a party to it.
func (s *WalletServiceImpl) GetPaymentStatus(ctx context.Context, userID, intentID string) (*domain.Transaction, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	txn, err := s.txRepo.GetByExternalRef(ctx, intentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction by ref: %w", err))
	}
	if txn == nil || !txn.Involves(wallet.ID) {
		return nil, apperror.ErrNotFound("payment")
	}
	return txn, nil
}

func (s *WalletServiceImpl) walletFor(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperror.Validation("user_id is required")
	}
	wallet, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// checkMethodOwner fails with PAY_005 unless methodRef is registered to userID.
func (s *WalletServiceImpl) checkMethodOwner(ctx context.Context, userID, methodRef string) error {
	if methodRef == "" {
		return apperror.Validation("payment_method_id is required")
	}
	m, err := s.methods.GetByMethodRef(ctx, methodRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payment method: %w", err))
	}
	if m == nil || m.UserID != userID {
		return apperror.ErrMethodNotOwned()
	}
	return nil
}

// gatewayFailure keeps transient processor errors unchanged and wraps
// terminal ones with the operation's failure kind.
func gatewayFailure(err error, wrap func(error) *apperror.AppError) error {
	if apperror.HasCode(err, apperror.CodeGatewayUnavailable) {
		return err
	}
	return wrap(err)
}
