package handler

import (
	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves wallet lifecycle and money movement.
type WalletHandler struct {
	svc ports.WalletService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(svc ports.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// CreateWallet handles POST /api/v1/wallets.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.CreateWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	var currency domain.Currency
	if req.Currency != "" {
		currency, _ = domain.ParseCurrency(req.Currency)
	}
	w, err := h.svc.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		UserID:         userID,
		Email:          req.Email,
		InitialBalance: req.InitialBalance,
		Currency:       currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWalletResponse(w))
}

// GetBalance handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	w, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(w))
}

// ListTransactions handles GET /api/v1/wallets/me/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var q dto.ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	req := ports.ListTransactionsRequest{UserID: userID, Page: q.Page, PageSize: q.PageSize}
	if q.Status != "" {
		s := domain.TransactionStatus(q.Status)
		req.Status = &s
	}
	if q.Type != "" {
		t := domain.TransactionType(q.Type)
		req.Type = &t
	}

	txns, total, err := h.svc.ListTransactions(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := q.Page, q.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = 20
	}
	response.Page(c, dto.NewTransactionList(txns), page, size, total)
}

// GetPaymentStatus handles GET /api/v1/payments/:intent_id.
func (h *WalletHandler) GetPaymentStatus(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	txn, err := h.svc.GetPaymentStatus(c.Request.Context(), userID, c.Param("intent_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}

// Deposit handles POST /api/v1/deposits.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.svc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:         userID,
		Amount:         req.Amount,
		MethodRef:      req.PaymentMethodID,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}

// CreateDepositIntent handles POST /api/v1/deposits/intents.
func (h *WalletHandler) CreateDepositIntent(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	pi, err := h.svc.CreateDepositIntent(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewIntentResponse(pi))
}

// ConfirmDeposit handles POST /api/v1/deposits/confirm.
func (h *WalletHandler) ConfirmDeposit(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.ConfirmIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	txn, err := h.svc.ConfirmDeposit(c.Request.Context(), ports.ConfirmDepositRequest{
		UserID:    userID,
		IntentID:  req.PaymentIntentID,
		MethodRef: req.PaymentMethodID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}

// Withdraw handles POST /api/v1/withdrawals.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.svc.Withdraw(c.Request.Context(), ports.WithdrawRequest{
		UserID:         userID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}

// Transfer handles POST /api/v1/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.svc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromUserID:     userID,
		ToUserID:       req.RecipientUserID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}
