package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"digital-wallet/internal/adapter/http/middleware"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/internal/core/ports/mocks"
	"digital-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router      *gin.Engine
	wallet      *mocks.MockWalletService
	eligibility *mocks.MockEligibilityService
}

func newTestAPI(t *testing.T, checkers ...ports.HealthChecker) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := &testAPI{
		wallet:      mocks.NewMockWalletService(ctrl),
		eligibility: mocks.NewMockEligibilityService(ctrl),
	}
	api.router = SetupRouter(RouterDeps{
		WalletSvc:      api.wallet,
		EligibilitySvc: api.eligibility,
		AdminToken:     "admin-secret",
		HealthCheckers: checkers,
		Logger:         zerolog.Nop(),
	})
	return api
}

func (a *testAPI) do(method, path, user string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleTxn(typ domain.TransactionType, amount int64) *domain.Transaction {
	to := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Transaction{
		ID: uuid.New(), Type: typ, Amount: amount, Currency: domain.CurrencyUSD,
		ToWalletID: &to, Status: domain.TransactionStatusCompleted, CreatedAt: now, UpdatedAt: now,
	}
}

func TestRoutes_RequireIdentity(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/wallets/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthenticated, decode(t, w)["error_code"])
}

func TestCreateWallet(t *testing.T) {
	api := newTestAPI(t)
	w := &domain.Wallet{ID: uuid.New(), UserID: "alice", Balance: 1050, Currency: domain.CurrencyEUR}

	api.wallet.EXPECT().CreateWallet(gomock.Any(), ports.CreateWalletRequest{
		UserID: "alice", Email: "alice@example.com", InitialBalance: 1050, Currency: domain.CurrencyEUR,
	}).Return(w, nil)

	resp := api.do(http.MethodPost, "/api/v1/wallets", "alice", map[string]interface{}{
		"email": "alice@example.com", "initial_balance": 1050, "currency": "eur",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, w.ID.String(), data["id"])
	assert.Equal(t, float64(1050), data["balance"])
	assert.Equal(t, "10.50 EUR", data["display_balance"])
	assert.Equal(t, "EUR", data["currency"])
}

func TestCreateWallet_ValidationAndServiceErrors(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/api/v1/wallets", "alice", map[string]interface{}{"initial_balance": -1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, apperror.CodeValidation, decode(t, resp)["error_code"])

	api.wallet.EXPECT().CreateWallet(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotEligible())
	resp = api.do(http.MethodPost, "/api/v1/wallets", "alice", map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, apperror.CodeNotEligible, decode(t, resp)["error_code"])

	api.wallet.EXPECT().CreateWallet(gomock.Any(), gomock.Any()).Return(nil, errors.New("unexpected"))
	resp = api.do(http.MethodPost, "/api/v1/wallets", "alice", map[string]interface{}{})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestDeposit_PassesIdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	txn := sampleTxn(domain.TransactionTypeDeposit, 2500)

	api.wallet.EXPECT().Deposit(gomock.Any(), ports.DepositRequest{
		UserID: "alice", Amount: 2500, MethodRef: "pm_card_visa", IdempotencyKey: "dep-1",
	}).Return(txn, nil)

	resp := api.do(http.MethodPost, "/api/v1/deposits", "alice",
		map[string]interface{}{"amount": 2500, "payment_method_id": "pm_card_visa"},
		HeaderIdempotencyKey, "dep-1")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, txn.ID.String(), data["id"])
	assert.Equal(t, "deposit", data["type"])
	assert.Equal(t, "25.00 USD", data["display_amount"])
}

func TestDeposit_Rejections(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/api/v1/deposits", "alice", map[string]interface{}{"amount": 0, "payment_method_id": "pm_card_visa"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	long := string(bytes.Repeat([]byte("k"), 129))
	resp = api.do(http.MethodPost, "/api/v1/deposits", "alice",
		map[string]interface{}{"amount": 10, "payment_method_id": "pm_card_visa"}, HeaderIdempotencyKey, long)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	api.wallet.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrMethodNotOwned())
	resp = api.do(http.MethodPost, "/api/v1/deposits", "alice", map[string]interface{}{"amount": 10, "payment_method_id": "pm_card_visa"})
	assert.Equal(t, apperror.CodeMethodNotOwned, decode(t, resp)["error_code"])
}

func TestTwoPhaseDeposit(t *testing.T) {
	api := newTestAPI(t)

	api.wallet.EXPECT().CreateDepositIntent(gomock.Any(), "alice", int64(700)).Return(&domain.PaymentIntent{
		ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 700, Currency: domain.CurrencyUSD, Status: domain.IntentRequiresPaymentMethod,
	}, nil)
	resp := api.do(http.MethodPost, "/api/v1/deposits/intents", "alice", map[string]interface{}{"amount": 700})
	require.Equal(t, http.StatusCreated, resp.Code)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "pi_1", data["payment_intent_id"])
	assert.Equal(t, "pi_1_secret", data["client_secret"])

	api.wallet.EXPECT().ConfirmDeposit(gomock.Any(), ports.ConfirmDepositRequest{UserID: "alice", IntentID: "pi_1", MethodRef: "pm_card_visa"}).
		Return(sampleTxn(domain.TransactionTypeDeposit, 700), nil)
	resp = api.do(http.MethodPost, "/api/v1/deposits/confirm", "alice",
		map[string]interface{}{"payment_intent_id": "pi_1", "payment_method_id": "pm_card_visa"})
	assert.Equal(t, http.StatusOK, resp.Code)

	api.wallet.EXPECT().GetPaymentStatus(gomock.Any(), "alice", "pi_1").Return(sampleTxn(domain.TransactionTypeDeposit, 700), nil)
	resp = api.do(http.MethodGet, "/api/v1/payments/pi_1", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestWithdrawAndTransfer(t *testing.T) {
	api := newTestAPI(t)

	api.wallet.EXPECT().Withdraw(gomock.Any(), ports.WithdrawRequest{UserID: "alice", Amount: 300}).
		Return(nil, apperror.ErrInsufficientFunds())
	resp := api.do(http.MethodPost, "/api/v1/withdrawals", "alice", map[string]interface{}{"amount": 300})
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Equal(t, apperror.CodeInsufficientFunds, decode(t, resp)["error_code"])

	api.wallet.EXPECT().Transfer(gomock.Any(), ports.TransferRequest{FromUserID: "alice", ToUserID: "bob", Amount: 40, IdempotencyKey: "t-9"}).
		Return(sampleTxn(domain.TransactionTypeTransfer, 40), nil)
	resp = api.do(http.MethodPost, "/api/v1/transfers", "alice",
		map[string]interface{}{"recipient_user_id": "bob", "amount": 40}, HeaderIdempotencyKey, "t-9")
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestListTransactions(t *testing.T) {
	api := newTestAPI(t)

	status := domain.TransactionStatusCompleted
	api.wallet.EXPECT().ListTransactions(gomock.Any(), ports.ListTransactionsRequest{
		UserID: "alice", Status: &status, Page: 2, PageSize: 5,
	}).Return([]domain.Transaction{*sampleTxn(domain.TransactionTypeDeposit, 1)}, int64(6), nil)

	resp := api.do(http.MethodGet, "/api/v1/wallets/me/transactions?page=2&page_size=5&status=completed", "alice", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(6), meta["total"])
	assert.Equal(t, float64(2), meta["page"])

	resp = api.do(http.MethodGet, "/api/v1/wallets/me/transactions?status=bogus", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestQRFlow(t *testing.T) {
	api := newTestAPI(t)
	txn := sampleTxn(domain.TransactionTypeTransfer, 900)
	txn.Status = domain.TransactionStatusPending
	txn.Metadata = map[string]string{domain.MetaPaymentID: "01HQR"}

	api.wallet.EXPECT().GenerateQRPayment(gomock.Any(), "merchant", int64(900)).Return(&ports.QRPayment{
		PaymentID: "01HQR", Amount: 900, Currency: domain.CurrencyUSD, Payload: "eyJ.payload", Transaction: *txn,
	}, nil)
	resp := api.do(http.MethodPost, "/api/v1/qr", "merchant", map[string]interface{}{"amount": 900})
	require.Equal(t, http.StatusCreated, resp.Code)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "01HQR", data["payment_id"])
	assert.Equal(t, "eyJ.payload", data["payload"])
	assert.True(t, strings.HasPrefix(data["qr_image"].(string), "data:image/png;base64,"))
	assert.Equal(t, "01HQR", data["transaction"].(map[string]interface{})["payment_id"])

	api.wallet.EXPECT().InitiateQRPayment(gomock.Any(), ports.InitiateQRRequest{Payload: "eyJ.payload", PayerID: "payer", MethodRef: "pm_card_visa"}).
		Return(&ports.QRInitiation{Transaction: txn, IntentID: "pi_qr"}, nil)
	resp = api.do(http.MethodPost, "/api/v1/qr/initiate", "payer",
		map[string]interface{}{"payload": "eyJ.payload", "payment_method_id": "pm_card_visa"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "pi_qr", decode(t, resp)["data"].(map[string]interface{})["payment_intent_id"])

	api.wallet.EXPECT().ConfirmQRPayment(gomock.Any(), ports.ConfirmQRRequest{PayerID: "payer", IntentID: "pi_qr", MethodRef: "pm_card_visa"}).
		Return(nil, apperror.ErrInvalidPaymentID())
	resp = api.do(http.MethodPost, "/api/v1/qr/confirm", "payer",
		map[string]interface{}{"payment_intent_id": "pi_qr", "payment_method_id": "pm_card_visa"})
	assert.Equal(t, apperror.CodeInvalidPaymentID, decode(t, resp)["error_code"])
}

func TestPaymentMethods(t *testing.T) {
	api := newTestAPI(t)

	api.wallet.EXPECT().AddPaymentMethod(gomock.Any(), "alice", "pm_card_visa").
		Return(&domain.PaymentMethod{ID: uuid.New(), UserID: "alice", MethodRef: "pm_card_visa", Kind: "card", IsDefault: true}, nil)
	resp := api.do(http.MethodPost, "/api/v1/payment-methods", "alice", map[string]interface{}{"payment_method_id": "pm_card_visa"})
	assert.Equal(t, http.StatusCreated, resp.Code)

	api.wallet.EXPECT().ListPaymentMethods(gomock.Any(), "alice").Return([]domain.PaymentMethod{{MethodRef: "pm_card_visa"}}, nil)
	resp = api.do(http.MethodGet, "/api/v1/payment-methods", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["data"], 1)

	api.wallet.EXPECT().RemovePaymentMethod(gomock.Any(), "alice", "pm_card_visa").Return(nil)
	resp = api.do(http.MethodDelete, "/api/v1/payment-methods/pm_card_visa", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestEligibility(t *testing.T) {
	api := newTestAPI(t)
	rec := &domain.EligibilityRecord{UserID: "alice", Status: domain.EligibilityPending}

	api.eligibility.EXPECT().Submit(gomock.Any(), "alice").Return(rec, nil)
	resp := api.do(http.MethodPost, "/api/v1/eligibility", "alice", nil)
	assert.Equal(t, http.StatusCreated, resp.Code)

	api.eligibility.EXPECT().GetStatus(gomock.Any(), "alice").Return(rec, nil)
	resp = api.do(http.MethodGet, "/api/v1/eligibility", "alice", nil)
	assert.Equal(t, "pending", decode(t, resp)["data"].(map[string]interface{})["status"])

	resp = api.do(http.MethodPut, "/api/v1/admin/eligibility/alice", "", map[string]interface{}{"status": "approved"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	approved := &domain.EligibilityRecord{UserID: "alice", Status: domain.EligibilityApproved}
	api.eligibility.EXPECT().UpdateStatus(gomock.Any(), "alice", domain.EligibilityApproved, (*string)(nil)).Return(approved, nil)
	resp = api.do(http.MethodPut, "/api/v1/admin/eligibility/alice", "", map[string]interface{}{"status": "approved"},
		middleware.HeaderAdminToken, "admin-secret")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockHealthChecker(ctrl)
	cache := mocks.NewMockHealthChecker(ctrl)
	db.EXPECT().Name().Return("postgresql").AnyTimes()
	cache.EXPECT().Name().Return("redis").AnyTimes()

	db.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	cache.EXPECT().Ping(gomock.Any()).Return(nil)
	cache.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	api := newTestAPI(t, db, cache)

	resp := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "healthy", decode(t, resp)["status"])

	resp = api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, "degraded", body["status"])
	redis := body["dependencies"].(map[string]interface{})["redis"].(map[string]interface{})
	assert.Equal(t, "connection refused", redis["error"])
}
