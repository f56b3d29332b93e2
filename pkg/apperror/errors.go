package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to clients.
const (
	CodeInsufficientFunds  = "PAY_001"
	CodeValidation         = "PAY_002"
	CodeDuplicateRequest   = "PAY_003"
	CodeNotFound           = "PAY_004"
	CodeMethodNotOwned     = "PAY_005"
	CodeInvalidPaymentID   = "PAY_006"
	CodeDepositFailed      = "PAY_007"
	CodeWithdrawFailed     = "PAY_008"
	CodePaymentFailed      = "PAY_009"
	CodeNotEligible        = "WAL_001"
	CodeAlreadyExists      = "WAL_002"
	CodeSameWallet         = "WAL_003"
	CodeGatewayUnavailable = "GW_001"
	CodeGatewayRejected    = "GW_002"
	CodeInternal           = "SYS_001"
	CodeLockTimeout        = "SYS_002"
	CodeRateLimited        = "RATE_001"
	CodeUnauthenticated    = "AUTH_001"
	CodeInvalidToken       = "AUTH_003"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// ---- Wallet lifecycle (WAL) ----

func ErrNotEligible() *AppError {
	return New(CodeNotEligible, "User is not approved to hold a wallet", http.StatusForbidden)
}

func ErrAlreadyExists(entity string) *AppError {
	return New(CodeAlreadyExists, fmt.Sprintf("%s already exists", entity), http.StatusConflict)
}

func ErrSameWallet() *AppError {
	return New(CodeSameWallet, "Source and destination wallet are the same", http.StatusBadRequest)
}

// ---- Payment Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeValidation, "Amount must be a positive integer in minor units", http.StatusBadRequest)
}

func ErrDuplicateRequest() *AppError {
	return New(CodeDuplicateRequest, "A request with this idempotency key is already in progress", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrMethodNotOwned() *AppError {
	return New(CodeMethodNotOwned, "Payment method does not belong to this user", http.StatusForbidden)
}

func ErrInvalidPaymentID() *AppError {
	return New(CodeInvalidPaymentID, "Payment id is unknown or no longer pending", http.StatusNotFound)
}

func ErrInvalidQRCode(err error) *AppError {
	return Wrap(CodeInvalidPaymentID, "QR code is invalid or expired", http.StatusNotFound, err)
}

func ErrDepositFailed(err error) *AppError {
	return Wrap(CodeDepositFailed, "Deposit was not completed by the processor", http.StatusPaymentRequired, err)
}

func ErrWithdrawFailed(err error) *AppError {
	return Wrap(CodeWithdrawFailed, "Withdrawal was not completed by the processor", http.StatusPaymentRequired, err)
}

func ErrPaymentFailed(err error) *AppError {
	return Wrap(CodePaymentFailed, "Payment was not completed by the processor", http.StatusPaymentRequired, err)
}

// ---- Payment processor (GW) ----

// ErrGatewayUnavailable marks a transient processor failure. Callers may retry.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(CodeGatewayUnavailable, "Payment processor unavailable", http.StatusServiceUnavailable, err)
}

// ErrGatewayRejected marks a terminal processor refusal.
func ErrGatewayRejected(message string, err error) *AppError {
	if message == "" {
		message = "Payment processor rejected the request"
	}
	return Wrap(CodeGatewayRejected, message, http.StatusUnprocessableEntity, err)
}

// ---- Authentication (AUTH) ----

func ErrUnauthenticated() *AppError {
	return New(CodeUnauthenticated, "Missing caller identity", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
