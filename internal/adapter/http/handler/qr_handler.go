package handler

import (
	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/qrimage"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// QRHandler serves the three steps of a QR payment.
type QRHandler struct {
	svc ports.WalletService
}

// NewQRHandler creates a QRHandler.
func NewQRHandler(svc ports.WalletService) *QRHandler {
	return &QRHandler{svc: svc}
}

// Generate handles POST /api/v1/qr. The caller is the recipient.
func (h *QRHandler) Generate(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	qr, err := h.svc.GenerateQRPayment(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.NewQRPaymentResponse(qr)
	if resp.QRImage, err = qrimage.DataURL(qr.Payload, qrimage.DefaultSize); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.Created(c, resp)
}

// Initiate handles POST /api/v1/qr/initiate. The caller is the payer.
func (h *QRHandler) Initiate(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.InitiateQRRequest
	if !bindJSON(c, &req) {
		return
	}
	init, err := h.svc.InitiateQRPayment(c.Request.Context(), ports.InitiateQRRequest{
		PaymentID: req.PaymentID,
		Payload:   req.Payload,
		PayerID:   userID,
		MethodRef: req.PaymentMethodID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewQRInitiationResponse(init))
}

// Confirm handles POST /api/v1/qr/confirm.
func (h *QRHandler) Confirm(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.ConfirmIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	txn, err := h.svc.ConfirmQRPayment(c.Request.Context(), ports.ConfirmQRRequest{
		PayerID:   userID,
		IntentID:  req.PaymentIntentID,
		MethodRef: req.PaymentMethodID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}
