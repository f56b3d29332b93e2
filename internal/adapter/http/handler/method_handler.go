package handler

import (
	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// MethodHandler manages the caller's registered payment methods.
type MethodHandler struct {
	svc ports.WalletService
}

func NewMethodHandler(svc ports.WalletService) *MethodHandler {
	return &MethodHandler{svc: svc}
}

// Add handles POST /api/v1/payment-methods.
func (h *MethodHandler) Add(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req dto.PaymentMethodRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.AddPaymentMethod(c.Request.Context(), userID, req.PaymentMethodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// List handles GET /api/v1/payment-methods.
func (h *MethodHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	methods, err := h.svc.ListPaymentMethods(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, methods)
}

// Remove handles DELETE /api/v1/payment-methods/:method_id.
func (h *MethodHandler) Remove(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	if err := h.svc.RemovePaymentMethod(c.Request.Context(), userID, c.Param("method_id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
