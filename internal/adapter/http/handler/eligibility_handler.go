package handler

import (
	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/adapter/http/middleware"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// EligibilityHandler exposes identity verification state.
type EligibilityHandler struct {
	svc ports.EligibilityService
}

// NewEligibilityHandler creates an EligibilityHandler.
func NewEligibilityHandler(svc ports.EligibilityService) *EligibilityHandler {
	return &EligibilityHandler{svc: svc}
}

// Submit handles POST /api/v1/eligibility.
func (h *EligibilityHandler) Submit(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	rec, err := h.svc.Submit(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// Get handles GET /api/v1/eligibility.
func (h *EligibilityHandler) Get(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	rec, err := h.svc.GetStatus(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// Update handles PUT /api/v1/admin/eligibility/:user_id.
func (h *EligibilityHandler) Update(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" || len(userID) > 128 {
		response.Error(c, apperror.Validation("user_id is invalid"))
		return
	}
	var req dto.EligibilityUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.svc.UpdateStatus(c.Request.Context(), userID, domain.EligibilityStatus(req.Status), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Admin routes carry no caller identity; record the subject for the audit log.
	c.Set(middleware.CtxUserID, userID)
	response.OK(c, rec)
}
