package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	param        string // route parameter naming the resource, if any
}

// auditRoutes maps "METHOD route-template" to the action it records.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/wallets":                      {domain.AuditActionCreateWallet, "wallet", ""},
	"POST /api/v1/deposits":                     {domain.AuditActionDeposit, "transaction", ""},
	"POST /api/v1/deposits/confirm":             {domain.AuditActionDeposit, "transaction", ""},
	"POST /api/v1/withdrawals":                  {domain.AuditActionWithdraw, "transaction", ""},
	"POST /api/v1/transfers":                    {domain.AuditActionTransfer, "transaction", ""},
	"POST /api/v1/qr":                           {domain.AuditActionQRGenerate, "transaction", ""},
	"POST /api/v1/qr/initiate":                  {domain.AuditActionQRInitiate, "transaction", ""},
	"POST /api/v1/qr/confirm":                   {domain.AuditActionQRConfirm, "transaction", ""},
	"POST /api/v1/payment-methods":              {domain.AuditActionAddMethod, "payment_method", ""},
	"DELETE /api/v1/payment-methods/:method_id": {domain.AuditActionRemoveMethod, "payment_method", "method_id"},
	"PUT /api/v1/admin/eligibility/:user_id":    {domain.AuditActionEligibility, "eligibility", "user_id"},
}

// AuditLog records successful state-changing requests through auditSvc
// after the handler has written its response.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       route.action,
			ResourceType: route.resourceType,
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if route.param != "" {
			entry.ResourceID = c.Param(route.param)
		}
		if userID, ok := UserID(c); ok {
			entry.UserID = &userID
		}
		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.RequestIDKey),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}
