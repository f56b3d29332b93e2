package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func auditedRouter(audit *mocks.MockAuditService, status int) *gin.Engine {
	r := gin.New()
	r.Use(AuditLog(audit))
	h := func(c *gin.Context) { c.Status(status) }
	r.POST("/api/v1/transfers", UserIdentity(), h)
	r.GET("/api/v1/wallets/me", UserIdentity(), h)
	r.DELETE("/api/v1/payment-methods/:method_id", UserIdentity(), h)
	return r
}

func TestAuditLog_RecordsWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl)

	got := make(chan *domain.AuditLog, 1)
	audit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, entry *domain.AuditLog) {
		got <- entry
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	req.Header.Set(HeaderUserID, "alice")
	auditedRouter(audit, http.StatusCreated).ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	select {
	case entry := <-got:
		assert.Equal(t, domain.AuditActionTransfer, entry.Action)
		assert.Equal(t, "transaction", entry.ResourceType)
		require.NotNil(t, entry.UserID)
		assert.Equal(t, "alice", *entry.UserID)
		assert.Contains(t, entry.Details, `"status":201`)
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_CapturesRouteParam(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl)
	audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionRemoveMethod, entry.Action)
		assert.Equal(t, "pm_card_visa", entry.ResourceID)
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/payment-methods/pm_card_visa", nil)
	req.Header.Set(HeaderUserID, "alice")
	auditedRouter(audit, http.StatusNoContent).ServeHTTP(httptest.NewRecorder(), req)
}

func TestAuditLog_SkipsReadsAndFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl) // any call fails the test

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/me", nil)
	req.Header.Set(HeaderUserID, "alice")
	auditedRouter(audit, http.StatusOK).ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
	req.Header.Set(HeaderUserID, "alice")
	auditedRouter(audit, http.StatusBadRequest).ServeHTTP(httptest.NewRecorder(), req)

	// Identity failures abort before the handler and are not audited either.
	auditedRouter(audit, http.StatusCreated).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil))
}
