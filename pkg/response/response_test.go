package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"not found", apperr.ErrSKUNotFound.WithDetail("sku x"), http.StatusNotFound, apperr.CodeSKUNotFound},
		{"nothing left", apperr.ErrStockUnavailable, http.StatusConflict, apperr.CodeStockUnavailable},
		{"already holds one", apperr.ErrDuplicateReservation, http.StatusConflict, apperr.CodeDuplicateReservation},
		{"hold expired", apperr.ErrReservationExpired, http.StatusConflict, apperr.CodeReservationExpired},
		{"sold out", apperr.ErrSoldOut, http.StatusConflict, apperr.CodeSoldOut},
		{"validation", apperr.ErrInvalidQuantity, http.StatusBadRequest, apperr.CodeInvalidQuantity},
		{"exhausted", apperr.ErrInsufficientBalance, http.StatusUnprocessableEntity, apperr.CodeInsufficientBalance},
		{"wrapped transient", fmt.Errorf("commit: %w", apperr.ErrBusy), http.StatusServiceUnavailable, apperr.CodeBusy},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrServerInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			FromError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestFromError_HidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	cause := errors.New("canceling statement due to lock timeout (SQLSTATE 55P03)")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)

	FromError(c, apperr.ErrBusy.WithDetail("checkout c1").Wrap(cause))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apperr.CodeBusy, resp.Code)
	assert.Equal(t, apperr.ErrBusy.Message+": checkout c1", resp.Message)
	assert.NotContains(t, resp.Message, "SQLSTATE")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "/api/v1/orders", entry.ContextMap()["path"])
	assert.Contains(t, entry.ContextMap()["error"], "55P03")
}
