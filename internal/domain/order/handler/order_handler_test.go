package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"order_core/internal/domain/order/model"
	"order_core/internal/domain/order/service"
	"order_core/internal/pkg/middleware"
	"order_core/pkg/apperr"
	"order_core/pkg/response"
	"order_core/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) CommitOrder(ctx context.Context, input service.CommitOrderInput) (*model.Order, error) {
	args := m.Called(ctx, input)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCoordinator) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCoordinator) ListOrders(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit)
	if o := args.Get(0); o != nil {
		return o.([]model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(c service.Coordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewOrderHandler(c)
	g := r.Group("/orders", middleware.AuthMiddleware(testSecret))
	g.POST("", h.CreateOrder)
	g.GET("", h.ListOrders)
	g.GET("/:id", h.GetOrder)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	token, err := utils.GenerateToken(testSecret, "u1", utils.RoleUser, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func validBody() gin.H {
	return gin.H{
		"checkoutId":      "c-1",
		"shippingAddress": "Shanghai",
		"lines":           []gin.H{{"skuId": "sku-1", "quantity": 2}},
	}
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	t.Run("commits for the caller", func(t *testing.T) {
		m := new(MockCoordinator)
		m.On("CommitOrder", mock.Anything, mock.MatchedBy(func(in service.CommitOrderInput) bool {
			return in.UserID == "u1" && in.CheckoutID == "c-1" && len(in.Lines) == 1 && in.Lines[0].Quantity == 2
		})).Return(&model.Order{OrderNo: "20261016120000abcdef12", PayAmount: 200}, nil)

		w, resp := do(t, newRouter(m), http.MethodPost, "/orders", validBody())
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, response.CodeSuccess, resp.Code)
		m.AssertExpectations(t)
	})

	t.Run("malformed body never reaches the coordinator", func(t *testing.T) {
		m := new(MockCoordinator)
		body := validBody()
		body["lines"] = []gin.H{{"skuId": "sku-1", "quantity": 0}}

		w, resp := do(t, newRouter(m), http.MethodPost, "/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidParam, resp.Code)
		m.AssertNotCalled(t, "CommitOrder", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"reservation missing", apperr.ErrReservationNotFound, http.StatusNotFound, apperr.CodeReservationNotFound},
		{"reservation expired", apperr.ErrReservationExpired, http.StatusConflict, apperr.CodeReservationExpired},
		{"insufficient balance", apperr.ErrInsufficientBalance, http.StatusUnprocessableEntity, apperr.CodeInsufficientBalance},
		{"coupon below minimum", apperr.ErrCouponBelowMinimum.WithDetail("need 1000"), http.StatusConflict, apperr.CodeCouponBelowMinimum},
		{"busy", apperr.ErrBusy, http.StatusServiceUnavailable, apperr.CodeBusy},
		{"unknown", assert.AnError, http.StatusInternalServerError, response.ErrServerInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockCoordinator)
			m.On("CommitOrder", mock.Anything, mock.Anything).Return(nil, tt.err)

			w, resp := do(t, newRouter(m), http.MethodPost, "/orders", validBody())
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestOrderHandler_Queries(t *testing.T) {
	t.Run("get is scoped to the caller", func(t *testing.T) {
		m := new(MockCoordinator)
		m.On("GetOrder", mock.Anything, "u1", "o-1").Return(&model.Order{OrderNo: "n1"}, nil)
		m.On("GetOrder", mock.Anything, "u1", "o-2").Return(nil, apperr.ErrOrderNotFound)
		r := newRouter(m)

		w, _ := do(t, r, http.MethodGet, "/orders/o-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, resp := do(t, r, http.MethodGet, "/orders/o-2", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperr.CodeOrderNotFound, resp.Code)
	})

	t.Run("list passes the limit through", func(t *testing.T) {
		m := new(MockCoordinator)
		m.On("ListOrders", mock.Anything, "u1", 5).Return([]model.Order{{OrderNo: "n1"}}, nil)

		w, _ := do(t, newRouter(m), http.MethodGet, "/orders?limit=5", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		m.AssertExpectations(t)
	})
}
