package handler

import (
	"net/http"
	inventoryModel "order_core/internal/domain/inventory/model"
	"order_core/internal/domain/order/service"
	"order_core/internal/pkg/middleware"
	"order_core/pkg/response"
	"order_core/pkg/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	coordinator service.Coordinator
}

func NewOrderHandler(coordinator service.Coordinator) *OrderHandler {
	return &OrderHandler{coordinator: coordinator}
}

type CreateOrderInput struct {
	CheckoutID      string                `json:"checkoutId" binding:"required"`
	CouponGrantID   string                `json:"couponGrantId"`
	ShippingAddress string                `json:"shippingAddress" binding:"required"`
	Lines           []inventoryModel.Line `json:"lines" binding:"required,min=1,dive"`
}

// CreateOrder 下单：校验预占、扣库存、核销券、扣余额在一个事务内完成
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.coordinator.CommitOrder(c.Request.Context(), service.CommitOrderInput{
		UserID:          middleware.UserID(c),
		CheckoutID:      input.CheckoutID,
		Lines:           input.Lines,
		CouponGrantID:   input.CouponGrantID,
		ShippingAddress: input.ShippingAddress,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.coordinator.GetOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)
	limit := page.GetLimit()
	orders, err := h.coordinator.ListOrders(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, orders)
}
