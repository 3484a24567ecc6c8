package handler

import (
	"net/http"
	"time"
	"order_core/internal/domain/inventory/model"
	"order_core/internal/domain/inventory/service"
	"order_core/internal/pkg/middleware"
	"order_core/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	ledger service.Ledger
}

func NewInventoryHandler(ledger service.Ledger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

type ReserveInput struct {
	Lines []model.Line `json:"lines" binding:"required,min=1,dive"`
}

type ReserveOutput struct {
	CheckoutID   string              `json:"checkoutId"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	Reservations []model.Reservation `json:"reservations"`
}

// Reserve 创建预占，返回的 checkoutId 用于下单
func (h *InventoryHandler) Reserve(c *gin.Context) {
	var input ReserveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	rows, err := h.ledger.Reserve(c.Request.Context(), middleware.UserID(c), input.Lines)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, ReserveOutput{
		CheckoutID:   rows[0].CheckoutID,
		ExpiresAt:    rows[0].ExpiresAt,
		Reservations: rows,
	})
}

func (h *InventoryHandler) Cancel(c *gin.Context) {
	n, err := h.ledger.Cancel(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": n})
}

func (h *InventoryHandler) ListReservations(c *gin.Context) {
	list, err := h.ledger.Reservations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *InventoryHandler) Available(c *gin.Context) {
	sku := c.Param("sku")
	n, err := h.ledger.Available(c.Request.Context(), sku)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"skuId": sku, "available": n})
}

type AddStockInput struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

// AddStock 补货（管理员）
func (h *InventoryHandler) AddStock(c *gin.Context) {
	var input AddStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	sku := c.Param("sku")
	n, err := h.ledger.Add(c.Request.Context(), sku, input.Quantity)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"skuId": sku, "quantity": n})
}

type CreateStockInput struct {
	SKUID    string `json:"skuId" binding:"required"`
	Quantity int64  `json:"quantity" binding:"min=0"`
}

// CreateStock 初始化库存行（管理员），已存在时不覆盖
func (h *InventoryHandler) CreateStock(c *gin.Context) {
	var input CreateStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.ledger.CreateStock(c.Request.Context(), input.SKUID, input.Quantity); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"skuId": input.SKUID})
}
