package handler

import (
	"net/http"
	"order_core/internal/domain/balance/service"
	"order_core/internal/pkg/middleware"
	"order_core/pkg/response"
	"order_core/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BalanceHandler struct {
	service service.BalanceService
}

func NewBalanceHandler(service service.BalanceService) *BalanceHandler {
	return &BalanceHandler{service: service}
}

type CreditInput struct {
	UserID    string `json:"userId" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	Reference string `json:"reference"`
}

// Credit 充值入账（管理员 / 上游支付回调），reference 为空时生成一个
func (h *BalanceHandler) Credit(c *gin.Context) {
	var input CreditInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if input.Reference == "" {
		input.Reference = "topup-" + uuid.New().String()[:8]
	}

	balance, err := h.service.Credit(c.Request.Context(), input.UserID, input.Amount, input.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"userId": input.UserID, "balance": balance})
}

func (h *BalanceHandler) Balance(c *gin.Context) {
	userID := middleware.UserID(c)
	balance, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"userId": userID, "balance": balance})
}

func (h *BalanceHandler) Entries(c *gin.Context) {
	var page utils.Pagination
	_ = c.ShouldBindQuery(&page)
	limit := page.GetLimit()
	entries, err := h.service.Entries(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}
