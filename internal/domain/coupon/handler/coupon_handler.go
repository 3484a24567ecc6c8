package handler

import (
	"net/http"
	"time"
	"order_core/internal/domain/coupon/model"
	"order_core/internal/domain/coupon/service"
	"order_core/internal/pkg/middleware"
	"order_core/pkg/response"

	"github.com/gin-gonic/gin"
)

type CouponHandler struct {
	service service.Allocator
}

func NewCouponHandler(service service.Allocator) *CouponHandler {
	return &CouponHandler{service: service}
}

type CreateCampaignInput struct {
	Name           string             `json:"name" binding:"required"`
	TotalTickets   int                `json:"totalTickets" binding:"required,min=1"`
	DiscountType   model.DiscountType `json:"discountType" binding:"required,oneof=FIXED PERCENT"`
	DiscountValue  int64              `json:"discountValue" binding:"required,min=1"`
	MaxDiscount    int64              `json:"maxDiscount" binding:"min=0"`
	MinOrderAmount int64              `json:"minOrderAmount" binding:"min=0"`
	ValidFrom      time.Time          `json:"validFrom" binding:"required"`
	ValidUntil     time.Time          `json:"validUntil" binding:"required"`
}

// CreateCampaign 创建活动并预生成券（管理员）
func (h *CouponHandler) CreateCampaign(c *gin.Context) {
	var input CreateCampaignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.CreateCampaign(c.Request.Context(), service.CreateCampaignInput{
		Name:           input.Name,
		TotalTickets:   input.TotalTickets,
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue,
		MaxDiscount:    input.MaxDiscount,
		MinOrderAmount: input.MinOrderAmount,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

type UpdateValidityInput struct {
	ValidFrom  time.Time `json:"validFrom" binding:"required"`
	ValidUntil time.Time `json:"validUntil" binding:"required"`
}

// UpdateValidity 活动创建后只允许调整有效期（管理员）
func (h *CouponHandler) UpdateValidity(c *gin.Context) {
	var input UpdateValidityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.UpdateValidity(c.Request.Context(), c.Param("id"), input.ValidFrom, input.ValidUntil)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// Claim 抢券：售罄与重复领取分别返回不同业务码
func (h *CouponHandler) Claim(c *gin.Context) {
	grant, err := h.service.Claim(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, grant)
}

func (h *CouponHandler) MyGrants(c *gin.Context) {
	grants, err := h.service.Grants(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, grants)
}
