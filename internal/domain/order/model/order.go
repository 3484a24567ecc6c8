package model

import (
	"time"
	baseModel "order_core/pkg/model"
)

// Order 订单，只在提交成功时创建一次，之后只允许状态流转
type Order struct {
	baseModel.BaseModel
	OrderNo         string      `gorm:"unique;not null" json:"orderNo"`
	UserID          string      `gorm:"type:uuid;index;not null" json:"userId"`
	CheckoutID      string      `gorm:"type:uuid;uniqueIndex;not null" json:"checkoutId"`
	Status          string      `gorm:"type:varchar(16);not null" json:"status"`
	TotalAmount     int64       `gorm:"not null" json:"totalAmount"`    // 商品总额，单位：分
	DiscountAmount  int64       `gorm:"not null" json:"discountAmount"` // 优惠金额
	PayAmount       int64       `gorm:"not null" json:"payAmount"`      // 实扣余额
	CouponGrantID   *string     `gorm:"type:uuid" json:"couponGrantId,omitempty"`
	ShippingAddress string      `gorm:"type:text;not null" json:"shippingAddress"`
	PaidAt          *time.Time  `json:"paidAt,omitempty"`
	Lines           []OrderLine `gorm:"foreignKey:OrderID" json:"lines"`
}

// OrderLine 订单行，单价取下单时目录价格
type OrderLine struct {
	baseModel.BaseModel
	OrderID    string `gorm:"type:uuid;index;not null" json:"orderId"`
	SKUID      string `gorm:"column:sku_id;type:varchar(64);not null" json:"skuId"`
	Quantity   int64  `gorm:"not null" json:"quantity"`
	UnitPrice  int64  `gorm:"not null" json:"unitPrice"`
	LineAmount int64  `gorm:"not null" json:"lineAmount"`
}

const (
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)
