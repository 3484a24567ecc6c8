package model

import (
	"time"
	baseModel "order_core/pkg/model"
)

// Stock SKU 库存，只允许 Stock Ledger 修改
type Stock struct {
	SKUID     string    `gorm:"column:sku_id;primaryKey;type:varchar(64)" json:"skuId"`
	Quantity  int64     `gorm:"not null;check:quantity >= 0" json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Reservation 库存预占（软锁定），一次 reserve 调用产生的多行共享 CheckoutID
type Reservation struct {
	baseModel.BaseModel
	CheckoutID string            `gorm:"type:uuid;index;not null" json:"checkoutId"`
	SKUID      string            `gorm:"column:sku_id;type:varchar(64);index:idx_reservation_sku_status;not null" json:"skuId"`
	UserID     string            `gorm:"type:uuid;index;not null" json:"userId"`
	Quantity   int64             `gorm:"not null" json:"quantity"`
	Status     ReservationStatus `gorm:"type:varchar(16);index:idx_reservation_sku_status;not null" json:"status"`
	HeldAt     time.Time         `gorm:"not null" json:"heldAt"`
	ExpiresAt  time.Time         `gorm:"index;not null" json:"expiresAt"`
}

// ActiveAt 是否仍占用库存：HELD 且未过期
func (r *Reservation) ActiveAt(now time.Time) bool {
	return r.Status == ReservationHeld && now.Before(r.ExpiresAt)
}

// Line 下单/预占的一行
type Line struct {
	SKUID    string `json:"skuId" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
}
