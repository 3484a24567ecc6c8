package model

import (
	"time"
	baseModel "order_core/pkg/model"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "FIXED"   // 立减 DiscountValue 分
	DiscountPercent DiscountType = "PERCENT" // 按 DiscountValue% 折扣
)

// Campaign 优惠券活动，创建后仅允许修改有效期
type Campaign struct {
	baseModel.BaseModel
	Name           string       `gorm:"type:varchar(100);not null" json:"name"`
	TotalTickets   int          `gorm:"not null" json:"totalTickets"`
	DiscountType   DiscountType `gorm:"type:varchar(16);not null" json:"discountType"`
	DiscountValue  int64        `gorm:"not null" json:"discountValue"`
	MaxDiscount    int64        `gorm:"not null;default:0" json:"maxDiscount"` // 0 表示不封顶
	MinOrderAmount int64        `gorm:"not null;default:0" json:"minOrderAmount"`
	ValidFrom      time.Time    `gorm:"not null" json:"validFrom"`
	ValidUntil     time.Time    `gorm:"not null" json:"validUntil"`
}

func (Campaign) TableName() string { return "coupon_campaigns" }

// ActiveAt 有效期为左闭右开区间
func (c *Campaign) ActiveAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && now.Before(c.ValidUntil)
}

// Discount 计算优惠金额，结果不超过订单金额
func (c *Campaign) Discount(orderAmount int64) int64 {
	var d int64
	switch c.DiscountType {
	case DiscountFixed:
		d = c.DiscountValue
	case DiscountPercent:
		d = orderAmount * c.DiscountValue / 100
		if c.MaxDiscount > 0 && d > c.MaxDiscount {
			d = c.MaxDiscount
		}
	}
	if d > orderAmount {
		d = orderAmount
	}
	if d < 0 {
		d = 0
	}
	return d
}

type TicketStatus string

const (
	TicketAvailable TicketStatus = "AVAILABLE"
	TicketClaimed   TicketStatus = "CLAIMED"
)

// Ticket 预生成的发放名额，一行对应一张券，创建后只会 AVAILABLE→CLAIMED 一次
type Ticket struct {
	baseModel.BaseModel
	CampaignID      string       `gorm:"type:uuid;index:idx_ticket_campaign_status;not null" json:"campaignId"`
	Seq             int          `gorm:"not null" json:"seq"`
	Status          TicketStatus `gorm:"type:varchar(16);index:idx_ticket_campaign_status;not null" json:"status"`
	ClaimedByUserID *string      `gorm:"type:uuid" json:"claimedByUserId,omitempty"`
	ClaimedAt       *time.Time   `json:"claimedAt,omitempty"`
}

func (Ticket) TableName() string { return "coupon_tickets" }

type GrantStatus string

const (
	GrantGranted  GrantStatus = "GRANTED"
	GrantConsumed GrantStatus = "CONSUMED"
	GrantExpired  GrantStatus = "EXPIRED"
)

// Grant 用户领取记录，(campaign_id, user_id) 唯一
type Grant struct {
	baseModel.BaseModel
	UserID            string      `gorm:"type:uuid;uniqueIndex:idx_grant_campaign_user,priority:2;not null" json:"userId"`
	CampaignID        string      `gorm:"type:uuid;uniqueIndex:idx_grant_campaign_user,priority:1;not null" json:"campaignId"`
	TicketID          string      `gorm:"type:uuid;uniqueIndex;not null" json:"ticketId"`
	Status            GrantStatus `gorm:"type:varchar(16);not null" json:"status"`
	ConsumedByOrderID *string     `gorm:"type:uuid" json:"consumedByOrderId,omitempty"`
	ConsumedAt        *time.Time  `json:"consumedAt,omitempty"`
}

func (Grant) TableName() string { return "user_coupon_grants" }
