package model

import "time"

// Product 商品目录中的 SKU，由目录服务维护，此处只读
type Product struct {
	SKUID     string    `gorm:"column:sku_id;primaryKey;type:varchar(64)" json:"skuId"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"` // 单价，单位：分
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
