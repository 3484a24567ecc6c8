package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 使用 UUID 主键的公共字段
type BaseModel struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// EnsureID 写库前分配主键。服务层在事务内需要提前拿到 ID（订单行、券核销引用订单）
func (b *BaseModel) EnsureID() string {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return b.ID
}

// BeforeCreate 兜底，未预分配 ID 的记录由钩子生成
func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	b.EnsureID()
	return nil
}

// ValidID 主键均为 uuid 列，非法格式直接按不存在处理，不下发到数据库
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
