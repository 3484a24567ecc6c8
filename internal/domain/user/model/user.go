package model

import baseModel "order_core/pkg/model"

const (
	StatusNormal  = 1
	StatusBanned  = 2
	StatusDeleted = 3
)

// User 用户身份，由账号服务维护，订单核心只做存在性校验
type User struct {
	baseModel.BaseModel
	Mobile   string `gorm:"type:varchar(20);uniqueIndex" json:"mobile"`
	Nickname string `gorm:"type:varchar(64)" json:"nickname"`
	Status   int    `gorm:"default:1" json:"status"`
}
