package model

import (
	"time"
	baseModel "order_core/pkg/model"
)

// Account 用户余额账户，单位：分，余额永不为负
type Account struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"userId"`
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type EntryKind string

const (
	EntryCredit EntryKind = "CREDIT"
	EntryDebit  EntryKind = "DEBIT"
)

// Entry 余额流水，与余额变更在同一事务内写入
type Entry struct {
	baseModel.BaseModel
	UserID       string    `gorm:"type:uuid;index;not null" json:"userId"`
	Kind         EntryKind `gorm:"type:varchar(16);not null" json:"kind"`
	Amount       int64     `gorm:"not null" json:"amount"`
	BalanceAfter int64     `gorm:"not null" json:"balanceAfter"`
	Reference    string    `gorm:"type:varchar(64)" json:"reference"` // 订单号或充值单号
}

func (Entry) TableName() string { return "balance_entries" }
