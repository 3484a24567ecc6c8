package repository

import (
	"context"
	"order_core/internal/domain/balance/model"
	"order_core/internal/pkg/txn"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository interface {
	// LockAndRead SELECT ... FOR UPDATE，账户不存在时返回 nil, nil
	LockAndRead(ctx context.Context, userID string) (*model.Account, error)
	// EnsureAccount INSERT ... ON CONFLICT DO NOTHING，零余额开户
	EnsureAccount(ctx context.Context, userID string) error
	UpdateBalance(ctx context.Context, userID string, balance int64) error
	AppendEntry(ctx context.Context, entry *model.Entry) error
	Get(ctx context.Context, userID string) (*model.Account, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]model.Entry, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) LockAndRead(ctx context.Context, userID string) (*model.Account, error) {
	var accounts []model.Account
	err := txn.DB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&accounts).Error
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func (r *accountRepository) EnsureAccount(ctx context.Context, userID string) error {
	return txn.DB(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Account{UserID: userID}).Error
}

func (r *accountRepository) UpdateBalance(ctx context.Context, userID string, balance int64) error {
	return txn.DB(ctx, r.db).Model(&model.Account{}).
		Where("user_id = ?", userID).
		Update("balance", balance).Error
}

func (r *accountRepository) AppendEntry(ctx context.Context, entry *model.Entry) error {
	return txn.DB(ctx, r.db).Create(entry).Error
}

func (r *accountRepository) Get(ctx context.Context, userID string) (*model.Account, error) {
	var accounts []model.Account
	err := txn.DB(ctx, r.db).Where("user_id = ?", userID).Limit(1).Find(&accounts).Error
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func (r *accountRepository) ListEntries(ctx context.Context, userID string, limit int) ([]model.Entry, error) {
	var entries []model.Entry
	err := txn.DB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
