package main

import (
	"context"
	"fmt"
	balanceModel "order_core/internal/domain/balance/model"
	catalogModel "order_core/internal/domain/catalog/model"
	inventoryModel "order_core/internal/domain/inventory/model"
	userModel "order_core/internal/domain/user/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedUsers 直接写库准备压测用户，balance > 0 时同时开户
func seedUsers(ctx context.Context, db *gorm.DB, n int, balance int64) ([]string, error) {
	ids := make([]string, n)
	users := make([]userModel.User, n)
	for i := range users {
		ids[i] = uuid.New().String()
		users[i].ID = ids[i]
		users[i].Nickname = fmt.Sprintf("stress-%d", i)
		users[i].Status = userModel.StatusNormal
	}
	if err := db.WithContext(ctx).CreateInBatches(users, 500).Error; err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	if balance <= 0 {
		return ids, nil
	}

	accounts := make([]balanceModel.Account, n)
	for i := range accounts {
		accounts[i] = balanceModel.Account{UserID: ids[i], Balance: balance}
	}
	if err := db.WithContext(ctx).CreateInBatches(accounts, 500).Error; err != nil {
		return nil, fmt.Errorf("seed accounts: %w", err)
	}
	return ids, nil
}

func seedProduct(ctx context.Context, db *gorm.DB, price, stock int64) (string, error) {
	sku := "stress-" + uuid.New().String()[:8]
	return sku, db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&catalogModel.Product{SKUID: sku, Name: sku, Price: price, Active: true}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&inventoryModel.Stock{SKUID: sku, Quantity: stock}).Error
	})
}

func stockOf(ctx context.Context, db *gorm.DB, sku string) (int64, error) {
	var s inventoryModel.Stock
	err := db.WithContext(ctx).Where("sku_id = ?", sku).First(&s).Error
	return s.Quantity, err
}
