package repository

import (
	"context"
	"order_core/internal/domain/order/model"
	"order_core/internal/pkg/txn"

	"gorm.io/gorm"
)

type OrderRepository interface {
	// CreateOrder 同时写入订单行
	CreateOrder(ctx context.Context, order *model.Order) error
	UpdateAmounts(ctx context.Context, orderID string, discount, pay int64, grantID *string) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	return txn.DB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) UpdateAmounts(ctx context.Context, orderID string, discount, pay int64, grantID *string) error {
	return txn.DB(ctx, r.db).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"discount_amount": discount,
			"pay_amount":      pay,
			"coupon_grant_id": grantID,
		}).Error
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var orders []model.Order
	err := txn.DB(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sku_id") }).
		Where("id = ?", orderID).
		Limit(1).
		Find(&orders).Error
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := txn.DB(ctx, r.db).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
