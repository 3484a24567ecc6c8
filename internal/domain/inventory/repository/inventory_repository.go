package repository

import (
	"context"
	"errors"
	"time"
	"order_core/internal/domain/inventory/model"
	"order_core/internal/pkg/txn"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository 库存行访问。LockAndRead 必须按 sku_id 升序加行锁。
type StockRepository interface {
	LockAndRead(ctx context.Context, skuIDs []string) ([]model.Stock, error)
	Get(ctx context.Context, skuID string) (*model.Stock, error)
	Create(ctx context.Context, stock *model.Stock) error
	UpdateQuantity(ctx context.Context, skuID string, quantity int64) error
}

// ReservationRepository 预占记录访问
type ReservationRepository interface {
	// LockUser 串行化同一用户的预占请求
	LockUser(ctx context.Context, userID string) error
	HasActive(ctx context.Context, userID string, now time.Time) (bool, error)
	SumActive(ctx context.Context, skuIDs []string, now time.Time) (map[string]int64, error)
	CreateBatch(ctx context.Context, reservations []*model.Reservation) error
	LockCheckout(ctx context.Context, checkoutID string) ([]model.Reservation, error)
	// TransitionActive 把用户 HELD 且未过期的预占改为 to，返回影响行数
	TransitionActive(ctx context.Context, userID string, to model.ReservationStatus, now time.Time) (int64, error)
	// ConfirmCheckout 确认已被 LockCheckout 锁定并校验过的预占，不再比较 expires_at
	ConfirmCheckout(ctx context.Context, checkoutID string) (int64, error)
	ExpireHeld(ctx context.Context, now time.Time, limit int) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

// LockAndRead SELECT ... FOR UPDATE，按 sku_id 排序保证全局一致的加锁顺序
func (r *stockRepository) LockAndRead(ctx context.Context, skuIDs []string) ([]model.Stock, error) {
	var stocks []model.Stock
	err := txn.DB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku_id IN ?", skuIDs).
		Order("sku_id").
		Find(&stocks).Error
	return stocks, err
}

func (r *stockRepository) Get(ctx context.Context, skuID string) (*model.Stock, error) {
	var stock model.Stock
	if err := txn.DB(ctx, r.db).Where("sku_id = ?", skuID).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) Create(ctx context.Context, stock *model.Stock) error {
	return txn.DB(ctx, r.db).Create(stock).Error
}

func (r *stockRepository) UpdateQuantity(ctx context.Context, skuID string, quantity int64) error {
	return txn.DB(ctx, r.db).Model(&model.Stock{}).
		Where("sku_id = ?", skuID).
		Update("quantity", quantity).Error
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// LockUser 事务级 advisory lock，提交或回滚时自动释放
func (r *reservationRepository) LockUser(ctx context.Context, userID string) error {
	return txn.DB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error
}

func (r *reservationRepository) HasActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	var count int64
	err := txn.DB(ctx, r.db).Model(&model.Reservation{}).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, model.ReservationHeld, now).
		Count(&count).Error
	return count > 0, err
}

func (r *reservationRepository) SumActive(ctx context.Context, skuIDs []string, now time.Time) (map[string]int64, error) {
	var rows []struct {
		SKUID string `gorm:"column:sku_id"`
		Total int64
	}
	err := txn.DB(ctx, r.db).Model(&model.Reservation{}).
		Select("sku_id, COALESCE(SUM(quantity), 0) AS total").
		Where("sku_id IN ? AND status = ? AND expires_at > ?", skuIDs, model.ReservationHeld, now).
		Group("sku_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int64, len(rows))
	for _, row := range rows {
		sums[row.SKUID] = row.Total
	}
	return sums, nil
}

func (r *reservationRepository) CreateBatch(ctx context.Context, reservations []*model.Reservation) error {
	return txn.DB(ctx, r.db).Create(&reservations).Error
}

func (r *reservationRepository) LockCheckout(ctx context.Context, checkoutID string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := txn.DB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_id = ?", checkoutID).
		Order("sku_id").
		Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepository) TransitionActive(ctx context.Context, userID string, to model.ReservationStatus, now time.Time) (int64, error) {
	result := txn.DB(ctx, r.db).Model(&model.Reservation{}).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, model.ReservationHeld, now).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) ConfirmCheckout(ctx context.Context, checkoutID string) (int64, error) {
	result := txn.DB(ctx, r.db).Model(&model.Reservation{}).
		Where("checkout_id = ? AND status = ?", checkoutID, model.ReservationHeld).
		Update("status", model.ReservationConfirmed)
	return result.RowsAffected, result.Error
}

// ExpireHeld 分批回收过期预占，SKIP LOCKED 避免与正在下单的事务互相等待
func (r *reservationRepository) ExpireHeld(ctx context.Context, now time.Time, limit int) (int64, error) {
	db := txn.DB(ctx, r.db)
	sub := db.Session(&gorm.Session{NewDB: true}).Model(&model.Reservation{}).
		Select("id").
		Where("status = ? AND expires_at <= ?", model.ReservationHeld, now).
		Limit(limit).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	result := db.Model(&model.Reservation{}).
		Where("id IN (?)", sub).
		Update("status", model.ReservationExpired)
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := txn.DB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("held_at DESC, sku_id").
		Find(&reservations).Error
	return reservations, err
}
