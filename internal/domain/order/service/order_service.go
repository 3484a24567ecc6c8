package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	catalogModel "order_core/internal/domain/catalog/model"
	couponService "order_core/internal/domain/coupon/service"
	inventoryModel "order_core/internal/domain/inventory/model"
	"order_core/internal/domain/order/model"
	"order_core/internal/domain/order/repository"
	"order_core/internal/pkg/txn"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"
	"order_core/pkg/metrics"
	baseModel "order_core/pkg/model"
	"order_core/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage 单次提交的状态机，失败时只用于日志和指标，不落库
type Stage string

const (
	StageInitiated            Stage = "INITIATED"
	StageReservationValidated Stage = "RESERVATION_VALIDATED"
	StageStockDeducted        Stage = "STOCK_DEDUCTED"
	StageOrderPersisted       Stage = "ORDER_PERSISTED"
	StageCouponConsumed       Stage = "COUPON_CONSUMED"
	StageBalanceDebited       Stage = "BALANCE_DEBITED"
	StageCommitted            Stage = "COMMITTED"
)

// Coordinator 订单提交能力
type Coordinator interface {
	CommitOrder(ctx context.Context, input CommitOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]model.Order, error)
}

// 以下为协调器依赖的各组件能力

type Inventory interface {
	ValidateCheckout(ctx context.Context, userID, checkoutID string, lines []inventoryModel.Line) ([]inventoryModel.Reservation, error)
	DeductBatch(ctx context.Context, lines []inventoryModel.Line) error
	ConfirmCheckout(ctx context.Context, checkoutID string, want int) error
}

type Coupons interface {
	Redeem(ctx context.Context, input couponService.RedeemInput) (int64, error)
}

type Wallet interface {
	Debit(ctx context.Context, userID string, amount int64, reference string) (int64, error)
}

type Catalog interface {
	GetMany(ctx context.Context, skuIDs []string) (map[string]catalogModel.Product, error)
}

type UserChecker interface {
	EnsureActive(ctx context.Context, userID string) error
}

type CommitOrderInput struct {
	UserID          string
	CheckoutID      string
	Lines           []inventoryModel.Line
	CouponGrantID   string
	ShippingAddress string
}

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        func() time.Time
}

type coordinator struct {
	repo      repository.OrderRepository
	tx        txn.Manager
	inventory Inventory
	coupons   Coupons
	wallet    Wallet
	catalog   Catalog
	users     UserChecker
	metrics   *metrics.MetricsCollector
	opts      Options
}

func NewCoordinator(
	repo repository.OrderRepository,
	tx txn.Manager,
	inventory Inventory,
	coupons Coupons,
	wallet Wallet,
	catalog Catalog,
	users UserChecker,
	collector *metrics.MetricsCollector,
	opts Options,
) Coordinator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &coordinator{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
		coupons:   coupons,
		wallet:    wallet,
		catalog:   catalog,
		users:     users,
		metrics:   collector,
		opts:      opts,
	}
}

// CommitOrder 校验预占 → 扣库存 → 落订单 → 核销优惠券 → 扣余额 → 确认预占，
// 全部在同一事务内完成，任一步失败整体回滚。仅锁冲突类错误会整体重试。
func (s *coordinator) CommitOrder(ctx context.Context, input CommitOrderInput) (*model.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.users.EnsureActive(ctx, input.UserID); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		order *model.Order
		stage Stage
	)
	err := txn.Retry(ctx, s.opts.MaxAttempts, s.opts.RetryBackoff, func() error {
		var err error
		order, stage, err = s.attempt(ctx, input)
		if apperr.IsRetryable(err) {
			logger.Log.Warn("order commit busy, retrying",
				zap.String("checkout_id", input.CheckoutID),
				zap.String("stage", string(stage)),
			)
		}
		return err
	})
	s.metrics.RecordOrderCommit(string(stage), err, time.Since(start))

	if err != nil {
		logger.Log.Info("order commit aborted",
			zap.String("user_id", input.UserID),
			zap.String("checkout_id", input.CheckoutID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("order committed",
		zap.String("order_no", order.OrderNo),
		zap.String("user_id", order.UserID),
		zap.Int64("pay_amount", order.PayAmount),
		zap.Duration("cost", time.Since(start)),
	)
	return order, nil
}

func (s *coordinator) attempt(ctx context.Context, input CommitOrderInput) (*model.Order, Stage, error) {
	stage := StageInitiated
	var order *model.Order

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		reservations, err := s.inventory.ValidateCheckout(ctx, input.UserID, input.CheckoutID, input.Lines)
		if err != nil {
			return err
		}
		stage = StageReservationValidated

		lines := make([]inventoryModel.Line, 0, len(reservations))
		for _, r := range reservations {
			lines = append(lines, inventoryModel.Line{SKUID: r.SKUID, Quantity: r.Quantity})
		}
		orderLines, total, err := s.price(ctx, lines)
		if err != nil {
			return err
		}

		if err := s.inventory.DeductBatch(ctx, lines); err != nil {
			return err
		}
		stage = StageStockDeducted

		now := s.opts.Clock()
		o := &model.Order{
			OrderNo:         newOrderNo(now),
			UserID:          input.UserID,
			CheckoutID:      input.CheckoutID,
			Status:          model.OrderStatusPaid,
			TotalAmount:     total,
			PayAmount:       total,
			ShippingAddress: strings.TrimSpace(input.ShippingAddress),
			PaidAt:          &now,
		}
		o.EnsureID()
		for i := range orderLines {
			orderLines[i].OrderID = o.ID
		}
		o.Lines = orderLines
		if err := s.repo.CreateOrder(ctx, o); err != nil {
			return err
		}
		stage = StageOrderPersisted

		if input.CouponGrantID != "" {
			discount, err := s.coupons.Redeem(ctx, couponService.RedeemInput{
				GrantID:     input.CouponGrantID,
				UserID:      input.UserID,
				OrderID:     o.ID,
				OrderAmount: total,
			})
			if err != nil {
				return err
			}
			grantID := input.CouponGrantID
			o.DiscountAmount = discount
			o.PayAmount = total - discount
			o.CouponGrantID = &grantID
			if err := s.repo.UpdateAmounts(ctx, o.ID, o.DiscountAmount, o.PayAmount, o.CouponGrantID); err != nil {
				return err
			}
		}
		stage = StageCouponConsumed

		if _, err := s.wallet.Debit(ctx, input.UserID, o.PayAmount, o.OrderNo); err != nil {
			return err
		}
		stage = StageBalanceDebited

		if err := s.inventory.ConfirmCheckout(ctx, input.CheckoutID, len(reservations)); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, stage, err
	}
	return order, StageCommitted, nil
}

// price 读取目录单价，下架或不存在的 SKU 不允许下单
func (s *coordinator) price(ctx context.Context, lines []inventoryModel.Line) ([]model.OrderLine, int64, error) {
	skuIDs := make([]string, len(lines))
	for i, l := range lines {
		skuIDs[i] = l.SKUID
	}
	products, err := s.catalog.GetMany(ctx, skuIDs)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	result := make([]model.OrderLine, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.SKUID]
		if !ok {
			return nil, 0, apperr.ErrSKUNotFound.WithDetail("sku %s", l.SKUID)
		}
		if !p.Active {
			return nil, 0, apperr.ErrProductInactive.WithDetail("sku %s", l.SKUID)
		}
		line := model.OrderLine{
			SKUID:      l.SKUID,
			Quantity:   l.Quantity,
			UnitPrice:  p.Price,
			LineAmount: p.Price * l.Quantity,
		}
		line.EnsureID()
		result = append(result, line)
		total += line.LineAmount
	}
	return result, total, nil
}

func (s *coordinator) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if !baseModel.ValidID(orderID) {
		return nil, apperr.ErrOrderNotFound.WithDetail("order %s", orderID)
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, apperr.ErrOrderNotFound.WithDetail("order %s", orderID)
	}
	return order, nil
}

func (s *coordinator) ListOrders(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	page := utils.Pagination{Limit: limit}
	limit = page.GetLimit()
	return s.repo.ListByUser(ctx, userID, limit)
}

func validateInput(input CommitOrderInput) error {
	if input.UserID == "" {
		return apperr.ErrUserNotFound
	}
	if input.CheckoutID == "" {
		return apperr.ErrInvalidArgument.WithDetail("checkoutId is required")
	}
	if len(input.Lines) == 0 {
		return apperr.ErrInvalidArgument.WithDetail("at least one line is required")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return apperr.ErrInvalidArgument.WithDetail("shippingAddress is required")
	}
	return nil
}

// newOrderNo 时间前缀 + 随机后缀
func newOrderNo(now time.Time) string {
	return fmt.Sprintf("%s%s", now.Format("20060102150405"), uuid.New().String()[:8])
}
