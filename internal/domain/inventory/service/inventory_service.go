package service

import (
	"context"
	"time"
	"order_core/internal/domain/inventory/model"
	"order_core/internal/domain/inventory/repository"
	"order_core/internal/pkg/txn"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"
	"order_core/pkg/metrics"
	baseModel "order_core/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger 库存能力：预占、确认、取消、扣减、补货
type Ledger interface {
	Reserve(ctx context.Context, userID string, lines []model.Line) ([]model.Reservation, error)
	Confirm(ctx context.Context, userID string) error
	Cancel(ctx context.Context, userID string) (int64, error)
	Reservations(ctx context.Context, userID string) ([]model.Reservation, error)
	Available(ctx context.Context, skuID string) (int64, error)
	// ValidateCheckout 锁定并校验下单引用的预占，仅供订单协调器在事务内调用
	ValidateCheckout(ctx context.Context, userID, checkoutID string, lines []model.Line) ([]model.Reservation, error)
	// ConfirmCheckout 在同一事务内确认 ValidateCheckout 返回的预占，want 为校验通过的行数
	ConfirmCheckout(ctx context.Context, checkoutID string, want int) error
	SweepExpired(ctx context.Context) (int64, error)

	Deduct(ctx context.Context, skuID string, qty int64) error
	DeductBatch(ctx context.Context, lines []model.Line) error
	Add(ctx context.Context, skuID string, qty int64) (int64, error)
	CreateStock(ctx context.Context, skuID string, qty int64) error
}

// UserChecker 用户身份协作方
type UserChecker interface {
	EnsureActive(ctx context.Context, userID string) error
}

// Options 外部配置，保留时长不在代码里写死
type Options struct {
	HoldWindow time.Duration
	MaxStock   int64
	SweepBatch int
	Clock      func() time.Time
}

type ledger struct {
	stocks       repository.StockRepository
	reservations repository.ReservationRepository
	tx           txn.Manager
	users        UserChecker
	metrics      *metrics.MetricsCollector
	opts         Options
}

func NewLedger(
	stocks repository.StockRepository,
	reservations repository.ReservationRepository,
	tx txn.Manager,
	users UserChecker,
	collector *metrics.MetricsCollector,
	opts Options,
) Ledger {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 500
	}
	return &ledger{
		stocks:       stocks,
		reservations: reservations,
		tx:           tx,
		users:        users,
		metrics:      collector,
		opts:         opts,
	}
}

// Reserve 创建预占
// 1. 同一用户串行化，已有活跃预占直接拒绝
// 2. 按 sku_id 升序锁定库存行
// 3. available = quantity - 活跃预占之和，任一行不足即整体失败
func (s *ledger) Reserve(ctx context.Context, userID string, lines []model.Line) ([]model.Reservation, error) {
	merged, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}
	if err := s.users.EnsureActive(ctx, userID); err != nil {
		return nil, err
	}

	var created []model.Reservation
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		now := s.opts.Clock()

		if err := s.reservations.LockUser(ctx, userID); err != nil {
			return err
		}
		active, err := s.reservations.HasActive(ctx, userID, now)
		if err != nil {
			return err
		}
		if active {
			return apperr.ErrDuplicateReservation.WithDetail("user %s", userID)
		}

		skuIDs := skuIDsOf(merged)
		stocks, err := s.stocks.LockAndRead(ctx, skuIDs)
		if err != nil {
			return err
		}
		byID := indexStocks(stocks)

		held, err := s.reservations.SumActive(ctx, skuIDs, now)
		if err != nil {
			return err
		}

		for _, line := range merged {
			stock, ok := byID[line.SKUID]
			if !ok {
				return apperr.ErrSKUNotFound.WithDetail("sku %s", line.SKUID)
			}
			available := stock.Quantity - held[line.SKUID]
			if line.Quantity > available {
				return apperr.ErrStockUnavailable.WithDetail("sku %s: requested %d, available %d",
					line.SKUID, line.Quantity, available)
			}
		}

		checkoutID := uuid.New().String()
		rows := make([]*model.Reservation, 0, len(merged))
		for _, line := range merged {
			r := &model.Reservation{
				CheckoutID: checkoutID,
				SKUID:      line.SKUID,
				UserID:     userID,
				Quantity:   line.Quantity,
				Status:     model.ReservationHeld,
				HeldAt:     now,
				ExpiresAt:  now.Add(s.opts.HoldWindow),
			}
			r.EnsureID()
			rows = append(rows, r)
		}
		if err := s.reservations.CreateBatch(ctx, rows); err != nil {
			return err
		}

		created = created[:0]
		for _, r := range rows {
			created = append(created, *r)
		}
		return nil
	})

	s.metrics.RecordReservation(err)
	if err != nil {
		logger.Log.Info("reserve rejected",
			zap.String("user_id", userID),
			zap.Int("lines", len(merged)),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("reservation held",
		zap.String("user_id", userID),
		zap.String("checkout_id", created[0].CheckoutID),
		zap.Time("expires_at", created[0].ExpiresAt),
	)
	return created, nil
}

// Confirm 没有活跃预占时是 no-op
func (s *ledger) Confirm(ctx context.Context, userID string) error {
	_, err := s.reservations.TransitionActive(ctx, userID, model.ReservationConfirmed, s.opts.Clock())
	return err
}

func (s *ledger) Cancel(ctx context.Context, userID string) (int64, error) {
	n, err := s.reservations.TransitionActive(ctx, userID, model.ReservationCancelled, s.opts.Clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Log.Info("reservation cancelled", zap.String("user_id", userID), zap.Int64("rows", n))
	}
	return n, nil
}

// Reservations 读取时惰性判定过期：HELD 但已超时的记录按 EXPIRED 返回
func (s *ledger) Reservations(ctx context.Context, userID string) ([]model.Reservation, error) {
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Clock()
	for i := range list {
		if list[i].Status == model.ReservationHeld && !now.Before(list[i].ExpiresAt) {
			list[i].Status = model.ReservationExpired
		}
	}
	return list, nil
}

func (s *ledger) Available(ctx context.Context, skuID string) (int64, error) {
	stock, err := s.stocks.Get(ctx, skuID)
	if err != nil {
		return 0, err
	}
	if stock == nil {
		return 0, apperr.ErrSKUNotFound.WithDetail("sku %s", skuID)
	}
	held, err := s.reservations.SumActive(ctx, []string{skuID}, s.opts.Clock())
	if err != nil {
		return 0, err
	}
	return stock.Quantity - held[skuID], nil
}

func (s *ledger) ValidateCheckout(ctx context.Context, userID, checkoutID string, lines []model.Line) ([]model.Reservation, error) {
	merged, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}

	if !baseModel.ValidID(checkoutID) {
		return nil, apperr.ErrReservationNotFound.WithDetail("checkout %s", checkoutID)
	}
	rows, err := s.reservations.LockCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ErrReservationNotFound.WithDetail("checkout %s", checkoutID)
	}

	now := s.opts.Clock()
	held := make(map[string]int64, len(rows))
	for _, r := range rows {
		if r.UserID != userID {
			return nil, apperr.ErrReservationNotFound.WithDetail("checkout %s", checkoutID)
		}
		switch {
		case r.Status == model.ReservationExpired,
			r.Status == model.ReservationHeld && !now.Before(r.ExpiresAt):
			return nil, apperr.ErrReservationExpired.WithDetail("checkout %s expired at %s",
				checkoutID, r.ExpiresAt.Format(time.RFC3339))
		case r.Status != model.ReservationHeld:
			return nil, apperr.ErrReservationNotFound.WithDetail("checkout %s is %s", checkoutID, r.Status)
		}
		held[r.SKUID] += r.Quantity
	}

	if len(held) != len(merged) {
		return nil, apperr.ErrReservationMismatch.WithDetail("checkout %s holds %d skus, order has %d",
			checkoutID, len(held), len(merged))
	}
	for _, line := range merged {
		if held[line.SKUID] != line.Quantity {
			return nil, apperr.ErrReservationMismatch.WithDetail("sku %s: held %d, ordered %d",
				line.SKUID, held[line.SKUID], line.Quantity)
		}
	}
	return rows, nil
}

// ConfirmCheckout 行已被 ValidateCheckout 锁住，校验之后才到期的预占也必须随订单确认，
// 否则订单提交了而预占仍是 HELD，随后被回收为 EXPIRED
func (s *ledger) ConfirmCheckout(ctx context.Context, checkoutID string, want int) error {
	n, err := s.reservations.ConfirmCheckout(ctx, checkoutID)
	if err != nil {
		return err
	}
	if n != int64(want) {
		return apperr.ErrReservationMismatch.WithDetail("checkout %s: confirmed %d of %d rows", checkoutID, n, want)
	}
	return nil
}

// SweepExpired 回收过期预占，只改状态不动库存：过期行不再计入活跃和
func (s *ledger) SweepExpired(ctx context.Context) (int64, error) {
	var total int64
	for {
		n, err := s.reservations.ExpireHeld(ctx, s.opts.Clock(), s.opts.SweepBatch)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(s.opts.SweepBatch) {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	s.metrics.RecordSwept("reservation", total)
	if total > 0 {
		logger.Log.Info("expired reservations reclaimed", zap.Int64("rows", total))
	}
	return total, nil
}
