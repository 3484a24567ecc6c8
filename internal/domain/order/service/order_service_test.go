package service

import (
	"context"
	"testing"
	"time"
	balanceService "order_core/internal/domain/balance/service"
	couponModel "order_core/internal/domain/coupon/model"
	couponService "order_core/internal/domain/coupon/service"
	inventoryModel "order_core/internal/domain/inventory/model"
	inventoryService "order_core/internal/domain/inventory/service"
	"order_core/internal/domain/order/model"
	userService "order_core/internal/domain/user/service"
	"order_core/internal/pkg/memstore"
	"order_core/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memstore.Store
	clock   *memstore.Clock
	ledger  inventoryService.Ledger
	coupons couponService.Allocator
	wallet  balanceService.BalanceService
	coord   Coordinator
}

func newFixture(t *testing.T, wrapWallet func(Wallet) Wallet) *fixture {
	t.Helper()
	clock := memstore.NewClock(t0)
	store := memstore.New().WithClock(clock.Now)
	users := userService.NewUserService(store.UserRepo())

	ledger := inventoryService.NewLedger(store.StockRepo(), store.ReservationRepo(), store, users, nil, inventoryService.Options{
		HoldWindow: 10 * time.Minute,
		MaxStock:   1000,
		Clock:      clock.Now,
	})
	coupons := couponService.NewAllocator(store.CouponRepo(), store, users, nil, nil, couponService.Options{
		MaxTickets:   100,
		ClaimBackoff: time.Millisecond,
		Clock:        clock.Now,
	})
	wallet := balanceService.NewBalanceService(store.AccountRepo(), store, nil, balanceService.Options{
		MinCredit:  1,
		MaxCredit:  1_000_000,
		MaxBalance: 10_000_000,
	})

	var w Wallet = wallet
	if wrapWallet != nil {
		w = wrapWallet(wallet)
	}
	coord := NewCoordinator(store.OrderRepo(), store, ledger, coupons, w, store.ProductRepo(), users, nil, Options{
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		Clock:        clock.Now,
	})

	store.AddUser("u1")
	store.AddUser("u2")
	store.PutProduct("sku-a", 1000, true)
	store.PutProduct("sku-b", 250, true)
	store.PutStock("sku-a", 10)
	store.PutStock("sku-b", 10)

	return &fixture{store: store, clock: clock, ledger: ledger, coupons: coupons, wallet: wallet, coord: coord}
}

func (f *fixture) reserve(t *testing.T, userID string, lines []inventoryModel.Line) string {
	t.Helper()
	rows, err := f.ledger.Reserve(context.Background(), userID, lines)
	require.NoError(t, err)
	return rows[0].CheckoutID
}

func (f *fixture) grant(t *testing.T, userID string, minOrder int64) string {
	t.Helper()
	ctx := context.Background()
	c, err := f.coupons.CreateCampaign(ctx, couponService.CreateCampaignInput{
		Name:           "welcome",
		TotalTickets:   5,
		DiscountType:   couponModel.DiscountFixed,
		DiscountValue:  500,
		MinOrderAmount: minOrder,
		ValidFrom:      t0.Add(-time.Hour),
		ValidUntil:     t0.Add(time.Hour),
	})
	require.NoError(t, err)
	g, err := f.coupons.Claim(ctx, c.ID, userID)
	require.NoError(t, err)
	return g.ID
}

// assertUntouched 失败的提交不应留下任何痕迹
func (f *fixture) assertUntouched(t *testing.T, balance int64) {
	t.Helper()
	assert.Equal(t, int64(10), f.store.StockOf("sku-a"))
	assert.Equal(t, int64(10), f.store.StockOf("sku-b"))
	assert.Equal(t, balance, f.store.BalanceOf("u1"))
	assert.Empty(t, f.store.AllOrders())
	for _, g := range f.store.AllGrants() {
		assert.Equal(t, couponModel.GrantGranted, g.Status)
	}
	for _, r := range f.store.AllReservations() {
		assert.Equal(t, inventoryModel.ReservationHeld, r.Status)
	}
}

var twoLines = []inventoryModel.Line{
	{SKUID: "sku-a", Quantity: 2},
	{SKUID: "sku-b", Quantity: 4},
}

func TestCoordinator_CommitOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("commits every stage without a coupon", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)

		order, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           twoLines,
			ShippingAddress: " 1 Main St ",
		})
		require.NoError(t, err)

		assert.Equal(t, model.OrderStatusPaid, order.Status)
		assert.Equal(t, int64(3000), order.TotalAmount)
		assert.Equal(t, int64(0), order.DiscountAmount)
		assert.Equal(t, int64(3000), order.PayAmount)
		assert.Equal(t, "1 Main St", order.ShippingAddress)
		assert.Nil(t, order.CouponGrantID)
		assert.Len(t, order.Lines, 2)
		assert.Len(t, order.OrderNo, 22)

		assert.Equal(t, int64(8), f.store.StockOf("sku-a"))
		assert.Equal(t, int64(6), f.store.StockOf("sku-b"))
		assert.Equal(t, int64(2000), f.store.BalanceOf("u1"))
		for _, r := range f.store.AllReservations() {
			assert.Equal(t, inventoryModel.ReservationConfirmed, r.Status)
		}
		entries := f.store.AllEntries()
		require.Len(t, entries, 1)
		assert.Equal(t, order.OrderNo, entries[0].Reference)

		avail, err := f.ledger.Available(ctx, "sku-a")
		require.NoError(t, err)
		assert.Equal(t, int64(8), avail, "confirmed holds must not be subtracted twice")
	})

	t.Run("applies the coupon and links it to the order", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		grantID := f.grant(t, "u1", 1000)
		checkout := f.reserve(t, "u1", twoLines)

		order, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           twoLines,
			CouponGrantID:   grantID,
			ShippingAddress: "1 Main St",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(500), order.DiscountAmount)
		assert.Equal(t, int64(2500), order.PayAmount)
		require.NotNil(t, order.CouponGrantID)
		assert.Equal(t, grantID, *order.CouponGrantID)
		assert.Equal(t, int64(2500), f.store.BalanceOf("u1"))

		g := f.store.AllGrants()[0]
		assert.Equal(t, couponModel.GrantConsumed, g.Status)
		require.NotNil(t, g.ConsumedByOrderID)
		assert.Equal(t, order.ID, *g.ConsumedByOrderID)

		stored, err := f.coord.GetOrder(ctx, "u1", order.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), stored.PayAmount)
	})

	t.Run("insufficient balance rolls back every stage", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 2000)
		grantID := f.grant(t, "u1", 0)
		checkout := f.reserve(t, "u1", twoLines)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           twoLines,
			CouponGrantID:   grantID,
			ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
		f.assertUntouched(t, 2000)
		assert.Empty(t, f.store.AllEntries())
	})

	t.Run("coupon rejection rolls back the deducted stock", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		grantID := f.grant(t, "u1", 10_000)
		checkout := f.reserve(t, "u1", twoLines)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           twoLines,
			CouponGrantID:   grantID,
			ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrCouponBelowMinimum)
		f.assertUntouched(t, 5000)
	})

	t.Run("another user's coupon is not usable", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		grantID := f.grant(t, "u2", 0)
		checkout := f.reserve(t, "u1", twoLines)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           twoLines,
			CouponGrantID:   grantID,
			ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrCouponNotUsable)
		f.assertUntouched(t, 5000)
	})

	t.Run("expired reservation is rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)
		f.clock.Advance(11 * time.Minute)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrReservationExpired)
		assert.Empty(t, f.store.AllOrders())
		assert.Equal(t, int64(10), f.store.StockOf("sku-a"))
	})

	t.Run("lines must match the reservation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID:          "u1",
			CheckoutID:      checkout,
			Lines:           []inventoryModel.Line{{SKUID: "sku-a", Quantity: 2}},
			ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrReservationMismatch)
		f.assertUntouched(t, 5000)
	})

	t.Run("inactive product cannot be ordered", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)
		f.store.PutProduct("sku-b", 250, false)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrProductInactive)
		f.assertUntouched(t, 5000)
	})

	t.Run("a checkout commits at most once", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.PutBalance("u1", 10_000)
		checkout := f.reserve(t, "u1", twoLines)
		in := CommitOrderInput{UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St"}

		_, err := f.coord.CommitOrder(ctx, in)
		require.NoError(t, err)
		_, err = f.coord.CommitOrder(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrReservationNotFound)

		assert.Len(t, f.store.AllOrders(), 1)
		assert.Equal(t, int64(7000), f.store.BalanceOf("u1"))
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{UserID: "u1", CheckoutID: "c", Lines: twoLines})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

		_, err = f.coord.CommitOrder(ctx, CommitOrderInput{UserID: "u1", Lines: twoLines, ShippingAddress: "x"})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

		_, err = f.coord.CommitOrder(ctx, CommitOrderInput{UserID: "ghost", CheckoutID: "c", Lines: twoLines, ShippingAddress: "x"})
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})
}

// flakyWallet 前 n 次扣款返回锁冲突
type flakyWallet struct {
	Wallet
	failures int
	calls    int
}

func (w *flakyWallet) Debit(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	w.calls++
	if w.calls <= w.failures {
		return 0, apperr.ErrBusy
	}
	return w.Wallet.Debit(ctx, userID, amount, reference)
}

func TestCoordinator_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("retried attempt commits once", func(t *testing.T) {
		var flaky *flakyWallet
		f := newFixture(t, func(w Wallet) Wallet {
			flaky = &flakyWallet{Wallet: w, failures: 2}
			return flaky
		})
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)

		order, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, flaky.calls)
		assert.Equal(t, int64(8), f.store.StockOf("sku-a"))
		assert.Equal(t, int64(2000), f.store.BalanceOf("u1"))
		assert.Len(t, f.store.AllOrders(), 1)
		assert.Equal(t, order.ID, f.store.AllOrders()[0].ID)
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		f := newFixture(t, func(w Wallet) Wallet {
			return &flakyWallet{Wallet: w, failures: 10}
		})
		f.store.PutBalance("u1", 5000)
		checkout := f.reserve(t, "u1", twoLines)

		_, err := f.coord.CommitOrder(ctx, CommitOrderInput{
			UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
		})
		assert.ErrorIs(t, err, apperr.ErrBusy)
		f.assertUntouched(t, 5000)
	})
}

// slowWallet 扣款前推进时钟，模拟提交途中等锁导致预占窗口到期
type slowWallet struct {
	Wallet
	clock *memstore.Clock
	delay time.Duration
}

func (w *slowWallet) Debit(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	w.clock.Advance(w.delay)
	return w.Wallet.Debit(ctx, userID, amount, reference)
}

func TestCoordinator_HoldExpiresMidCommit(t *testing.T) {
	ctx := context.Background()
	var slow *slowWallet
	f := newFixture(t, func(w Wallet) Wallet {
		slow = &slowWallet{Wallet: w, delay: 5 * time.Minute}
		return slow
	})
	slow.clock = f.clock
	f.store.PutBalance("u1", 5000)
	checkout := f.reserve(t, "u1", twoLines)

	// 校验时还剩 2 分钟，确认时已过期 3 分钟
	f.clock.Advance(8 * time.Minute)
	order, err := f.coord.CommitOrder(ctx, CommitOrderInput{
		UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, checkout, order.CheckoutID)

	reservations := f.store.AllReservations()
	require.Len(t, reservations, 2)
	for _, r := range reservations {
		assert.Equal(t, inventoryModel.ReservationConfirmed, r.Status)
	}

	n, err := f.ledger.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(8), f.store.StockOf("sku-a"))
	assert.Equal(t, int64(6), f.store.StockOf("sku-b"))
	avail, err := f.ledger.Available(ctx, "sku-a")
	require.NoError(t, err)
	assert.Equal(t, int64(8), avail)
}

func TestCoordinator_Queries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.store.PutBalance("u1", 5000)
	checkout := f.reserve(t, "u1", twoLines)
	order, err := f.coord.CommitOrder(ctx, CommitOrderInput{
		UserID: "u1", CheckoutID: checkout, Lines: twoLines, ShippingAddress: "1 Main St",
	})
	require.NoError(t, err)

	_, err = f.coord.GetOrder(ctx, "u2", order.ID)
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	_, err = f.coord.GetOrder(ctx, "u1", "missing")
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
	_, err = f.coord.GetOrder(ctx, "u1", "6f1c2a9e-0b7d-4c1e-9a3f-2d5e8b7c4a10")
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)

	list, err := f.coord.ListOrders(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.OrderNo, list[0].OrderNo)
}
