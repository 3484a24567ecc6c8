package memstore

import (
	"context"
	"sort"
	"time"
	balanceModel "order_core/internal/domain/balance/model"
	balanceRepo "order_core/internal/domain/balance/repository"
	catalogModel "order_core/internal/domain/catalog/model"
	catalogRepo "order_core/internal/domain/catalog/repository"
	couponModel "order_core/internal/domain/coupon/model"
	couponRepo "order_core/internal/domain/coupon/repository"
	inventoryModel "order_core/internal/domain/inventory/model"
	inventoryRepo "order_core/internal/domain/inventory/repository"
	orderModel "order_core/internal/domain/order/model"
	orderRepo "order_core/internal/domain/order/repository"
	userRepo "order_core/internal/domain/user/repository"
	"order_core/pkg/apperr"

	"gorm.io/gorm"
)

var (
	_ inventoryRepo.StockRepository       = stockRepo{}
	_ inventoryRepo.ReservationRepository = reservationRepo{}
	_ couponRepo.CouponRepository         = couponStore{}
	_ balanceRepo.AccountRepository       = accountRepo{}
	_ orderRepo.OrderRepository           = orderStore{}
	_ catalogRepo.ProductReader           = productRepo{}
	_ userRepo.UserRepository             = userStore{}
)

func (s *Store) StockRepo() inventoryRepo.StockRepository             { return stockRepo{s} }
func (s *Store) ReservationRepo() inventoryRepo.ReservationRepository { return reservationRepo{s} }
func (s *Store) CouponRepo() couponRepo.CouponRepository              { return couponStore{s} }
func (s *Store) AccountRepo() balanceRepo.AccountRepository           { return accountRepo{s} }
func (s *Store) OrderRepo() orderRepo.OrderRepository                 { return orderStore{s} }
func (s *Store) ProductRepo() catalogRepo.ProductReader               { return productRepo{s} }
func (s *Store) UserRepo() userRepo.UserRepository                    { return userStore{s} }

// ---- inventory ----

type stockRepo struct{ s *Store }

func (r stockRepo) LockAndRead(ctx context.Context, skuIDs []string) ([]inventoryModel.Stock, error) {
	var out []inventoryModel.Stock
	err := r.s.with(ctx, func(d *state) error {
		for _, id := range skuIDs {
			if st, ok := d.stocks[id]; ok {
				out = append(out, st)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKUID < out[j].SKUID })
	return out, err
}

func (r stockRepo) Get(ctx context.Context, skuID string) (*inventoryModel.Stock, error) {
	var out *inventoryModel.Stock
	err := r.s.with(ctx, func(d *state) error {
		if st, ok := d.stocks[skuID]; ok {
			out = &st
		}
		return nil
	})
	return out, err
}

func (r stockRepo) Create(ctx context.Context, stock *inventoryModel.Stock) error {
	return r.s.with(ctx, func(d *state) error {
		if _, ok := d.stocks[stock.SKUID]; ok {
			return gorm.ErrDuplicatedKey
		}
		stock.CreatedAt = r.s.clock()
		stock.UpdatedAt = stock.CreatedAt
		d.stocks[stock.SKUID] = *stock
		return nil
	})
}

func (r stockRepo) UpdateQuantity(ctx context.Context, skuID string, quantity int64) error {
	return r.s.with(ctx, func(d *state) error {
		st := d.stocks[skuID]
		st.Quantity = quantity
		st.UpdatedAt = r.s.clock()
		d.stocks[skuID] = st
		return nil
	})
}

type reservationRepo struct{ s *Store }

// LockUser 事务本身已串行化
func (r reservationRepo) LockUser(context.Context, string) error { return nil }

func (r reservationRepo) HasActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	var found bool
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.reservations {
			if d.reservations[i].UserID == userID && d.reservations[i].ActiveAt(now) {
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r reservationRepo) SumActive(ctx context.Context, skuIDs []string, now time.Time) (map[string]int64, error) {
	wanted := make(map[string]bool, len(skuIDs))
	for _, id := range skuIDs {
		wanted[id] = true
	}
	sums := make(map[string]int64)
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.reservations {
			res := &d.reservations[i]
			if wanted[res.SKUID] && res.ActiveAt(now) {
				sums[res.SKUID] += res.Quantity
			}
		}
		return nil
	})
	return sums, err
}

func (r reservationRepo) CreateBatch(ctx context.Context, reservations []*inventoryModel.Reservation) error {
	return r.s.with(ctx, func(d *state) error {
		for _, res := range reservations {
			res.CreatedAt = r.s.clock()
			res.UpdatedAt = res.CreatedAt
			d.reservations = append(d.reservations, *res)
		}
		return nil
	})
}

func (r reservationRepo) LockCheckout(ctx context.Context, checkoutID string) ([]inventoryModel.Reservation, error) {
	var out []inventoryModel.Reservation
	err := r.s.with(ctx, func(d *state) error {
		for _, res := range d.reservations {
			if res.CheckoutID == checkoutID {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKUID < out[j].SKUID })
	return out, err
}

func (r reservationRepo) TransitionActive(ctx context.Context, userID string, to inventoryModel.ReservationStatus, now time.Time) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.reservations {
			if d.reservations[i].UserID == userID && d.reservations[i].ActiveAt(now) {
				d.reservations[i].Status = to
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r reservationRepo) ConfirmCheckout(ctx context.Context, checkoutID string) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.reservations {
			res := &d.reservations[i]
			if res.CheckoutID == checkoutID && res.Status == inventoryModel.ReservationHeld {
				res.Status = inventoryModel.ReservationConfirmed
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r reservationRepo) ExpireHeld(ctx context.Context, now time.Time, limit int) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.reservations {
			if n >= int64(limit) {
				break
			}
			res := &d.reservations[i]
			if res.Status == inventoryModel.ReservationHeld && !now.Before(res.ExpiresAt) {
				res.Status = inventoryModel.ReservationExpired
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r reservationRepo) ListByUser(ctx context.Context, userID string) ([]inventoryModel.Reservation, error) {
	var out []inventoryModel.Reservation
	err := r.s.with(ctx, func(d *state) error {
		for _, res := range d.reservations {
			if res.UserID == userID {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].HeldAt.After(out[j].HeldAt) })
	return out, err
}

// ---- coupon ----

type couponStore struct{ s *Store }

func (r couponStore) CreateCampaign(ctx context.Context, campaign *couponModel.Campaign) error {
	return r.s.with(ctx, func(d *state) error {
		campaign.CreatedAt = r.s.clock()
		d.campaigns[campaign.ID] = *campaign
		return nil
	})
}

func (r couponStore) GetCampaign(ctx context.Context, id string) (*couponModel.Campaign, error) {
	var out *couponModel.Campaign
	err := r.s.with(ctx, func(d *state) error {
		if c, ok := d.campaigns[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r couponStore) UpdateValidity(ctx context.Context, id string, from, until time.Time) error {
	return r.s.with(ctx, func(d *state) error {
		c, ok := d.campaigns[id]
		if !ok {
			return nil
		}
		c.ValidFrom, c.ValidUntil = from, until
		d.campaigns[id] = c
		return nil
	})
}

func (r couponStore) SeedTickets(ctx context.Context, tickets []*couponModel.Ticket, _ int) error {
	return r.s.with(ctx, func(d *state) error {
		for _, t := range tickets {
			d.tickets = append(d.tickets, *t)
		}
		return nil
	})
}

func (r couponStore) ClaimOneSkippingLocked(ctx context.Context, campaignID string) (*couponModel.Ticket, error) {
	var out *couponModel.Ticket
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.tickets {
			t := d.tickets[i]
			if t.CampaignID == campaignID && t.Status == couponModel.TicketAvailable {
				out = &t
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r couponStore) MarkTicketClaimed(ctx context.Context, ticketID, userID string, at time.Time) error {
	return r.s.with(ctx, func(d *state) error {
		for i := range d.tickets {
			t := &d.tickets[i]
			if t.ID == ticketID && t.Status == couponModel.TicketAvailable {
				uid, ts := userID, at
				t.Status = couponModel.TicketClaimed
				t.ClaimedByUserID = &uid
				t.ClaimedAt = &ts
			}
		}
		return nil
	})
}

func (r couponStore) CountAvailable(ctx context.Context, campaignID string) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(d *state) error {
		for _, t := range d.tickets {
			if t.CampaignID == campaignID && t.Status == couponModel.TicketAvailable {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r couponStore) HasGrant(ctx context.Context, campaignID, userID string) (bool, error) {
	var found bool
	err := r.s.with(ctx, func(d *state) error {
		for _, g := range d.grants {
			if g.CampaignID == campaignID && g.UserID == userID {
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r couponStore) CreateGrant(ctx context.Context, grant *couponModel.Grant) error {
	return r.s.with(ctx, func(d *state) error {
		for _, g := range d.grants {
			if g.CampaignID == grant.CampaignID && g.UserID == grant.UserID {
				return apperr.ErrDuplicateClaim.WithDetail("campaign %s, user %s", grant.CampaignID, grant.UserID)
			}
		}
		grant.CreatedAt = r.s.clock()
		d.grants = append(d.grants, *grant)
		return nil
	})
}

func (r couponStore) LockGrant(ctx context.Context, grantID string) (*couponModel.Grant, error) {
	var out *couponModel.Grant
	err := r.s.with(ctx, func(d *state) error {
		for _, g := range d.grants {
			if g.ID == grantID {
				g := g
				out = &g
			}
		}
		return nil
	})
	return out, err
}

func (r couponStore) ConsumeGrant(ctx context.Context, grantID, orderID string, at time.Time) error {
	return r.s.with(ctx, func(d *state) error {
		for i := range d.grants {
			g := &d.grants[i]
			if g.ID == grantID && g.Status == couponModel.GrantGranted {
				oid, ts := orderID, at
				g.Status = couponModel.GrantConsumed
				g.ConsumedByOrderID = &oid
				g.ConsumedAt = &ts
			}
		}
		return nil
	})
}

func (r couponStore) ExpireGrants(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(d *state) error {
		for i := range d.grants {
			g := &d.grants[i]
			c, ok := d.campaigns[g.CampaignID]
			if ok && g.Status == couponModel.GrantGranted && !now.Before(c.ValidUntil) {
				g.Status = couponModel.GrantExpired
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r couponStore) ListGrants(ctx context.Context, userID string) ([]couponModel.Grant, error) {
	var out []couponModel.Grant
	err := r.s.with(ctx, func(d *state) error {
		for _, g := range d.grants {
			if g.UserID == userID {
				out = append(out, g)
			}
		}
		return nil
	})
	return out, err
}

// ---- balance ----

type accountRepo struct{ s *Store }

func (r accountRepo) LockAndRead(ctx context.Context, userID string) (*balanceModel.Account, error) {
	return r.Get(ctx, userID)
}

func (r accountRepo) EnsureAccount(ctx context.Context, userID string) error {
	return r.s.with(ctx, func(d *state) error {
		if _, ok := d.accounts[userID]; !ok {
			d.accounts[userID] = balanceModel.Account{UserID: userID, CreatedAt: r.s.clock()}
		}
		return nil
	})
}

func (r accountRepo) UpdateBalance(ctx context.Context, userID string, balance int64) error {
	return r.s.with(ctx, func(d *state) error {
		a := d.accounts[userID]
		a.UserID = userID
		a.Balance = balance
		a.UpdatedAt = r.s.clock()
		d.accounts[userID] = a
		return nil
	})
}

func (r accountRepo) AppendEntry(ctx context.Context, entry *balanceModel.Entry) error {
	return r.s.with(ctx, func(d *state) error {
		entry.CreatedAt = r.s.clock()
		d.entries = append(d.entries, *entry)
		return nil
	})
}

func (r accountRepo) Get(ctx context.Context, userID string) (*balanceModel.Account, error) {
	var out *balanceModel.Account
	err := r.s.with(ctx, func(d *state) error {
		if a, ok := d.accounts[userID]; ok {
			out = &a
		}
		return nil
	})
	return out, err
}

func (r accountRepo) ListEntries(ctx context.Context, userID string, limit int) ([]balanceModel.Entry, error) {
	var out []balanceModel.Entry
	err := r.s.with(ctx, func(d *state) error {
		for i := len(d.entries) - 1; i >= 0 && len(out) < limit; i-- {
			if d.entries[i].UserID == userID {
				out = append(out, d.entries[i])
			}
		}
		return nil
	})
	return out, err
}

// ---- order ----

type orderStore struct{ s *Store }

func (r orderStore) CreateOrder(ctx context.Context, order *orderModel.Order) error {
	return r.s.with(ctx, func(d *state) error {
		for _, o := range d.orders {
			if o.CheckoutID == order.CheckoutID || o.OrderNo == order.OrderNo {
				return gorm.ErrDuplicatedKey
			}
		}
		order.CreatedAt = r.s.clock()
		o := *order
		o.Lines = append([]orderModel.OrderLine(nil), order.Lines...)
		d.orders = append(d.orders, o)
		return nil
	})
}

func (r orderStore) UpdateAmounts(ctx context.Context, orderID string, discount, pay int64, grantID *string) error {
	return r.s.with(ctx, func(d *state) error {
		for i := range d.orders {
			if d.orders[i].ID == orderID {
				d.orders[i].DiscountAmount = discount
				d.orders[i].PayAmount = pay
				d.orders[i].CouponGrantID = grantID
			}
		}
		return nil
	})
}

func (r orderStore) GetOrder(ctx context.Context, orderID string) (*orderModel.Order, error) {
	var out *orderModel.Order
	err := r.s.with(ctx, func(d *state) error {
		for _, o := range d.orders {
			if o.ID == orderID {
				o.Lines = append([]orderModel.OrderLine(nil), o.Lines...)
				out = &o
			}
		}
		return nil
	})
	return out, err
}

func (r orderStore) ListByUser(ctx context.Context, userID string, limit int) ([]orderModel.Order, error) {
	var out []orderModel.Order
	err := r.s.with(ctx, func(d *state) error {
		for i := len(d.orders) - 1; i >= 0 && len(out) < limit; i-- {
			if d.orders[i].UserID == userID {
				out = append(out, d.orders[i])
			}
		}
		return nil
	})
	return out, err
}

// ---- 协作方 ----

type productRepo struct{ s *Store }

func (r productRepo) GetMany(ctx context.Context, skuIDs []string) (map[string]catalogModel.Product, error) {
	out := make(map[string]catalogModel.Product, len(skuIDs))
	err := r.s.with(ctx, func(d *state) error {
		for _, id := range skuIDs {
			if p, ok := d.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

type userStore struct{ s *Store }

func (r userStore) GetStatus(ctx context.Context, id string) (int, bool, error) {
	var (
		status int
		found  bool
	)
	err := r.s.with(ctx, func(d *state) error {
		status, found = d.users[id]
		return nil
	})
	return status, found, err
}
