// Package memstore 内存版仓储，供服务层测试使用。
// 事务持有全局互斥锁，等价于串行化隔离；失败时整体恢复快照。
package memstore

import (
	"context"
	"sync"
	"time"
	balanceModel "order_core/internal/domain/balance/model"
	catalogModel "order_core/internal/domain/catalog/model"
	couponModel "order_core/internal/domain/coupon/model"
	inventoryModel "order_core/internal/domain/inventory/model"
	orderModel "order_core/internal/domain/order/model"
	userModel "order_core/internal/domain/user/model"
)

type txKey struct{}

type state struct {
	users        map[string]int
	products     map[string]catalogModel.Product
	stocks       map[string]inventoryModel.Stock
	reservations []inventoryModel.Reservation
	campaigns    map[string]couponModel.Campaign
	tickets      []couponModel.Ticket
	grants       []couponModel.Grant
	accounts     map[string]balanceModel.Account
	entries      []balanceModel.Entry
	orders       []orderModel.Order
}

func newState() *state {
	return &state{
		users:     make(map[string]int),
		products:  make(map[string]catalogModel.Product),
		stocks:    make(map[string]inventoryModel.Stock),
		campaigns: make(map[string]couponModel.Campaign),
		accounts:  make(map[string]balanceModel.Account),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.reservations = append(c.reservations, s.reservations...)
	c.tickets = append(c.tickets, s.tickets...)
	c.grants = append(c.grants, s.grants...)
	c.entries = append(c.entries, s.entries...)
	for _, o := range s.orders {
		o.Lines = append([]orderModel.OrderLine(nil), o.Lines...)
		c.orders = append(c.orders, o)
	}
	return c
}

// Store 实现 txn.Manager，并通过各 Xxx() 方法提供仓储接口
type Store struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time
}

func New() *Store {
	return &Store{data: newState(), clock: time.Now}
}

// WithClock 设置写入 CreatedAt 等字段使用的时钟
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// with 事务内直接访问，事务外自行加锁
func (s *Store) with(ctx context.Context, fn func(d *state) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read(fn func(d *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// ---- 测试数据准备 ----

func (s *Store) AddUser(id string) {
	s.SetUserStatus(id, userModel.StatusNormal)
}

func (s *Store) SetUserStatus(id string, status int) {
	s.read(func(d *state) { d.users[id] = status })
}

func (s *Store) PutProduct(skuID string, price int64, active bool) {
	s.read(func(d *state) {
		d.products[skuID] = catalogModel.Product{SKUID: skuID, Name: skuID, Price: price, Active: active}
	})
}

func (s *Store) PutStock(skuID string, qty int64) {
	s.read(func(d *state) {
		d.stocks[skuID] = inventoryModel.Stock{SKUID: skuID, Quantity: qty}
	})
}

func (s *Store) PutBalance(userID string, balance int64) {
	s.read(func(d *state) {
		d.accounts[userID] = balanceModel.Account{UserID: userID, Balance: balance}
	})
}

// ---- 断言用快照 ----

func (s *Store) StockOf(skuID string) int64 {
	var q int64
	s.read(func(d *state) { q = d.stocks[skuID].Quantity })
	return q
}

func (s *Store) BalanceOf(userID string) int64 {
	var b int64
	s.read(func(d *state) { b = d.accounts[userID].Balance })
	return b
}

func (s *Store) AllOrders() []orderModel.Order {
	var out []orderModel.Order
	s.read(func(d *state) { out = d.clone().orders })
	return out
}

func (s *Store) AllTickets() []couponModel.Ticket {
	var out []couponModel.Ticket
	s.read(func(d *state) { out = append(out, d.tickets...) })
	return out
}

func (s *Store) AllGrants() []couponModel.Grant {
	var out []couponModel.Grant
	s.read(func(d *state) { out = append(out, d.grants...) })
	return out
}

func (s *Store) AllReservations() []inventoryModel.Reservation {
	var out []inventoryModel.Reservation
	s.read(func(d *state) { out = append(out, d.reservations...) })
	return out
}

func (s *Store) AllEntries() []balanceModel.Entry {
	var out []balanceModel.Entry
	s.read(func(d *state) { out = append(out, d.entries...) })
	return out
}

// Clock 可手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
