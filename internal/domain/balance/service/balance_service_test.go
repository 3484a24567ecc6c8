package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"order_core/internal/domain/balance/model"
	"order_core/internal/pkg/memstore"
	"order_core/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalance(t *testing.T) (BalanceService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := NewBalanceService(store.AccountRepo(), store, nil, Options{
		MinCredit:  1,
		MaxCredit:  1_000_000,
		MaxBalance: 5_000_000,
	})
	return svc, store
}

func TestBalanceService_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account on first credit", func(t *testing.T) {
		svc, store := newTestBalance(t)

		b, err := svc.Credit(ctx, "u1", 1500, "topup-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), b)

		b, err = svc.Credit(ctx, "u1", 500, "topup-2")
		require.NoError(t, err)
		assert.Equal(t, int64(2000), b)

		entries := store.AllEntries()
		require.Len(t, entries, 2)
		assert.Equal(t, model.EntryCredit, entries[1].Kind)
		assert.Equal(t, int64(2000), entries[1].BalanceAfter)
		assert.Equal(t, "topup-2", entries[1].Reference)
	})

	t.Run("rejects amounts outside the bounds", func(t *testing.T) {
		svc, store := newTestBalance(t)

		_, err := svc.Credit(ctx, "u1", 0, "x")
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
		_, err = svc.Credit(ctx, "u1", 1_000_001, "x")
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
		assert.Empty(t, store.AllEntries())
	})

	t.Run("rejects credits past the ceiling", func(t *testing.T) {
		svc, store := newTestBalance(t)
		store.PutBalance("u1", 4_500_000)

		_, err := svc.Credit(ctx, "u1", 600_000, "x")
		assert.ErrorIs(t, err, apperr.ErrBalanceCeilingExceeded)
		assert.Equal(t, int64(4_500_000), store.BalanceOf("u1"))
	})
}

func TestBalanceService_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("debits and records the entry", func(t *testing.T) {
		svc, store := newTestBalance(t)
		store.PutBalance("u1", 1000)

		b, err := svc.Debit(ctx, "u1", 400, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(600), b)

		entries, err := svc.Entries(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.EntryDebit, entries[0].Kind)
		assert.Equal(t, int64(400), entries[0].Amount)
	})

	t.Run("insufficient balance changes nothing", func(t *testing.T) {
		svc, store := newTestBalance(t)
		store.PutBalance("u1", 100)

		_, err := svc.Debit(ctx, "u1", 101, "order-1")
		assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
		assert.Equal(t, int64(100), store.BalanceOf("u1"))
		assert.Empty(t, store.AllEntries())

		_, err = svc.Debit(ctx, "nobody", 1, "order-2")
		assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	})

	t.Run("zero debit is a no-op and negative is invalid", func(t *testing.T) {
		svc, store := newTestBalance(t)
		store.PutBalance("u1", 100)

		b, err := svc.Debit(ctx, "u1", 0, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(100), b)
		assert.Empty(t, store.AllEntries())

		_, err = svc.Debit(ctx, "u1", -5, "order-1")
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		svc, store := newTestBalance(t)
		store.PutBalance("u1", 1000)

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := svc.Debit(ctx, "u1", 100, fmt.Sprintf("order-%d", i)); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 10, ok)
		assert.Equal(t, int64(0), store.BalanceOf("u1"))
	})
}

func TestBalanceService_Conservation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestBalance(t)

	credits := []int64{1000, 250, 4000}
	debits := []int64{300, 700, 5000, 1200}

	var want int64
	for _, c := range credits {
		_, err := svc.Credit(ctx, "u1", c, "topup")
		require.NoError(t, err)
		want += c
	}
	for _, d := range debits {
		if _, err := svc.Debit(ctx, "u1", d, "order"); err == nil {
			want -= d
		}
	}

	got, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.GreaterOrEqual(t, got, int64(0))

	none, err := svc.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, none)
}
