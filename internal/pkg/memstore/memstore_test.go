package memstore

import (
	"context"
	"errors"
	"testing"
	inventoryModel "order_core/internal/domain/inventory/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Transaction(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback restores snapshot", func(t *testing.T) {
		s := New()
		s.PutStock("sku-1", 10)

		err := s.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, s.StockRepo().UpdateQuantity(ctx, "sku-1", 3))
			return errors.New("boom")
		})
		assert.EqualError(t, err, "boom")
		assert.Equal(t, int64(10), s.StockOf("sku-1"))
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		s := New()
		s.PutStock("sku-1", 10)

		err := s.Transaction(ctx, func(ctx context.Context) error {
			if err := s.Transaction(ctx, func(ctx context.Context) error {
				return s.StockRepo().UpdateQuantity(ctx, "sku-1", 7)
			}); err != nil {
				return err
			}
			return errors.New("outer failed")
		})
		assert.Error(t, err)
		assert.Equal(t, int64(10), s.StockOf("sku-1"), "inner write must roll back with the outer one")
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		s := New()
		err := s.Transaction(ctx, func(ctx context.Context) error {
			return s.StockRepo().Create(ctx, &inventoryModel.Stock{SKUID: "sku-2", Quantity: 4})
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), s.StockOf("sku-2"))
	})
}
