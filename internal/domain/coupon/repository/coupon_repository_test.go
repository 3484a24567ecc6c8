package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	"order_core/internal/domain/coupon/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestCouponRepository_ClaimOneSkippingLocked(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the lowest unlocked ticket", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCouponRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "coupon_tickets" WHERE \(campaign_id = \$1 AND status = \$2\).* ORDER BY seq LIMIT .*FOR UPDATE SKIP LOCKED`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "campaign_id", "seq", "status"}).
				AddRow("t1", "c1", 1, "AVAILABLE"))

		ticket, err := repo.ClaimOneSkippingLocked(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, ticket)
		assert.Equal(t, "t1", ticket.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil when every ticket is taken or locked", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCouponRepository(db)

		mock.ExpectQuery(`FROM "coupon_tickets" .*FOR UPDATE SKIP LOCKED`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		ticket, err := repo.ClaimOneSkippingLocked(ctx, "c1")
		require.NoError(t, err)
		assert.Nil(t, ticket)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCouponRepository_Grants(t *testing.T) {
	ctx := context.Background()

	t.Run("LockGrant uses FOR UPDATE", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCouponRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "user_coupon_grants" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "campaign_id", "status"}).
				AddRow("g1", "u1", "c1", "GRANTED"))

		g, err := repo.LockGrant(ctx, "g1")
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Equal(t, model.GrantGranted, g.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ConsumeGrant only moves granted rows", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCouponRepository(db)
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectExec(`UPDATE "user_coupon_grants" SET .*WHERE \(id = \$\d+ AND status = \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.ConsumeGrant(ctx, "g1", "o1", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExpireGrants targets ended campaigns", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCouponRepository(db)

		mock.ExpectExec(`UPDATE "user_coupon_grants" SET .*campaign_id IN \(SELECT .* FROM "coupon_campaigns" WHERE valid_until <= \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 4))

		n, err := repo.ExpireGrants(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
