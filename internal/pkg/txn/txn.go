package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order_core/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Manager 事务边界。fn 内通过 ctx 传递事务句柄，嵌套调用直接加入外层事务。
type Manager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// GormManager 基于 gorm 的事务管理器
type GormManager struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormManager(db *gorm.DB, lockTimeout time.Duration) *GormManager {
	return &GormManager{db: db, lockTimeout: lockTimeout}
}

func (m *GormManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 每个事务单独设置锁等待上限，超时由数据库抛出 55P03
		if m.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return Translate(err)
}

// DB 返回 ctx 中的事务句柄，不在事务内时返回 fallback
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

// PostgreSQL 中可安全重试的错误码
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgInvalidTextRepr      = "22P02" // 非法 uuid 等格式错误
)

// Translate 把存储层的锁冲突转换为 apperr.ErrBusy，格式错误转换为参数错误，领域错误原样返回
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return apperr.ErrBusy.Wrap(err)
		case pgInvalidTextRepr:
			return apperr.ErrInvalidArgument.WithDetail("malformed identifier").Wrap(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.ErrBusy.Wrap(err)
	}
	return err
}

// Retry 仅对 Transient 错误按线性退避重试
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !apperr.IsRetryable(err) || i == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i) * backoff):
		}
	}
	return err
}
