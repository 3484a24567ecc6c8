package service

import (
	"context"
	"order_core/internal/domain/balance/model"
	"order_core/internal/domain/balance/repository"
	"order_core/internal/pkg/txn"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"
	"order_core/pkg/metrics"
	"order_core/pkg/utils"

	"go.uber.org/zap"
)

// BalanceService 余额账本：加锁读-改-写
type BalanceService interface {
	Debit(ctx context.Context, userID string, amount int64, reference string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, reference string) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Entries(ctx context.Context, userID string, limit int) ([]model.Entry, error)
}

type Options struct {
	MinCredit  int64
	MaxCredit  int64
	MaxBalance int64
}

type balanceService struct {
	repo    repository.AccountRepository
	tx      txn.Manager
	metrics *metrics.MetricsCollector
	opts    Options
}

func NewBalanceService(repo repository.AccountRepository, tx txn.Manager, collector *metrics.MetricsCollector, opts Options) BalanceService {
	return &balanceService{repo: repo, tx: tx, metrics: collector, opts: opts}
}

// Debit 扣款，余额不足（或账户不存在）返回 InsufficientBalance；金额为 0 时不落流水
func (s *balanceService) Debit(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	if amount < 0 {
		return 0, apperr.ErrInvalidAmount.WithDetail("debit amount must not be negative, got %d", amount)
	}

	var balance int64
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		account, err := s.repo.LockAndRead(ctx, userID)
		if err != nil {
			return err
		}
		var current int64
		if account != nil {
			current = account.Balance
		}
		if amount == 0 {
			balance = current
			return nil
		}
		if account == nil || current < amount {
			return apperr.ErrInsufficientBalance.WithDetail("balance %d, required %d", current, amount)
		}

		balance = current - amount
		if err := s.repo.UpdateBalance(ctx, userID, balance); err != nil {
			return err
		}
		return s.repo.AppendEntry(ctx, newEntry(userID, model.EntryDebit, amount, balance, reference))
	})
	s.metrics.RecordBalanceOp("debit", err)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit 充值：先 upsert 零余额账户再加锁，金额必须在配置的单笔上下限内
func (s *balanceService) Credit(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	if amount < s.opts.MinCredit || amount > s.opts.MaxCredit {
		return 0, apperr.ErrInvalidAmount.WithDetail("credit amount must be within [%d, %d], got %d",
			s.opts.MinCredit, s.opts.MaxCredit, amount)
	}

	var balance int64
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repo.EnsureAccount(ctx, userID); err != nil {
			return err
		}
		account, err := s.repo.LockAndRead(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return apperr.ErrUserNotFound.WithDetail("account %s", userID)
		}

		next := account.Balance + amount
		if s.opts.MaxBalance > 0 && next > s.opts.MaxBalance {
			return apperr.ErrBalanceCeilingExceeded.WithDetail("balance %d + %d exceeds %d",
				account.Balance, amount, s.opts.MaxBalance)
		}
		if err := s.repo.UpdateBalance(ctx, userID, next); err != nil {
			return err
		}
		balance = next
		return s.repo.AppendEntry(ctx, newEntry(userID, model.EntryCredit, amount, next, reference))
	})
	s.metrics.RecordBalanceOp("credit", err)
	if err != nil {
		return 0, err
	}

	logger.Log.Info("balance credited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

func (s *balanceService) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := s.repo.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

func (s *balanceService) Entries(ctx context.Context, userID string, limit int) ([]model.Entry, error) {
	page := utils.Pagination{Limit: limit}
	limit = page.GetLimit()
	return s.repo.ListEntries(ctx, userID, limit)
}

func newEntry(userID string, kind model.EntryKind, amount, after int64, reference string) *model.Entry {
	e := &model.Entry{
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: after,
		Reference:    reference,
	}
	e.EnsureID()
	return e
}
