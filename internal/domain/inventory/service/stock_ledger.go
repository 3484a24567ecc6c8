package service

import (
	"context"
	"sort"
	"order_core/internal/domain/inventory/model"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"

	"go.uber.org/zap"
)

// Deduct 单 SKU 扣减
func (s *ledger) Deduct(ctx context.Context, skuID string, qty int64) error {
	return s.DeductBatch(ctx, []model.Line{{SKUID: skuID, Quantity: qty}})
}

// DeductBatch 先按升序锁住全部行，再逐行扣减，重叠 SKU 集合的调用方不会互相死锁
func (s *ledger) DeductBatch(ctx context.Context, lines []model.Line) error {
	merged, err := normalizeLines(lines)
	if err != nil {
		return err
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		stocks, err := s.stocks.LockAndRead(ctx, skuIDsOf(merged))
		if err != nil {
			return err
		}
		byID := indexStocks(stocks)

		for _, line := range merged {
			stock, ok := byID[line.SKUID]
			if !ok {
				return apperr.ErrSKUNotFound.WithDetail("sku %s", line.SKUID)
			}
			if stock.Quantity < line.Quantity {
				return apperr.ErrStockUnavailable.WithDetail("sku %s: requested %d, in stock %d",
					line.SKUID, line.Quantity, stock.Quantity)
			}
		}
		for _, line := range merged {
			if err := s.stocks.UpdateQuantity(ctx, line.SKUID, byID[line.SKUID].Quantity-line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.RecordStockOp("deduct", err)
	return err
}

// Add 补货，结果超过上限时拒绝（防止运营输入错误）
func (s *ledger) Add(ctx context.Context, skuID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, apperr.ErrInvalidQuantity.WithDetail("add quantity must be positive, got %d", qty)
	}

	var result int64
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		stocks, err := s.stocks.LockAndRead(ctx, []string{skuID})
		if err != nil {
			return err
		}
		if len(stocks) == 0 {
			return apperr.ErrSKUNotFound.WithDetail("sku %s", skuID)
		}
		next := stocks[0].Quantity + qty
		if next > s.opts.MaxStock {
			return apperr.ErrMaxStockExceeded.WithDetail("sku %s: %d + %d exceeds %d",
				skuID, stocks[0].Quantity, qty, s.opts.MaxStock)
		}
		if err := s.stocks.UpdateQuantity(ctx, skuID, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	s.metrics.RecordStockOp("add", err)
	if err != nil {
		return 0, err
	}

	logger.Log.Info("stock added",
		zap.String("sku_id", skuID),
		zap.Int64("delta", qty),
		zap.Int64("quantity", result),
	)
	return result, nil
}

// CreateStock 目录上架时初始化库存行，已存在则保持原值
func (s *ledger) CreateStock(ctx context.Context, skuID string, qty int64) error {
	if skuID == "" {
		return apperr.ErrInvalidArgument.WithDetail("sku id is required")
	}
	if qty < 0 {
		return apperr.ErrInvalidQuantity.WithDetail("initial quantity must not be negative, got %d", qty)
	}
	if qty > s.opts.MaxStock {
		return apperr.ErrMaxStockExceeded.WithDetail("sku %s: %d exceeds %d", skuID, qty, s.opts.MaxStock)
	}

	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.stocks.Get(ctx, skuID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		return s.stocks.Create(ctx, &model.Stock{SKUID: skuID, Quantity: qty})
	})
}

// normalizeLines 校验数量、合并重复 SKU，并按 sku_id 升序返回
func normalizeLines(lines []model.Line) ([]model.Line, error) {
	if len(lines) == 0 {
		return nil, apperr.ErrInvalidArgument.WithDetail("at least one line is required")
	}
	sums := make(map[string]int64, len(lines))
	for _, line := range lines {
		if line.SKUID == "" {
			return nil, apperr.ErrInvalidArgument.WithDetail("sku id is required")
		}
		if line.Quantity <= 0 {
			return nil, apperr.ErrInvalidQuantity.WithDetail("sku %s: quantity must be positive, got %d",
				line.SKUID, line.Quantity)
		}
		sums[line.SKUID] += line.Quantity
	}

	merged := make([]model.Line, 0, len(sums))
	for sku, qty := range sums {
		merged = append(merged, model.Line{SKUID: sku, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].SKUID < merged[j].SKUID })
	return merged, nil
}

func skuIDsOf(lines []model.Line) []string {
	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.SKUID
	}
	return ids
}

func indexStocks(stocks []model.Stock) map[string]model.Stock {
	byID := make(map[string]model.Stock, len(stocks))
	for _, s := range stocks {
		byID[s.SKUID] = s
	}
	return byID
}
