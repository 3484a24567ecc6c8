package repository

import (
	"context"
	"order_core/internal/domain/catalog/model"
	"order_core/internal/pkg/txn"

	"gorm.io/gorm"
)

// ProductReader 目录只读接口
type ProductReader interface {
	// GetMany 批量读取，缺失的 SKU 不出现在结果中
	GetMany(ctx context.Context, skuIDs []string) (map[string]model.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductReader {
	return &productRepository{db: db}
}

func (r *productRepository) GetMany(ctx context.Context, skuIDs []string) (map[string]model.Product, error) {
	var products []model.Product
	if err := txn.DB(ctx, r.db).Where("sku_id IN ?", skuIDs).Find(&products).Error; err != nil {
		return nil, err
	}
	result := make(map[string]model.Product, len(products))
	for _, p := range products {
		result[p.SKUID] = p
	}
	return result, nil
}
