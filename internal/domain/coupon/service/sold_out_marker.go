package service

import (
	"context"
	"fmt"
	"time"
	"order_core/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SoldOutMarker 售罄快速失败标记。仅用于减少无效的数据库加锁查询，
// 数据库里的券行才是权威数据，标记丢失只会多查一次库。
type SoldOutMarker interface {
	IsSoldOut(ctx context.Context, campaignID string) bool
	MarkSoldOut(ctx context.Context, campaignID string)
}

type NopSoldOutMarker struct{}

func (NopSoldOutMarker) IsSoldOut(context.Context, string) bool { return false }
func (NopSoldOutMarker) MarkSoldOut(context.Context, string)    {}

type redisSoldOutMarker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSoldOutMarker 标记带 TTL，回滚释放的券最迟在 TTL 后重新可领
func NewRedisSoldOutMarker(rdb *redis.Client, ttl time.Duration) SoldOutMarker {
	return &redisSoldOutMarker{rdb: rdb, ttl: ttl}
}

func soldOutKey(campaignID string) string {
	return fmt.Sprintf("coupon:soldout:%s", campaignID)
}

func (m *redisSoldOutMarker) IsSoldOut(ctx context.Context, campaignID string) bool {
	n, err := m.rdb.Exists(ctx, soldOutKey(campaignID)).Result()
	if err != nil {
		// Redis 不可用时退回数据库判断
		logger.Log.Warn("sold-out marker lookup failed", zap.String("campaign_id", campaignID), zap.Error(err))
		return false
	}
	return n > 0
}

func (m *redisSoldOutMarker) MarkSoldOut(ctx context.Context, campaignID string) {
	if err := m.rdb.Set(ctx, soldOutKey(campaignID), 1, m.ttl).Err(); err != nil {
		logger.Log.Warn("sold-out marker write failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}
