package database

import (
	"context"
	"database/sql"
	"sync"
	"order_core/pkg/logger"

	"go.uber.org/zap"
)

// PoolMonitor 连接池巡检：等待次数增长或使用率过高时告警
type PoolMonitor struct {
	db             *sql.DB
	alertThreshold float64 // InUse / MaxOpen

	mu   sync.Mutex
	last sql.DBStats
}

func NewPoolMonitor(db *sql.DB, alertThreshold float64) *PoolMonitor {
	if alertThreshold <= 0 || alertThreshold > 1 {
		alertThreshold = 0.8
	}
	return &PoolMonitor{db: db, alertThreshold: alertThreshold}
}

// Check 作为周期任务执行，返回本周期新增的等待次数
func (m *PoolMonitor) Check(_ context.Context) error {
	stats := m.db.Stats()

	m.mu.Lock()
	waits := stats.WaitCount - m.last.WaitCount
	waitTime := stats.WaitDuration - m.last.WaitDuration
	m.last = stats
	m.mu.Unlock()

	fields := []zap.Field{
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int64("new_waits", waits),
		zap.Duration("new_wait_time", waitTime),
	}

	if stats.MaxOpenConnections > 0 &&
		float64(stats.InUse)/float64(stats.MaxOpenConnections) >= m.alertThreshold {
		logger.Log.Warn("database pool usage high", fields...)
		return nil
	}
	if waits > 0 {
		logger.Log.Warn("database pool waits observed", fields...)
		return nil
	}
	logger.Log.Debug("database pool stats", fields...)
	return nil
}
