package database

import (
	"context"
	"testing"
	"order_core/internal/pkg/config"
	"order_core/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPoolMonitor_Check(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("idle pool logs at debug", func(t *testing.T) {
		m := NewPoolMonitor(db, 0)
		assert.Equal(t, 0.8, m.alertThreshold)

		require.NoError(t, m.Check(context.Background()))
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	})

	t.Run("saturated pool warns", func(t *testing.T) {
		db.SetMaxOpenConns(1)
		conn, err := db.Conn(context.Background())
		require.NoError(t, err)
		defer conn.Close()

		m := NewPoolMonitor(db, 0.5)
		require.NoError(t, m.Check(context.Background()))
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "database pool usage high", entries[0].Message)
	})
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db", User: "app", Password: "pw", DBName: "orders",
		Port: "5432", SSLMode: "disable", TimeZone: "UTC",
	}
	assert.Equal(t, "host=db user=app password=pw dbname=orders port=5432 sslmode=disable TimeZone=UTC", DSN(cfg))
	assert.Equal(t, "postgres://app:pw@db:5432/orders?sslmode=disable", MigrateURL(cfg))
}
