package main

import (
	"errors"
	"flag"
	"order_core/internal/pkg/config"
	"order_core/pkg/database"
	"order_core/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "file://migrations", "migrations source")
	down := flag.Bool("down", false, "roll back one step")
	force := flag.Int("force", -1, "force version before migrating (dirty recovery)")
	flag.Parse()

	config.LoadConfig()
	cfg := config.GlobalConfig
	if err := logger.InitLogger(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()

	m, err := migrate.New(*dir, database.MigrateURL(cfg.Database))
	if err != nil {
		logger.Log.Fatal("open migrations", zap.Error(err))
	}
	defer m.Close()

	if *force >= 0 {
		logger.Log.Warn("forcing migration version", zap.Int("version", *force))
		if err := m.Force(*force); err != nil {
			logger.Log.Fatal("force version", zap.Error(err))
		}
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			logger.Log.Fatal("database is dirty, rerun with -force", zap.Int("version", dirty.Version))
		}
		logger.Log.Fatal("migration failed", zap.Error(err))
	}

	version, dirty, _ := m.Version()
	logger.Log.Info("migration successful", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
