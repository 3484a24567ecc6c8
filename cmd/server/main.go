package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"order_core/internal/pkg/config"
	"order_core/internal/pkg/middleware"
	"order_core/internal/pkg/registry"
	"order_core/internal/pkg/txn"
	"order_core/internal/pkg/worker"
	"order_core/pkg/database"
	"order_core/pkg/logger"
	"order_core/pkg/metrics"

	// 注册业务模块
	_ "order_core/internal/domain/balance"
	_ "order_core/internal/domain/coupon"
	_ "order_core/internal/domain/inventory"
	_ "order_core/internal/domain/order"
	_ "order_core/internal/domain/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := &config.GlobalConfig

	if err := logger.InitLogger(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.App.Env == "prod" {
		if err := cfg.Validate(); err != nil {
			logger.Log.Fatal("invalid config", zap.Error(err))
		}
	}

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		logger.Log.Fatal("database init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Fatal("database init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	// Redis 不可用时退化为单实例运行：无售罄标记，调度锁走本地
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		logger.Log.Warn("redis unavailable, running without sold-out marker", zap.Error(err))
	}
	var locker worker.Locker = worker.LocalLocker{}
	if rdb != nil {
		defer rdb.Close()
		host, _ := os.Hostname()
		locker = worker.NewRedisLocker(rdb, host+"-"+uuid.New().String()[:8])
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(sqlDB, cfg.Database.DBName),
	)
	collector := metrics.NewMetricsCollector(reg)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(
		middleware.TraceMiddleware(),
		middleware.RecoveryMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
			ExposeHeaders:   []string{"X-Trace-ID", "Retry-After"},
			MaxAge:          12 * time.Hour,
		}),
		collector.Middleware(),
	)
	r.GET("/healthz", func(c *gin.Context) {
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	scheduler := worker.NewScheduler(locker)
	scheduler.Register(worker.Job{
		Name:     "db-pool-monitor",
		Interval: 30 * time.Second,
		Run:      database.NewPoolMonitor(sqlDB, 0.8).Check,
	})

	moduleCtx := &registry.ModuleContext{
		DB:        db,
		Redis:     rdb,
		Router:    r.Group("/api/v1"),
		Config:    cfg,
		Tx:        txn.NewGormManager(db, cfg.Database.LockTimeout),
		Metrics:   collector,
		Scheduler: scheduler,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("module init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	logger.Log.Info("scheduler jobs registered", zap.Strings("jobs", scheduler.Jobs()))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	logger.Log.Info("server exited")
}
