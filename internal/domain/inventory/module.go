package inventory

import (
	"context"
	"order_core/internal/domain/inventory/handler"
	"order_core/internal/domain/inventory/repository"
	"order_core/internal/domain/inventory/service"
	"order_core/internal/domain/user"
	"order_core/internal/pkg/middleware"
	"order_core/internal/pkg/registry"
	"order_core/internal/pkg/worker"

	"github.com/gin-gonic/gin"
)

// InventoryModule 库存与预占模块
type InventoryModule struct{}

func init() {
	registry.Register(&InventoryModule{})
}

func (m *InventoryModule) Name() string {
	return "inventory"
}

func (m *InventoryModule) Priority() int {
	return 10
}

func (m *InventoryModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	ledger := BuildLedger(ctx)
	h := handler.NewInventoryHandler(ledger)

	// 2. 路由注册
	setupRoutes(ctx.Router, h, ctx.Config.JWT.Secret)

	// 3. 过期预占回收
	if ctx.Scheduler != nil {
		ctx.Scheduler.Register(worker.Job{
			Name:     "reservation-sweep",
			Interval: ctx.Config.Inventory.SweepInterval,
			Run: func(c context.Context) error {
				_, err := ledger.SweepExpired(c)
				return err
			},
		})
	}
	return nil
}

// BuildLedger 供订单模块注入
func BuildLedger(ctx *registry.ModuleContext) service.Ledger {
	cfg := ctx.Config.Inventory
	return service.NewLedger(
		repository.NewStockRepository(ctx.DB),
		repository.NewReservationRepository(ctx.DB),
		ctx.Tx,
		user.BuildService(ctx),
		ctx.Metrics,
		service.Options{
			HoldWindow: cfg.HoldWindow,
			MaxStock:   cfg.MaxStock,
			SweepBatch: cfg.SweepBatch,
		},
	)
}

func setupRoutes(r gin.IRouter, h *handler.InventoryHandler, secret string) {
	r.GET("/stocks/:sku/available", h.Available)

	authorized := r.Group("")
	authorized.Use(middleware.AuthMiddleware(secret))
	{
		authorized.POST("/reservations", h.Reserve)
		authorized.DELETE("/reservations", h.Cancel)
		authorized.GET("/reservations", h.ListReservations)

		admin := authorized.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/stocks", h.CreateStock)
			admin.POST("/stocks/:sku/add", h.AddStock)
		}
	}
}
