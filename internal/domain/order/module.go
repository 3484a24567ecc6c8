package order

import (
	"order_core/internal/domain/balance"
	catalogRepo "order_core/internal/domain/catalog/repository"
	"order_core/internal/domain/coupon"
	"order_core/internal/domain/inventory"
	"order_core/internal/domain/order/handler"
	"order_core/internal/domain/order/repository"
	"order_core/internal/domain/order/service"
	"order_core/internal/domain/user"
	"order_core/internal/pkg/middleware"
	"order_core/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	// 依赖库存、优惠券、余额模块
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	coordinator := service.NewCoordinator(
		repository.NewOrderRepository(ctx.DB),
		ctx.Tx,
		inventory.BuildLedger(ctx),
		coupon.BuildAllocator(ctx),
		balance.BuildService(ctx),
		catalogRepo.NewProductRepository(ctx.DB),
		user.BuildService(ctx),
		ctx.Metrics,
		service.Options{
			MaxAttempts:  ctx.Config.Order.MaxAttempts,
			RetryBackoff: ctx.Config.Order.RetryBackoff,
		},
	)
	setupRoutes(ctx.Router, handler.NewOrderHandler(coordinator), ctx.Config.JWT.Secret)
	return nil
}

func setupRoutes(r gin.IRouter, h *handler.OrderHandler, secret string) {
	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.POST("", h.CreateOrder)
		g.GET("", h.ListOrders)
		g.GET("/:id", h.GetOrder)
	}
}
