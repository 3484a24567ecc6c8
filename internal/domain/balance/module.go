package balance

import (
	"order_core/internal/domain/balance/handler"
	"order_core/internal/domain/balance/repository"
	"order_core/internal/domain/balance/service"
	"order_core/internal/pkg/middleware"
	"order_core/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// BalanceModule 余额模块
type BalanceModule struct{}

func init() {
	registry.Register(&BalanceModule{})
}

func (m *BalanceModule) Name() string {
	return "balance"
}

func (m *BalanceModule) Priority() int {
	return 10
}

func (m *BalanceModule) Init(ctx *registry.ModuleContext) error {
	h := handler.NewBalanceHandler(BuildService(ctx))
	setupRoutes(ctx.Router, h, ctx.Config.JWT.Secret)
	return nil
}

// BuildService 供订单模块注入
func BuildService(ctx *registry.ModuleContext) service.BalanceService {
	cfg := ctx.Config.Balance
	return service.NewBalanceService(
		repository.NewAccountRepository(ctx.DB),
		ctx.Tx,
		ctx.Metrics,
		service.Options{
			MinCredit:  cfg.MinCredit,
			MaxCredit:  cfg.MaxCredit,
			MaxBalance: cfg.MaxBalance,
		},
	)
}

func setupRoutes(r gin.IRouter, h *handler.BalanceHandler, secret string) {
	g := r.Group("/balance")
	g.Use(middleware.AuthMiddleware(secret))
	{
		g.GET("", h.Balance)
		g.GET("/entries", h.Entries)
		g.POST("/credit", middleware.AdminMiddleware(), h.Credit)
	}
}
