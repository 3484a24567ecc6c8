package coupon

import (
	"context"
	"order_core/internal/domain/coupon/handler"
	"order_core/internal/domain/coupon/repository"
	"order_core/internal/domain/coupon/service"
	"order_core/internal/domain/user"
	"order_core/internal/pkg/middleware"
	"order_core/internal/pkg/registry"
	"order_core/internal/pkg/worker"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CouponModule 优惠券模块
type CouponModule struct{}

func init() {
	registry.Register(&CouponModule{})
}

func (m *CouponModule) Name() string {
	return "coupon"
}

func (m *CouponModule) Priority() int {
	return 10
}

func (m *CouponModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	allocator := BuildAllocator(ctx)
	h := handler.NewCouponHandler(allocator)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(ctx.Config.RateLimit.ClaimQPS), ctx.Config.RateLimit.ClaimBurst)
	setupRoutes(ctx.Router, h, ctx.Config.JWT.Secret, limiter)

	// 3. 活动结束后未使用的券置为过期
	if ctx.Scheduler != nil {
		ctx.Scheduler.Register(worker.Job{
			Name:     "coupon-grant-expiry",
			Interval: ctx.Config.Coupon.ExpireInterval,
			Run: func(c context.Context) error {
				_, err := allocator.ExpireGrants(c)
				return err
			},
		})
	}
	return nil
}

// BuildAllocator 供订单模块注入
func BuildAllocator(ctx *registry.ModuleContext) service.Allocator {
	cfg := ctx.Config.Coupon

	var marker service.SoldOutMarker = service.NopSoldOutMarker{}
	if ctx.Redis != nil {
		marker = service.NewRedisSoldOutMarker(ctx.Redis, cfg.SoldOutTTL)
	}

	return service.NewAllocator(
		repository.NewCouponRepository(ctx.DB),
		ctx.Tx,
		user.BuildService(ctx),
		marker,
		ctx.Metrics,
		service.Options{
			MaxTickets:   cfg.MaxTickets,
			SeedBatch:    cfg.SeedBatch,
			ClaimBackoff: cfg.ClaimBackoff,
		},
	)
}

func setupRoutes(r gin.IRouter, h *handler.CouponHandler, secret string, limiter *middleware.IPRateLimiter) {
	g := r.Group("/coupons")

	authorized := g.Group("")
	authorized.Use(middleware.AuthMiddleware(secret))
	{
		authorized.POST("/:id/claim", middleware.RateLimitMiddleware(limiter), h.Claim)
		authorized.GET("/grants", h.MyGrants)

		admin := authorized.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("", h.CreateCampaign)
			admin.PUT("/:id/validity", h.UpdateValidity)
		}
	}
}
