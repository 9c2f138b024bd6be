package checkout

import (
	catalogRepo "course_checkout/internal/domain/catalog/repository"
	"course_checkout/internal/domain/checkout/gateway"
	"course_checkout/internal/domain/checkout/handler"
	"course_checkout/internal/domain/checkout/service"
	discountRepo "course_checkout/internal/domain/discount/repository"
	discountService "course_checkout/internal/domain/discount/service"
	"course_checkout/internal/pkg/middleware"
	"course_checkout/internal/pkg/registry"
)

// CheckoutModule 下单意向模块
type CheckoutModule struct{}

func init() {
	registry.Register(&CheckoutModule{})
}

func (m *CheckoutModule) Name() string {
	return "checkout"
}

func (m *CheckoutModule) Priority() int {
	return 10
}

func (m *CheckoutModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	catalog := catalogRepo.NewCatalogRepository(ctx.DB)
	discounts := discountService.NewDiscountService(discountRepo.NewDiscountRepository(ctx.DB))
	gw := gateway.NewRazorpayGateway()

	oService := service.NewOrderService(service.GormTxRunner{DB: ctx.DB}, catalog, discounts, gw)
	oHandler := handler.NewOrderHandler(oService)

	// 2. 路由注册
	setupRoutes(ctx, oHandler)

	return nil
}

func setupRoutes(ctx *registry.ModuleContext, h *handler.OrderHandler) {
	g := ctx.Router.Group("/api")

	// 限流在任何数据库工作之前短路
	g.POST("/orders", middleware.OrderRateLimitMiddleware(ctx.Redis), h.CreateOrder)
}
