package discount

import (
	"course_checkout/internal/domain/discount/handler"
	"course_checkout/internal/domain/discount/repository"
	"course_checkout/internal/pkg/registry"
)

// DiscountModule 折扣码维护模块
type DiscountModule struct{}

func init() {
	registry.Register(&DiscountModule{})
}

func (m *DiscountModule) Name() string {
	return "discount"
}

func (m *DiscountModule) Priority() int {
	return 30
}

func (m *DiscountModule) Init(ctx *registry.ModuleContext) error {
	h := handler.NewCodeHandler(repository.NewDiscountRepository(ctx.DB))

	g := ctx.Router.Group("/api/admin")
	g.POST("/referral-codes", h.CreateReferralCode)
	g.POST("/partner-codes", h.CreatePartnerCode)
	g.POST("/promo-prices", h.CreatePromoPrice)

	return nil
}
