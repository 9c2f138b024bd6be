package settlement

import (
	"time"

	catalogRepo "course_checkout/internal/domain/catalog/repository"
	discountRepo "course_checkout/internal/domain/discount/repository"
	"course_checkout/internal/domain/settlement/handler"
	"course_checkout/internal/domain/settlement/repository"
	"course_checkout/internal/domain/settlement/service"
	"course_checkout/internal/pkg/lms"
	"course_checkout/internal/pkg/mailer"
	"course_checkout/internal/pkg/orchestrator"
	"course_checkout/internal/pkg/registry"
	"course_checkout/internal/pkg/sheets"
)

// SettlementModule 清算模块
type SettlementModule struct{}

func init() {
	registry.Register(&SettlementModule{})
}

func (m *SettlementModule) Name() string {
	return "settlement"
}

func (m *SettlementModule) Priority() int {
	return 20
}

func (m *SettlementModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	orch := orchestrator.New(30 * time.Second)
	orchestrator.Global = orch

	sService := service.NewSettlementService(
		service.GormTxRunner{DB: ctx.DB},
		repository.NewSettlementRepository(ctx.DB),
		catalogRepo.NewCatalogRepository(ctx.DB),
		discountRepo.NewDiscountRepository(ctx.DB),
		orch,
		mailer.NewSMTPMailer(),
		sheets.NewAppender(),
		lms.NewClient(),
	)
	wHandler := handler.NewWebhookHandler(sService)

	// 2. 路由注册（无鉴权，靠验签）
	ctx.Router.POST("/api/webhook", wHandler.HandleWebhook)

	return nil
}
