package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	catalogRepo "course_checkout/internal/domain/catalog/repository"
	"course_checkout/internal/domain/checkout/gateway"
	discountService "course_checkout/internal/domain/discount/service"
	"course_checkout/internal/pkg/config"
	"course_checkout/pkg/logger"
	"course_checkout/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const epsilon = discountService.Epsilon

var (
	ErrProductNotFound = errors.New("one or more products not found")
	ErrPlanUnverified  = errors.New("plan price could not be verified")
	ErrAmountMismatch  = errors.New("submitted amount does not match the computed payable amount")
	ErrInvalidQuantity = errors.New("cart line quantity must be a positive integer")
)

// PriceMismatchError 客户端报价与存储价不符（防篡改检查点之一）
type PriceMismatchError struct {
	ItemID  string
	Claimed float64
	Actual  float64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch for item %s: claimed %.2f, actual %.2f", e.ItemID, e.Claimed, e.Actual)
}

// StockShortage 库存不足的单行明细
type StockShortage struct {
	ItemID    string
	ItemName  string
	Requested int
	Available int
}

// InsufficientStockError 任意一行不足即整单失败，列出全部缺货行
type InsufficientStockError struct {
	Lines []StockShortage
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		names = append(names, fmt.Sprintf("%s (requested %d, available %d)", l.ItemName, l.Requested, l.Available))
	}
	return "insufficient stock: " + strings.Join(names, "; ")
}

// GatewayError 网关调用失败，事务已回滚，可安全重试
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string { return e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// CartItem 购物车行项
type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// OrderMetadata 自由格式元数据；Items 非空即走购物车路径
type OrderMetadata struct {
	Items               []CartItem `json:"items"`
	ReferralCode        string     `json:"referralCode"`
	PartnerReferralCode string     `json:"partnerReferralCode"`
	PromoCode           string     `json:"promoCode"`
	CustomerName        string     `json:"customerName"`
	CustomerEmail       string     `json:"customerEmail"`
	CustomerPhone       string     `json:"customerPhone"`
	College             string     `json:"college"`
}

// OrderRequest 下单意向请求
type OrderRequest struct {
	Amount         float64       `json:"amount" binding:"required,gt=0"`
	ItemID         string        `json:"itemId" binding:"required"`
	ItemName       string        `json:"itemName" binding:"required"`
	DiscountAmount float64       `json:"discountAmount"`
	Metadata       OrderMetadata `json:"metadata"`
}

// OrderResponse 网关订单句柄
type OrderResponse struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	ItemName string  `json:"itemName"`
	ItemID   string  `json:"itemId"`
}

// TxRunner 把事务边界从服务逻辑中拆出来，便于单测注入
type TxRunner interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

type GormTxRunner struct {
	DB *gorm.DB
}

func (r GormTxRunner) Transaction(fn func(tx *gorm.DB) error) error {
	return r.DB.Transaction(fn)
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)
}

type orderService struct {
	runner    TxRunner
	catalog   catalogRepo.CatalogRepository
	discounts discountService.DiscountService
	gw        gateway.Gateway
	currency  string
}

func NewOrderService(runner TxRunner, catalog catalogRepo.CatalogRepository, discounts discountService.DiscountService, gw gateway.Gateway) OrderService {
	return &orderService{
		runner:    runner,
		catalog:   catalog,
		discounts: discounts,
		gw:        gw,
		currency:  config.GlobalConfig.Razorpay.Currency,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if len(req.Metadata.Items) > 0 {
		return s.createCartOrder(ctx, req)
	}
	return s.createPlanOrder(ctx, req)
}

// createCartOrder 多商品购物车路径
// 整个校验在一个行锁事务内进行，网关调用成功后才提交；
// 网关失败回滚，库存扣减随之撤销
func (s *orderService) createCartOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	// 数量必须为正：负数行会把自己的价格从总额里减掉，让篡改后的
	// 金额通过第 5 步比对，还会把库存扣减变成加库存
	for _, item := range req.Metadata.Items {
		if item.Quantity <= 0 {
			metrics.OrdersRejected.WithLabelValues("invalid_quantity").Inc()
			return nil, ErrInvalidQuantity
		}
	}

	var resp *OrderResponse

	err := s.runner.Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(req.Metadata.Items))
		for _, item := range req.Metadata.Items {
			ids = append(ids, item.ID)
		}

		// 1. 一条语句对全部商品行加锁；行数不等说明有商品在加车后被下架
		products, err := s.catalog.LockProducts(tx, ids)
		if err != nil {
			return err
		}
		if len(products) != len(ids) {
			metrics.OrdersRejected.WithLabelValues("not_found").Inc()
			return ErrProductNotFound
		}
		byID := make(map[string]int, len(products))
		for i, p := range products {
			byID[p.ID] = i
		}

		// 2. 逐行核对客户端报价并累计真实总额
		var calculatedTotal float64
		for _, item := range req.Metadata.Items {
			p := products[byID[item.ID]]
			if math.Abs(item.Price-p.Price) > epsilon {
				logger.Log.Warn("cart price mismatch",
					zap.String("item_id", item.ID),
					zap.Float64("claimed", item.Price),
					zap.Float64("actual", p.Price))
				metrics.OrdersRejected.WithLabelValues("price_mismatch").Inc()
				return &PriceMismatchError{ItemID: item.ID, Claimed: item.Price, Actual: p.Price}
			}
			calculatedTotal += p.Price * float64(item.Quantity)
		}

		// 3. 库存校验：任意一行不足整单失败，汇总全部缺货行
		var shortages []StockShortage
		for _, item := range req.Metadata.Items {
			p := products[byID[item.ID]]
			if p.Stock != nil && *p.Stock < item.Quantity {
				shortages = append(shortages, StockShortage{
					ItemID:    item.ID,
					ItemName:  item.Name,
					Requested: item.Quantity,
					Available: *p.Stock,
				})
			}
		}
		if len(shortages) > 0 {
			metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
			return &InsufficientStockError{Lines: shortages}
		}

		// 4. 折扣核算，读同一事务快照
		verified, err := s.discounts.Validate(tx, calculatedTotal, req.DiscountAmount,
			req.Metadata.ReferralCode, req.Metadata.PartnerReferralCode)
		if err != nil {
			metrics.OrdersRejected.WithLabelValues("discount").Inc()
			return err
		}

		// 5. 应付金额 = 真实总额 - 核实折扣；客户端只能回显，不能定价
		payable := calculatedTotal - verified.VerifiedDiscount
		if math.Abs(payable-req.Amount) > epsilon {
			logger.Log.Warn("order amount mismatch",
				zap.Float64("claimed", req.Amount),
				zap.Float64("computed", payable))
			metrics.OrdersRejected.WithLabelValues("amount_mismatch").Inc()
			return ErrAmountMismatch
		}

		// 库存在本事务内扣减，网关失败时随事务回滚
		// 条件更新零行生效意味着并发订单抢先扣走了库存，按缺货处理
		for _, item := range req.Metadata.Items {
			if err := s.catalog.DecrementStock(tx, item.ID, item.Quantity); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
					return &InsufficientStockError{Lines: []StockShortage{{
						ItemID:    item.ID,
						ItemName:  item.Name,
						Requested: item.Quantity,
					}}}
				}
				return err
			}
		}

		// 6. 用服务端推导出的金额请求网关订单
		handle, err := s.requestGatewayOrder(ctx, payable, req, "")
		if err != nil {
			return err
		}

		resp = &OrderResponse{
			OrderID:  handle.ID,
			Amount:   handle.Amount,
			Currency: handle.Currency,
			ItemName: req.ItemName,
			ItemID:   req.ItemID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	return resp, nil
}

// createPlanOrder 单套餐路径：套餐查不到即视为无法核实，必须拒绝，
// 绝不为无法独立验证的金额创建网关订单
func (s *orderService) createPlanOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	plan, err := s.catalog.GetPlanByID(req.ItemID)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("unverified").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanUnverified
		}
		return nil, err
	}

	resolved, promo := s.discounts.ResolvePlanPrice(plan, req.Metadata.PromoCode)

	// 推荐码同样适用于套餐：在解析后的价格上再核算折扣
	verified, err := s.discounts.Validate(nil, resolved, req.DiscountAmount,
		req.Metadata.ReferralCode, req.Metadata.PartnerReferralCode)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("discount").Inc()
		return nil, err
	}

	expected := resolved - verified.VerifiedDiscount
	if math.Abs(expected-req.Amount) > epsilon {
		logger.Log.Warn("plan amount mismatch",
			zap.String("plan_id", plan.ID),
			zap.Float64("claimed", req.Amount),
			zap.Float64("computed", expected))
		metrics.OrdersRejected.WithLabelValues("amount_mismatch").Inc()
		return nil, ErrAmountMismatch
	}

	promoID := ""
	if promo != nil {
		promoID = promo.ID
	}

	handle, err := s.requestGatewayOrder(ctx, expected, req, promoID)
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	return &OrderResponse{
		OrderID:  handle.ID,
		Amount:   handle.Amount,
		Currency: handle.Currency,
		ItemName: req.ItemName,
		ItemID:   req.ItemID,
	}, nil
}

// requestGatewayOrder 组装 notes 负载并请求网关订单
// notes 会在支付捕获事件里原样回传，是清算时还原"买了什么"的唯一依据
func (s *orderService) requestGatewayOrder(ctx context.Context, amount float64, req *OrderRequest, promoID string) (*gateway.OrderHandle, error) {
	receipt := fmt.Sprintf("rcpt_%d_%s", time.Now().Unix(), uuid.New().String()[:8])

	notes := map[string]interface{}{
		"itemId":   req.ItemID,
		"itemName": req.ItemName,
	}
	if req.Metadata.ReferralCode != "" {
		notes["referralCode"] = req.Metadata.ReferralCode
	}
	if req.Metadata.PartnerReferralCode != "" {
		notes["partnerReferralCode"] = req.Metadata.PartnerReferralCode
	}
	if promoID != "" {
		notes["promoId"] = promoID
	}
	if req.Metadata.CustomerName != "" {
		notes["customerName"] = req.Metadata.CustomerName
	}
	if req.Metadata.CustomerEmail != "" {
		notes["customerEmail"] = req.Metadata.CustomerEmail
	}
	if req.Metadata.CustomerPhone != "" {
		notes["customerPhone"] = req.Metadata.CustomerPhone
	}
	if req.Metadata.College != "" {
		notes["college"] = req.Metadata.College
	}

	handle, err := s.gw.CreateOrder(ctx, amount, s.currency, receipt, notes)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("gateway").Inc()
		return nil, &GatewayError{Err: err}
	}
	return handle, nil
}
