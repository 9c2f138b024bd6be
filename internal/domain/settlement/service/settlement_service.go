package service

import (
	"context"
	"fmt"
	"math"
	"time"

	catalogRepo "course_checkout/internal/domain/catalog/repository"
	discountRepo "course_checkout/internal/domain/discount/repository"
	discountService "course_checkout/internal/domain/discount/service"
	"course_checkout/internal/domain/settlement/model"
	"course_checkout/internal/domain/settlement/repository"
	"course_checkout/internal/pkg/invoice"
	"course_checkout/internal/pkg/lms"
	"course_checkout/internal/pkg/mailer"
	"course_checkout/internal/pkg/orchestrator"
	"course_checkout/pkg/logger"
	"course_checkout/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const epsilon = discountService.Epsilon

// PaymentEntity 捕获事件中的支付实体；Notes 是下单时附加、网关原样回传的负载
type PaymentEntity struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"` // 最小货币单位（paise）
	Currency string            `json:"currency"`
	Method   string            `json:"method"`
	Email    string            `json:"email"`
	Contact  string            `json:"contact"`
	Notes    map[string]string `json:"notes"`
}

// RefundEntity 退款事件中的退款实体
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
}

// Outcome 清算结果，Warning 非空表示部分失败（照常入账，开票与通知被跳过）
type Outcome struct {
	AlreadySettled bool
	Warning        string
}

// TxRunner 事务边界抽象，便于单测注入
type TxRunner interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

type GormTxRunner struct {
	DB *gorm.DB
}

func (r GormTxRunner) Transaction(fn func(tx *gorm.DB) error) error {
	return r.DB.Transaction(fn)
}

// Dispatcher 清算后任务派发
type Dispatcher interface {
	Dispatch(paymentID string, tasks ...orchestrator.Task)
}

type SettlementService interface {
	HandleCaptured(ctx context.Context, e *PaymentEntity) (*Outcome, error)
	HandleRefund(ctx context.Context, e *RefundEntity) error
}

type settlementService struct {
	runner     TxRunner
	repo       repository.SettlementRepository
	catalog    catalogRepo.CatalogRepository
	discounts  discountRepo.DiscountRepository
	dispatcher Dispatcher
	mail       mailer.Mailer
	sheet      SheetAppender
	provision  lms.Client
}

// SheetAppender 与 internal/pkg/sheets.Appender 同构，定义在此只为避免测试反向依赖
type SheetAppender interface {
	AppendRow(ctx context.Context, values []interface{}) error
}

func NewSettlementService(
	runner TxRunner,
	repo repository.SettlementRepository,
	catalog catalogRepo.CatalogRepository,
	discounts discountRepo.DiscountRepository,
	dispatcher Dispatcher,
	mail mailer.Mailer,
	sheet SheetAppender,
	provision lms.Client,
) SettlementService {
	return &settlementService{
		runner:     runner,
		repo:       repo,
		catalog:    catalog,
		discounts:  discounts,
		dispatcher: dispatcher,
		mail:       mail,
		sheet:      sheet,
		provision:  provision,
	}
}

// HandleCaptured 支付捕获路径
// 客户 upsert、交易插入、用量自增放在同一个事务；payment_id 冲突意味着
// 本次是网关重放，确认即可，不重复自增也不重复派发副作用
func (s *settlementService) HandleCaptured(ctx context.Context, e *PaymentEntity) (*Outcome, error) {
	amount := float64(e.Amount) / 100
	notes := e.Notes
	if notes == nil {
		notes = map[string]string{}
	}

	email := notes["customerEmail"]
	if email == "" {
		email = e.Email
	}

	// 价格复核：notes 指向的套餐若还在售，捕获金额必须与存储价一致；
	// 不一致只拦截开票与通知 —— 钱已经收了，丢掉账目比带警告入账更糟
	warning := ""
	flagged := false
	if name := notes["itemName"]; name != "" {
		if plan, err := s.catalog.GetPlanByName(name); err == nil {
			if math.Abs(plan.Price-amount) > epsilon {
				flagged = true
				warning = fmt.Sprintf("captured amount %.2f does not match plan price %.2f", amount, plan.Price)
				logger.Log.Warn("settlement price mismatch",
					zap.String("payment_id", e.ID),
					zap.Float64("captured", amount),
					zap.Float64("stored", plan.Price))
			}
		}
	}

	outcome := &Outcome{Warning: warning}
	var customer *model.Customer

	start := time.Now()
	err := s.runner.Transaction(func(tx *gorm.DB) error {
		if email != "" {
			c := &model.Customer{Email: email}
			if v := notes["customerName"]; v != "" {
				c.Name = &v
			}
			if v := notes["customerPhone"]; v != "" {
				c.Phone = &v
			} else if e.Contact != "" {
				contact := e.Contact
				c.Phone = &contact
			}
			if v := notes["college"]; v != "" {
				c.College = &v
			}

			saved, err := s.repo.UpsertCustomer(tx, c)
			if err != nil {
				return err
			}
			customer = saved
		}

		t := &model.Transaction{
			PaymentID:     e.ID,
			OrderID:       e.OrderID,
			Amount:        amount,
			Currency:      e.Currency,
			Status:        model.TxStatusCaptured,
			PaymentMethod: e.Method,
			ItemID:        notes["itemId"],
			ItemName:      notes["itemName"],
			ReferralCode:  notes["referralCode"],
			PartnerCode:   notes["partnerReferralCode"],
			PromoID:       notes["promoId"],
			Flagged:       flagged,
		}
		if customer != nil {
			t.CustomerID = &customer.ID
		}

		inserted, err := s.repo.InsertTransaction(tx, t)
		if err != nil {
			return err
		}
		if !inserted {
			outcome.AlreadySettled = true
			return nil
		}

		return s.applyUsageIncrements(tx, e.ID, notes)
	})
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues("payment.captured", "error").Inc()
		return nil, err
	}

	if outcome.AlreadySettled {
		metrics.WebhooksProcessed.WithLabelValues("payment.captured", "replayed").Inc()
		logger.Log.Info("webhook replay detected, skipping side effects",
			zap.String("payment_id", e.ID))
		return outcome, nil
	}

	metrics.WebhooksProcessed.WithLabelValues("payment.captured", "settled").Inc()
	s.dispatcher.Dispatch(e.ID, s.buildTasks(e, amount, email, customer, flagged)...)
	return outcome, nil
}

// applyUsageIncrements 按 notes 里的码自增用量
// 封顶导致的空操作记告警但不回滚：支付已捕获，计数不能再否决它
func (s *settlementService) applyUsageIncrements(tx *gorm.DB, paymentID string, notes map[string]string) error {
	if code := notes["referralCode"]; code != "" {
		rc, err := s.discounts.GetReferralByCode(tx, code)
		if err != nil {
			return err
		}
		applied, err := s.discounts.IncrementReferralUses(tx, rc.ID)
		if err != nil {
			return err
		}
		if !applied {
			logger.Log.Warn("referral usage cap hit at settlement",
				zap.String("payment_id", paymentID), zap.String("code", code))
		}
	}
	if code := notes["partnerReferralCode"]; code != "" {
		pc, err := s.discounts.GetPartnerByCode(tx, code)
		if err != nil {
			return err
		}
		applied, err := s.discounts.IncrementPartnerUses(tx, pc.ID)
		if err != nil {
			return err
		}
		if !applied {
			logger.Log.Warn("partner usage cap hit at settlement",
				zap.String("payment_id", paymentID), zap.String("code", code))
		}
	}
	if promoID := notes["promoId"]; promoID != "" {
		applied, err := s.discounts.IncrementPromoUses(tx, promoID)
		if err != nil {
			return err
		}
		if !applied {
			logger.Log.Warn("promo usage cap hit at settlement",
				zap.String("payment_id", paymentID), zap.String("promo_id", promoID))
		}
	}
	return nil
}

// buildTasks 组装清算后的任务批
// flagged 时跳过开票与通知；开通与表格记录照常执行
func (s *settlementService) buildTasks(e *PaymentEntity, amount float64, email string, customer *model.Customer, flagged bool) []orchestrator.Task {
	notes := e.Notes
	name := notes["customerName"]
	itemID := notes["itemId"]
	itemName := notes["itemName"]

	var tasks []orchestrator.Task

	if email != "" && itemID != "" {
		tasks = append(tasks, orchestrator.Task{
			Name: "lms_provisioning",
			Run: func(ctx context.Context) error {
				accountID, err := s.provision.FindOrCreateAccount(ctx, email, name)
				if err != nil {
					return err
				}
				return s.provision.FindOrCreateEnrollment(ctx, accountID, itemID)
			},
		})
	}

	if email != "" && !flagged {
		tasks = append(tasks, orchestrator.Task{
			Name: "invoice_email",
			Run: func(ctx context.Context) error {
				pdf, err := invoice.Generate(invoice.Data{
					PaymentID:    e.ID,
					OrderID:      e.OrderID,
					CustomerName: name,
					Email:        email,
					ItemName:     itemName,
					Amount:       amount,
					Currency:     e.Currency,
					PaidAt:       time.Now(),
				})
				if err != nil {
					return err
				}
				subject := fmt.Sprintf("Payment received for %s", itemName)
				body := fmt.Sprintf(
					"<p>Hi %s,</p><p>We have received your payment of %.2f %s for <b>%s</b>. Your receipt is attached.</p>",
					name, amount, e.Currency, itemName)
				return s.mail.Send(ctx, email, subject, body, []mailer.Attachment{
					{Filename: "receipt-" + e.ID + ".pdf", Content: pdf},
				})
			},
		})
	}

	tasks = append(tasks, orchestrator.Task{
		Name: "sheet_append",
		Run: func(ctx context.Context) error {
			phone, college := "", ""
			if customer != nil {
				if customer.Phone != nil {
					phone = *customer.Phone
				}
				if customer.College != nil {
					college = *customer.College
				}
			}
			return s.sheet.AppendRow(ctx, []interface{}{
				time.Now().Format(time.RFC3339),
				e.ID, e.OrderID, itemName, amount, e.Currency,
				email, name, phone, college,
				model.TxStatusCaptured,
			})
		},
	})

	return tasks
}

// HandleRefund 退款路径：纯状态置位，先于捕获到达或重复到达都无害
func (s *settlementService) HandleRefund(ctx context.Context, e *RefundEntity) error {
	err := s.runner.Transaction(func(tx *gorm.DB) error {
		return s.repo.UpsertRefund(tx, e.PaymentID)
	})
	if err != nil {
		metrics.WebhooksProcessed.WithLabelValues("refund.created", "error").Inc()
		return err
	}
	metrics.WebhooksProcessed.WithLabelValues("refund.created", "settled").Inc()
	return nil
}
