package repository

import (
	"course_checkout/internal/domain/settlement/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository interface {
	// UpsertCustomer 按邮箱原子 upsert；已有的非空字段不会被本次事件的空值覆盖
	UpsertCustomer(tx *gorm.DB, c *model.Customer) (*model.Customer, error)
	// InsertTransaction 以 payment_id 为唯一键插入
	// 返回 false 表示键冲突：该支付已清算过，调用方应确认并跳过副作用
	InsertTransaction(tx *gorm.DB, t *model.Transaction) (bool, error)
	// UpsertRefund 纯状态置位：行存在则置 refunded，不存在则先占位
	// 退款事件先于捕获重放到达时，占位行会让后续捕获插入冲突短路，最终状态仍是 refunded
	UpsertRefund(tx *gorm.DB, paymentID string) error
}

type settlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) UpsertCustomer(tx *gorm.DB, c *model.Customer) (*model.Customer, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":       gorm.Expr("COALESCE(EXCLUDED.name, customers.name)"),
			"phone":      gorm.Expr("COALESCE(EXCLUDED.phone, customers.phone)"),
			"college":    gorm.Expr("COALESCE(EXCLUDED.college, customers.college)"),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(c).Error
	if err != nil {
		return nil, err
	}

	// upsert 撞到已有行时 gorm 不回填主键，重查一次拿到权威行
	var saved model.Customer
	if err := tx.Where("email = ?", c.Email).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *settlementRepository) InsertTransaction(tx *gorm.DB, t *model.Transaction) (bool, error) {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(t)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *settlementRepository) UpsertRefund(tx *gorm.DB, paymentID string) error {
	t := &model.Transaction{
		PaymentID: paymentID,
		Status:    model.TxStatusRefunded,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     model.TxStatusRefunded,
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(t).Error
}
