package repository

import (
	"errors"

	"course_checkout/internal/domain/discount/model"

	"gorm.io/gorm"
)

var ErrCodeTaken = errors.New("code already exists in another discount table")

type DiscountRepository interface {
	// 读操作通过调用方事务执行，与下单校验共享同一锁定快照；tx 为 nil 时退回自身连接
	GetReferralByCode(tx *gorm.DB, code string) (*model.ReferralCode, error)
	GetPartnerByCode(tx *gorm.DB, code string) (*model.PartnerReferralCode, error)

	// 促销价规则的三种匹配方式
	GetPromoByPlanID(planID string) (*model.PromoPrice, error)
	GetPromoByPriceAndPattern(price float64, planName string) (*model.PromoPrice, error)
	GetPromoByCode(code string) (*model.PromoPrice, error)

	// CodeInUse 跨全部折扣码表检查码值占用
	CodeInUse(code string) (bool, error)
	CreateReferralCode(code *model.ReferralCode) error
	CreatePartnerCode(code *model.PartnerReferralCode) error
	CreatePromoPrice(promo *model.PromoPrice) error

	// 条件自增，仅在确认支付的清算事务内调用。
	// 达到 max_uses 后自增退化为空操作并返回 false，由调用方记录告警，
	// 不让已捕获的支付因为计数封顶而整体回滚
	IncrementReferralUses(tx *gorm.DB, id string) (bool, error)
	IncrementPartnerUses(tx *gorm.DB, id string) (bool, error)
	IncrementPromoUses(tx *gorm.DB, id string) (bool, error)
}

type discountRepository struct {
	db *gorm.DB
}

func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

func (r *discountRepository) GetReferralByCode(tx *gorm.DB, code string) (*model.ReferralCode, error) {
	if tx == nil {
		tx = r.db
	}
	var rc model.ReferralCode
	if err := tx.Where("code = ?", code).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *discountRepository) GetPartnerByCode(tx *gorm.DB, code string) (*model.PartnerReferralCode, error) {
	if tx == nil {
		tx = r.db
	}
	var pc model.PartnerReferralCode
	if err := tx.Where("code = ?", code).First(&pc).Error; err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *discountRepository) GetPromoByPlanID(planID string) (*model.PromoPrice, error) {
	var promo model.PromoPrice
	if err := r.db.Where("plan_id = ? AND active = ?", planID, true).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *discountRepository) GetPromoByPriceAndPattern(price float64, planName string) (*model.PromoPrice, error) {
	var promo model.PromoPrice
	err := r.db.
		Where("active = ? AND price_min IS NOT NULL AND price_max IS NOT NULL", true).
		Where("? BETWEEN price_min AND price_max", price).
		Where("? ILIKE name_pattern", planName).
		First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *discountRepository) GetPromoByCode(code string) (*model.PromoPrice, error) {
	var promo model.PromoPrice
	if err := r.db.Where("code = ? AND active = ?", code, true).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *discountRepository) CodeInUse(code string) (bool, error) {
	return codeInUse(r.db, code)
}

func codeInUse(db *gorm.DB, code string) (bool, error) {
	var count int64
	if err := db.Model(&model.ReferralCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&model.PartnerReferralCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&model.PromoPrice{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// 跨表检查和插入在同一事务里执行；同表并发撞码仍由唯一索引兜底

func (r *discountRepository) CreateReferralCode(code *model.ReferralCode) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		taken, err := codeInUse(tx, code.Code)
		if err != nil {
			return err
		}
		if taken {
			return ErrCodeTaken
		}
		return tx.Create(code).Error
	})
}

func (r *discountRepository) CreatePartnerCode(code *model.PartnerReferralCode) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		taken, err := codeInUse(tx, code.Code)
		if err != nil {
			return err
		}
		if taken {
			return ErrCodeTaken
		}
		return tx.Create(code).Error
	})
}

func (r *discountRepository) CreatePromoPrice(promo *model.PromoPrice) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if promo.Code != "" {
			taken, err := codeInUse(tx, promo.Code)
			if err != nil {
				return err
			}
			if taken {
				return ErrCodeTaken
			}
		}
		return tx.Create(promo).Error
	})
}

// 条件自增避免并发清算下的丢失更新：
// UPDATE ... SET current_uses = current_uses + 1 WHERE id = ? AND (max_uses = 0 OR current_uses < max_uses)
func (r *discountRepository) IncrementReferralUses(tx *gorm.DB, id string) (bool, error) {
	return conditionalIncrement(tx.Model(&model.ReferralCode{}), id)
}

func (r *discountRepository) IncrementPartnerUses(tx *gorm.DB, id string) (bool, error) {
	return conditionalIncrement(tx.Model(&model.PartnerReferralCode{}), id)
}

func (r *discountRepository) IncrementPromoUses(tx *gorm.DB, id string) (bool, error) {
	return conditionalIncrement(tx.Model(&model.PromoPrice{}), id)
}

func conditionalIncrement(q *gorm.DB, id string) (bool, error) {
	result := q.
		Where("id = ? AND (max_uses = 0 OR current_uses < max_uses)", id).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
