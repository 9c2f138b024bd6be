package service

import (
	"errors"
	"math"
	"time"

	"course_checkout/internal/domain/catalog/model"
	discountModel "course_checkout/internal/domain/discount/model"
	"course_checkout/internal/domain/discount/repository"

	"gorm.io/gorm"
)

// 币值比较的容差，吸收浮点舍入
const Epsilon = 0.01

var (
	ErrBothCodesSupplied = errors.New("only one of referral code or partner referral code may be supplied")
	ErrCodeNotFound      = errors.New("discount code not found")
	ErrCodeInactive      = errors.New("discount code is not active")
	ErrCodeExpired       = errors.New("discount code is outside its validity window")
	ErrBelowMinimumOrder = errors.New("order amount is below the code's minimum")
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	ErrDiscountMismatch  = errors.New("claimed discount does not match the computed discount")
	ErrCodeConflict      = errors.New("discount code exists in more than one code table")
)

// ValidationResult 校验结果，VerifiedDiscount 是服务端独立推导出的折扣额
type ValidationResult struct {
	Valid            bool
	VerifiedDiscount float64
	ReferralID       string
	PartnerID        string
}

type DiscountService interface {
	// Validate 校验折扣码并核算折扣额。tx 为调用方事务时读到同一锁定快照，
	// 纯读操作，不递增使用计数（下单意向不等于支付）
	Validate(tx *gorm.DB, baseAmount, claimedDiscount float64, referralCode, partnerCode string) (*ValidationResult, error)
	// ResolvePlanPrice 按促销规则解析套餐的应付价：
	// 依次尝试显式促销码、精确套餐 ID、价格区间+名称模式
	ResolvePlanPrice(plan *model.Plan, promoCode string) (float64, *discountModel.PromoPrice)
}

type discountService struct {
	repo repository.DiscountRepository
	now  func() time.Time
}

func NewDiscountService(repo repository.DiscountRepository) DiscountService {
	return &discountService{repo: repo, now: time.Now}
}

// codeTerms 两类推荐码共有的核销条款
type codeTerms struct {
	discountType   string
	discountValue  float64
	minOrderAmount float64
	maxDiscount    *float64
	maxUses        int
	currentUses    int
	validFrom      *time.Time
	validUntil     *time.Time
	active         bool
}

func (s *discountService) Validate(tx *gorm.DB, baseAmount, claimedDiscount float64, referralCode, partnerCode string) (*ValidationResult, error) {
	// 规则 1：两类码最多提交一个
	if referralCode != "" && partnerCode != "" {
		return nil, ErrBothCodesSupplied
	}

	if referralCode == "" && partnerCode == "" {
		// 未用码：声明的折扣必须为零
		if math.Abs(claimedDiscount) > Epsilon {
			return nil, ErrDiscountMismatch
		}
		return &ValidationResult{Valid: true, VerifiedDiscount: 0}, nil
	}

	result := &ValidationResult{}
	var terms codeTerms

	if referralCode != "" {
		rc, err := s.repo.GetReferralByCode(tx, referralCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCodeNotFound
			}
			return nil, err
		}
		if err := s.ensureSingleTable(tx, referralCode, true); err != nil {
			return nil, err
		}
		result.ReferralID = rc.ID
		terms = codeTerms{rc.DiscountType, rc.DiscountValue, rc.MinOrderAmount, rc.MaxDiscount,
			rc.MaxUses, rc.CurrentUses, rc.ValidFrom, rc.ValidUntil, rc.Active}
	} else {
		pc, err := s.repo.GetPartnerByCode(tx, partnerCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCodeNotFound
			}
			return nil, err
		}
		if err := s.ensureSingleTable(tx, partnerCode, false); err != nil {
			return nil, err
		}
		result.PartnerID = pc.ID
		terms = codeTerms{pc.DiscountType, pc.DiscountValue, pc.MinOrderAmount, pc.MaxDiscount,
			pc.MaxUses, pc.CurrentUses, pc.ValidFrom, pc.ValidUntil, pc.Active}
	}

	// 规则 2：存在、启用、处于有效期内（边界缺省表示不设限）
	now := s.now()
	if !terms.active {
		return nil, ErrCodeInactive
	}
	if terms.validFrom != nil && now.Before(*terms.validFrom) {
		return nil, ErrCodeExpired
	}
	if terms.validUntil != nil && now.After(*terms.validUntil) {
		return nil, ErrCodeExpired
	}

	// 规则 3：满足最低订单金额
	if baseAmount < terms.minOrderAmount {
		return nil, ErrBelowMinimumOrder
	}

	// 规则 4：使用次数未封顶
	if terms.maxUses > 0 && terms.currentUses >= terms.maxUses {
		return nil, ErrUsageLimitReached
	}

	// 规则 5：核算折扣
	var discount float64
	switch terms.discountType {
	case discountModel.DiscountTypePercentage:
		discount = baseAmount * terms.discountValue / 100
		if terms.maxDiscount != nil && discount > *terms.maxDiscount {
			discount = *terms.maxDiscount
		}
	case discountModel.DiscountTypeFixed:
		// 固定折扣不得超过订单总额
		discount = math.Min(terms.discountValue, baseAmount)
	default:
		return nil, ErrCodeInactive
	}

	// 规则 6：与客户端声称的折扣比对，不一致视为篡改，不做静默修正
	if math.Abs(discount-claimedDiscount) > Epsilon {
		return nil, ErrDiscountMismatch
	}

	result.Valid = true
	result.VerifiedDiscount = discount
	return result, nil
}

// ensureSingleTable 核销时复查码值的跨表唯一性
// 创建路径已经校验过，但旁路写入（导数据、手工 SQL）可能绕开它；
// 命中第二张表的码语义不明确，拒绝核销而不是猜一张表
func (s *discountService) ensureSingleTable(tx *gorm.DB, code string, isReferral bool) error {
	if isReferral {
		if _, err := s.repo.GetPartnerByCode(tx, code); err == nil {
			return ErrCodeConflict
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	} else {
		if _, err := s.repo.GetReferralByCode(tx, code); err == nil {
			return ErrCodeConflict
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if _, err := s.repo.GetPromoByCode(code); err == nil {
		return ErrCodeConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *discountService) ResolvePlanPrice(plan *model.Plan, promoCode string) (float64, *discountModel.PromoPrice) {
	if promoCode != "" {
		if promo, err := s.repo.GetPromoByCode(promoCode); err == nil && s.promoLive(promo) {
			return promo.PromoAmount, promo
		}
		return plan.Price, nil
	}
	if promo, err := s.repo.GetPromoByPlanID(plan.ID); err == nil && s.promoLive(promo) {
		return promo.PromoAmount, promo
	}
	if promo, err := s.repo.GetPromoByPriceAndPattern(plan.Price, plan.Name); err == nil && s.promoLive(promo) {
		return promo.PromoAmount, promo
	}
	return plan.Price, nil
}

func (s *discountService) promoLive(p *discountModel.PromoPrice) bool {
	now := s.now()
	if !p.Active {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return false
	}
	return true
}
