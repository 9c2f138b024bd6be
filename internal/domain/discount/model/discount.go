package model

import (
	"time"

	baseModel "course_checkout/pkg/model"
)

// 折扣形态
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// ReferralCode 自助推荐码
// 码值在所有折扣码表之间全局唯一，创建和核销时都要校验
type ReferralCode struct {
	baseModel.BaseModel
	Code           string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	DiscountType   string     `gorm:"type:varchar(20);not null" json:"discountType"`
	DiscountValue  float64    `gorm:"not null" json:"discountValue"`
	MinOrderAmount float64    `gorm:"default:0" json:"minOrderAmount"`
	MaxDiscount    *float64   `json:"maxDiscount"`
	MaxUses        int        `gorm:"default:0" json:"maxUses"` // 0 表示不限次数
	CurrentUses    int        `gorm:"default:0" json:"currentUses"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	Active         bool       `gorm:"default:true" json:"active"`
}

// PartnerReferralCode 合作方推荐码，结构与自助码一致，另带合作方信息用于分成结算
type PartnerReferralCode struct {
	baseModel.BaseModel
	Code           string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	PartnerName    string     `gorm:"type:varchar(100);not null" json:"partnerName"`
	CommissionRate float64    `gorm:"default:0" json:"commissionRate"`
	DiscountType   string     `gorm:"type:varchar(20);not null" json:"discountType"`
	DiscountValue  float64    `gorm:"not null" json:"discountValue"`
	MinOrderAmount float64    `gorm:"default:0" json:"minOrderAmount"`
	MaxDiscount    *float64   `json:"maxDiscount"`
	MaxUses        int        `gorm:"default:0" json:"maxUses"`
	CurrentUses    int        `gorm:"default:0" json:"currentUses"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	Active         bool       `gorm:"default:true" json:"active"`
}

// PromoPrice 套餐促销价规则
// 三种匹配方式：精确套餐 ID、价格区间+名称模式、显式促销码
type PromoPrice struct {
	baseModel.BaseModel
	PlanID      *string    `gorm:"type:uuid" json:"planId"`
	PriceMin    *float64   `json:"priceMin"`
	PriceMax    *float64   `json:"priceMax"`
	NamePattern string     `gorm:"type:varchar(200)" json:"namePattern"`
	Code        string     `gorm:"type:varchar(50);uniqueIndex" json:"code"`
	PromoAmount float64    `gorm:"not null" json:"promoAmount"`
	MaxUses     int        `gorm:"default:0" json:"maxUses"`
	CurrentUses int        `gorm:"default:0" json:"currentUses"`
	ValidFrom   *time.Time `json:"validFrom"`
	ValidUntil  *time.Time `json:"validUntil"`
	Active      bool       `gorm:"default:true" json:"active"`
}
