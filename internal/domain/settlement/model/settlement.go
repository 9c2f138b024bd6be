package model

import (
	baseModel "course_checkout/pkg/model"
)

// 交易状态
const (
	TxStatusCaptured = "captured"
	TxStatusRefunded = "refunded"
)

// Customer 以邮箱为自然键的客户档案
// 可空字段只会被补全，重复购买时绝不用空值覆盖已有信息
type Customer struct {
	baseModel.BaseModel
	Email   string  `gorm:"type:varchar(200);uniqueIndex;not null" json:"email"`
	Name    *string `gorm:"type:varchar(200)" json:"name"`
	Phone   *string `gorm:"type:varchar(30)" json:"phone"`
	College *string `gorm:"type:varchar(200)" json:"college"`
}

// Transaction 清算凭证，payment_id 唯一键是回调重放的幂等边界
type Transaction struct {
	baseModel.BaseModel
	PaymentID     string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"paymentId"`
	OrderID       string  `gorm:"type:varchar(100);index" json:"orderId"`
	Amount        float64 `gorm:"not null" json:"amount"`
	Currency      string  `gorm:"type:varchar(10);default:'INR'" json:"currency"`
	Status        string  `gorm:"type:varchar(20);not null" json:"status"`
	PaymentMethod string  `gorm:"type:varchar(50)" json:"paymentMethod"`
	CustomerID    *string `gorm:"type:uuid;index" json:"customerId"`
	ItemID        string  `gorm:"type:varchar(100)" json:"itemId"`
	ItemName      string  `gorm:"type:varchar(200)" json:"itemName"`
	ReferralCode  string  `gorm:"type:varchar(50)" json:"referralCode"`
	PartnerCode   string  `gorm:"type:varchar(50)" json:"partnerCode"`
	PromoID       string  `gorm:"type:varchar(100)" json:"promoId"`
	// 捕获金额与存储价不符时置位；清算照常入账，仅跳过开票与通知
	Flagged bool `gorm:"default:false" json:"flagged"`
}
