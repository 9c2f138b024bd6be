package model

import (
	baseModel "course_checkout/pkg/model"
)

// Product 实体商品（书籍、资料等），Stock 为 nil 表示无限量的数字商品
type Product struct {
	baseModel.BaseModel
	Name   string  `gorm:"type:varchar(200);not null" json:"name"`
	Price  float64 `gorm:"not null" json:"price"`
	Stock  *int    `json:"stock"`
	Active bool    `gorm:"default:true" json:"active"`
}

// Plan 课程/订阅套餐，无库存概念
type Plan struct {
	baseModel.BaseModel
	Name   string  `gorm:"type:varchar(200);uniqueIndex;not null" json:"name"`
	Price  float64 `gorm:"not null" json:"price"`
	Active bool    `gorm:"default:true" json:"active"`
}
