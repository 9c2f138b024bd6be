package repository

import (
	"fmt"

	"course_checkout/internal/domain/catalog/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepository interface {
	// LockProducts 在事务 tx 内对整个 id 集合加行锁（SELECT ... FOR UPDATE）
	// 返回行数可能少于请求数，由调用方判定缺失
	LockProducts(tx *gorm.DB, ids []string) ([]model.Product, error)
	// DecrementStock 在同一事务内扣减库存，stock 为 NULL 的数字商品跳过
	DecrementStock(tx *gorm.DB, productID string, quantity int) error
	GetPlanByID(id string) (*model.Plan, error)
	GetPlanByName(name string) (*model.Plan, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) LockProducts(tx *gorm.DB, ids []string) ([]model.Product, error) {
	var products []model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ? AND active = ?", ids, true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *catalogRepository) DecrementStock(tx *gorm.DB, productID string, quantity int) error {
	// 非正数量会把扣减变成加库存，服务层已拦截，这里拒绝是第二道防线
	if quantity <= 0 {
		return fmt.Errorf("decrement quantity must be positive, got %d", quantity)
	}

	// stock IS NULL 表示数字商品，不扣减；行已被本事务锁定，条件更新只是兜底
	result := tx.Model(&model.Product{}).
		Where("id = ? AND (stock IS NULL OR stock >= ?)", productID, quantity).
		UpdateColumn("stock", gorm.Expr("CASE WHEN stock IS NULL THEN NULL ELSE stock - ? END", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *catalogRepository) GetPlanByID(id string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.Where("id = ? AND active = ?", id, true).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *catalogRepository) GetPlanByName(name string) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.Where("name = ? AND active = ?", name, true).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}
