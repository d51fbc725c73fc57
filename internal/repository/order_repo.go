package repository

import (
	"minimall/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByOrderNo(no string) (*models.Order, error) {
	var o models.Order
	err := r.db.Where("order_no = ?", no).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) ListByUserID(userID uint, limit, offset int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *OrderRepository) Save(o *models.Order) error {
	return r.db.Save(o).Error
}
