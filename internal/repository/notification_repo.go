package repository

import (
	"minimall/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.NotificationRecord) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) GetByID(id uint) (*models.NotificationRecord, error) {
	var n models.NotificationRecord
	err := r.db.First(&n, id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) Update(n *models.NotificationRecord) error {
	return r.db.Save(n).Error
}

func (r *NotificationRepository) ListFailed(limit int) ([]models.NotificationRecord, error) {
	var list []models.NotificationRecord
	err := r.db.Where("status = ? AND retry_count < max_retries", models.NotificationFailed).
		Order("updated_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *NotificationRepository) MarkRead(id uint) error {
	return r.db.Model(&models.NotificationRecord{}).Where("id = ?", id).
		Update("status", models.NotificationRead).Error
}
