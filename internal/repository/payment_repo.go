package repository

import (
	"time"

	"minimall/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.PaymentRecord) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByMerchantTradeID(id string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Where("merchant_trade_id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkSuccess moves a PENDING record to SUCCESS with a conditional update.
// The WHERE status = PENDING clause is the enforcement point that serializes
// concurrent duplicate callbacks: only one of them changes a row. Returns
// whether this call won the transition.
func (r *PaymentRepository) MarkSuccess(merchantTradeID, gatewayTradeID string, paidAt time.Time, raw string) (bool, error) {
	res := r.db.Model(&models.PaymentRecord{}).
		Where("merchant_trade_id = ? AND status = ?", merchantTradeID, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":           models.PaymentSuccess,
			"gateway_trade_id": gatewayTradeID,
			"paid_at":          paidAt,
			"raw_callback":     raw,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkFailed moves a PENDING record to FAILED, same conditional-update guard
// as MarkSuccess.
func (r *PaymentRepository) MarkFailed(merchantTradeID, raw string) (bool, error) {
	res := r.db.Model(&models.PaymentRecord{}).
		Where("merchant_trade_id = ? AND status = ?", merchantTradeID, models.PaymentPending).
		Updates(map[string]interface{}{
			"status":       models.PaymentFailed,
			"raw_callback": raw,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *PaymentRepository) MarkCancelled(merchantTradeID string) (bool, error) {
	res := r.db.Model(&models.PaymentRecord{}).
		Where("merchant_trade_id = ? AND status = ?", merchantTradeID, models.PaymentPending).
		Update("status", models.PaymentCancelled)
	return res.RowsAffected > 0, res.Error
}

// SetRefund records the refund bookkeeping on a SUCCESS record. The payment
// status itself is untouched; refund confirmation arrives asynchronously.
func (r *PaymentRepository) SetRefund(merchantTradeID, refundTradeID, refundStatus string, refundAmount int64) error {
	return r.db.Model(&models.PaymentRecord{}).
		Where("merchant_trade_id = ?", merchantTradeID).
		Updates(map[string]interface{}{
			"refund_status":   refundStatus,
			"refund_trade_id": refundTradeID,
			"refund_amount":   refundAmount,
		}).Error
}
