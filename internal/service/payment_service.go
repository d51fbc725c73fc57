package service

import (
	"context"
	"errors"
	"log"
	"time"

	"minimall/internal/models"
	"minimall/pkg/wxpay"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStore is implemented by repository.PaymentRepository. The Mark*
// methods are conditional updates that only touch PENDING rows and report
// whether a row changed; that is the storage-level guard which serializes
// concurrent duplicate callbacks.
type PaymentStore interface {
	Create(p *models.PaymentRecord) error
	GetByMerchantTradeID(id string) (*models.PaymentRecord, error)
	MarkSuccess(merchantTradeID, gatewayTradeID string, paidAt time.Time, raw string) (bool, error)
	MarkFailed(merchantTradeID, raw string) (bool, error)
	MarkCancelled(merchantTradeID string) (bool, error)
	SetRefund(merchantTradeID, refundTradeID, refundStatus string, refundAmount int64) error
}

// OrderStore is the checkout collaborator's storage boundary.
type OrderStore interface {
	GetByOrderNo(no string) (*models.Order, error)
	Save(o *models.Order) error
}

// PaymentGateway is implemented by wxpay.Client.
type PaymentGateway interface {
	UnifiedOrder(ctx context.Context, req wxpay.UnifiedOrderRequest) (*wxpay.UnifiedOrderResponse, error)
	Refund(ctx context.Context, req wxpay.RefundRequest) (*wxpay.RefundResponse, error)
	ClientParams(prepayID string) wxpay.PayParams
	ParseNotify(body []byte) (*wxpay.NotifyPayload, error)
}

// PaidHook runs after a callback moves an order to paid, e.g. to push a
// notification. Best effort; errors are logged, never propagated into the
// callback response.
type PaidHook func(order *models.Order, payment *models.PaymentRecord)

type PaymentService struct {
	payments PaymentStore
	orders   OrderStore
	gateway  PaymentGateway
	onPaid   PaidHook
}

func NewPaymentService(payments PaymentStore, orders OrderStore, gateway PaymentGateway) *PaymentService {
	return &PaymentService{payments: payments, orders: orders, gateway: gateway}
}

// OnPaid registers the post-payment hook.
func (s *PaymentService) OnPaid(hook PaidHook) {
	s.onPaid = hook
}

// CreatePayment creates a prepaid transaction for an order and returns the
// client payment parameters. The PENDING record is persisted before the
// params are handed out. Gateway failures surface as-is: no automatic retry
// here, double submission is worse than a retried checkout.
func (s *PaymentService) CreatePayment(ctx context.Context, merchantTradeID string, amount int64, description, openid string) (*wxpay.PayParams, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	resp, err := s.gateway.UnifiedOrder(ctx, wxpay.UnifiedOrderRequest{
		MerchantTradeID: merchantTradeID,
		Amount:          amount,
		Description:     description,
		OpenID:          openid,
	})
	if err != nil {
		return nil, err
	}
	rec := &models.PaymentRecord{
		MerchantTradeID: merchantTradeID,
		PrepayID:        resp.PrepayID,
		OpenID:          openid,
		Amount:          amount,
		Description:     description,
		Status:          models.PaymentPending,
	}
	if err := s.payments.Create(rec); err != nil {
		return nil, err
	}
	params := s.gateway.ClientParams(resp.PrepayID)
	return &params, nil
}

// HandleCallback authenticates and applies one gateway completion callback.
// Order of checks matters: signature first and unconditionally, then record
// lookup, then the idempotency check, then the conditional status update.
// Redelivered success callbacks are a no-op, not an error.
func (s *PaymentService) HandleCallback(ctx context.Context, rawBody []byte) error {
	payload, err := s.gateway.ParseNotify(rawBody)
	if err != nil {
		return err
	}
	rec, err := s.payments.GetByMerchantTradeID(payload.MerchantTradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// a callback never creates a record
			return ErrUnknownTransaction
		}
		return err
	}
	if rec.Status == models.PaymentSuccess {
		log.Printf("[CALLBACK] %s already SUCCESS, ignoring redelivery", rec.MerchantTradeID)
		return nil
	}

	if payload.ResultCode != "SUCCESS" {
		changed, err := s.payments.MarkFailed(rec.MerchantTradeID, string(rawBody))
		if err != nil {
			return err
		}
		if changed {
			log.Printf("[CALLBACK] %s marked FAILED: %s (%s)", rec.MerchantTradeID, payload.ErrCode, payload.ErrCodeDes)
		}
		return nil
	}

	paidAt := payload.PaidAt()
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	changed, err := s.payments.MarkSuccess(rec.MerchantTradeID, payload.GatewayTradeID, paidAt, string(rawBody))
	if err != nil {
		return err
	}
	if !changed {
		// lost the race against a concurrent delivery of the same callback
		cur, err := s.payments.GetByMerchantTradeID(rec.MerchantTradeID)
		if err == nil && cur.Status == models.PaymentSuccess {
			return nil
		}
		return ErrInvalidState
	}
	log.Printf("[CALLBACK] %s marked SUCCESS gateway_trade_id=%s", rec.MerchantTradeID, payload.GatewayTradeID)

	order, err := s.orders.GetByOrderNo(rec.MerchantTradeID)
	if err != nil {
		// payment state is committed; the order side can be repaired by reconciliation
		log.Printf("[CALLBACK] order lookup failed for %s: %v", rec.MerchantTradeID, err)
		return nil
	}
	if err := TransitionOrder(order, models.OrderPaid); err != nil {
		log.Printf("[CALLBACK] order %s not moved to paid: %v", order.OrderNo, err)
		return nil
	}
	if err := s.orders.Save(order); err != nil {
		log.Printf("[CALLBACK] saving order %s failed: %v", order.OrderNo, err)
		return nil
	}
	if s.onPaid != nil {
		rec.Status = models.PaymentSuccess
		rec.GatewayTradeID = payload.GatewayTradeID
		s.onPaid(order, rec)
	}
	return nil
}

// QueryStatus returns the locally stored status. The hot path never re-polls
// the gateway; a reconciliation job may.
func (s *PaymentService) QueryStatus(ctx context.Context, merchantTradeID string) (*models.PaymentRecord, error) {
	rec, err := s.payments.GetByMerchantTradeID(merchantTradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownTransaction
		}
		return nil, err
	}
	return rec, nil
}

// Cancel moves a PENDING payment to CANCELLED. Terminal records are not
// re-entered.
func (s *PaymentService) Cancel(ctx context.Context, merchantTradeID string) error {
	rec, err := s.payments.GetByMerchantTradeID(merchantTradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownTransaction
		}
		return err
	}
	if rec.Status != models.PaymentPending {
		return ErrInvalidState
	}
	changed, err := s.payments.MarkCancelled(merchantTradeID)
	if err != nil {
		return err
	}
	if !changed {
		return ErrInvalidState
	}
	return nil
}

// CreateRefund sends a signed refund request for a completed payment. The
// record is not flipped to a refunded state here: the gateway confirms
// asynchronously, so only the PROCESSING marker is recorded and
// ReconcileRefund finishes the job later.
func (s *PaymentService) CreateRefund(ctx context.Context, merchantTradeID string, refundAmount int64, reason string) (string, error) {
	rec, err := s.payments.GetByMerchantTradeID(merchantTradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownTransaction
		}
		return "", err
	}
	if rec.Status != models.PaymentSuccess || rec.RefundStatus != models.RefundNone {
		return "", ErrInvalidState
	}
	if refundAmount <= 0 {
		refundAmount = rec.Amount
	}
	if refundAmount > rec.Amount {
		return "", ErrInvalidAmount
	}
	refundTradeID := "RF-" + uuid.NewString()
	_, err = s.gateway.Refund(ctx, wxpay.RefundRequest{
		MerchantTradeID: merchantTradeID,
		RefundTradeID:   refundTradeID,
		TotalAmount:     rec.Amount,
		RefundAmount:    refundAmount,
		Reason:          reason,
	})
	if err != nil {
		return "", err
	}
	if err := s.payments.SetRefund(merchantTradeID, refundTradeID, models.RefundProcessing, refundAmount); err != nil {
		return "", err
	}
	log.Printf("[REFUND] %s requested, refund_trade_id=%s amount=%d", merchantTradeID, refundTradeID, refundAmount)
	return refundTradeID, nil
}

// ReconcileRefund is the entry point for the reconciliation job once the
// gateway reports a definitive refund outcome. On success the order moves to
// refunded; on failure the PROCESSING marker is cleared so the refund can be
// retried.
func (s *PaymentService) ReconcileRefund(ctx context.Context, merchantTradeID string, succeeded bool) error {
	rec, err := s.payments.GetByMerchantTradeID(merchantTradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownTransaction
		}
		return err
	}
	if rec.RefundStatus != models.RefundProcessing {
		return ErrInvalidState
	}
	if !succeeded {
		return s.payments.SetRefund(merchantTradeID, rec.RefundTradeID, models.RefundNone, 0)
	}
	if err := s.payments.SetRefund(merchantTradeID, rec.RefundTradeID, models.RefundDone, rec.RefundAmount); err != nil {
		return err
	}
	order, err := s.orders.GetByOrderNo(merchantTradeID)
	if err != nil {
		log.Printf("[REFUND] order lookup failed for %s: %v", merchantTradeID, err)
		return nil
	}
	if err := TransitionOrder(order, models.OrderRefunded); err != nil {
		log.Printf("[REFUND] order %s not moved to refunded: %v", order.OrderNo, err)
		return nil
	}
	return s.orders.Save(order)
}
