package service

import (
	"context"
	"sync"
	"time"

	"minimall/internal/models"
	"minimall/pkg/wxpay"

	"gorm.io/gorm"
)

// fakePaymentStore reproduces the repository's conditional-update semantics
// in memory, including the "only PENDING rows change" guard.
type fakePaymentStore struct {
	mu      sync.Mutex
	records map[string]*models.PaymentRecord
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{records: make(map[string]*models.PaymentRecord)}
}

func (f *fakePaymentStore) Create(p *models.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[p.MerchantTradeID]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *p
	f.records[p.MerchantTradeID] = &cp
	return nil
}

func (f *fakePaymentStore) GetByMerchantTradeID(id string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakePaymentStore) MarkSuccess(merchantTradeID, gatewayTradeID string, paidAt time.Time, raw string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[merchantTradeID]
	if !ok || r.Status != models.PaymentPending {
		return false, nil
	}
	r.Status = models.PaymentSuccess
	r.GatewayTradeID = gatewayTradeID
	t := paidAt
	r.PaidAt = &t
	r.RawCallback = raw
	return true, nil
}

func (f *fakePaymentStore) MarkFailed(merchantTradeID, raw string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[merchantTradeID]
	if !ok || r.Status != models.PaymentPending {
		return false, nil
	}
	r.Status = models.PaymentFailed
	r.RawCallback = raw
	return true, nil
}

func (f *fakePaymentStore) MarkCancelled(merchantTradeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[merchantTradeID]
	if !ok || r.Status != models.PaymentPending {
		return false, nil
	}
	r.Status = models.PaymentCancelled
	return true, nil
}

func (f *fakePaymentStore) SetRefund(merchantTradeID, refundTradeID, refundStatus string, refundAmount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[merchantTradeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.RefundStatus = refundStatus
	r.RefundTradeID = refundTradeID
	r.RefundAmount = refundAmount
	return nil
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	saves  int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.OrderNo] = &cp
}

func (f *fakeOrderStore) GetByOrderNo(no string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[no]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) Save(o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.OrderNo] = &cp
	f.saves++
	return nil
}

type fakeGateway struct {
	prepayID    string
	orderErr    error
	orderCalls  int
	refundErr   error
	refundCalls []wxpay.RefundRequest
	notify      *wxpay.NotifyPayload
	notifyErr   error
}

func (g *fakeGateway) UnifiedOrder(ctx context.Context, req wxpay.UnifiedOrderRequest) (*wxpay.UnifiedOrderResponse, error) {
	g.orderCalls++
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	return &wxpay.UnifiedOrderResponse{PrepayID: g.prepayID}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req wxpay.RefundRequest) (*wxpay.RefundResponse, error) {
	g.refundCalls = append(g.refundCalls, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &wxpay.RefundResponse{RefundID: "gwrf-1"}, nil
}

func (g *fakeGateway) ClientParams(prepayID string) wxpay.PayParams {
	return wxpay.PayParams{
		AppID:     "wxtest",
		TimeStamp: "1700000000",
		NonceStr:  "nonce",
		Package:   "prepay_id=" + prepayID,
		SignType:  "HMAC-SHA256",
		PaySign:   "SIGNED",
	}
}

func (g *fakeGateway) ParseNotify(body []byte) (*wxpay.NotifyPayload, error) {
	if g.notifyErr != nil {
		return nil, g.notifyErr
	}
	return g.notify, nil
}

// fakeMessageGateway fails for the recipients listed in failFor and tracks
// the peak number of in-flight sends.
type fakeMessageGateway struct {
	mu          sync.Mutex
	failFor     map[string]error
	inFlight    int
	maxInFlight int
	calls       []string
	delay       time.Duration
}

func newFakeMessageGateway() *fakeMessageGateway {
	return &fakeMessageGateway{failFor: make(map[string]error)}
}

func (g *fakeMessageGateway) SendSubscribeMessage(ctx context.Context, openid, templateID string, data map[string]string) error {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.calls = append(g.calls, openid)
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.inFlight--
	err := g.failFor[openid]
	g.mu.Unlock()
	return err
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*models.NotificationRecord
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{records: make(map[uint]*models.NotificationRecord)}
}

func (f *fakeNotificationStore) Create(n *models.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	cp := *n
	f.records[n.ID] = &cp
	return nil
}

func (f *fakeNotificationStore) GetByID(id uint) (*models.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationStore) Update(n *models.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *n
	f.records[n.ID] = &cp
	return nil
}

func (f *fakeNotificationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
