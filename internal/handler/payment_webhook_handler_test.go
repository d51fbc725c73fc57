package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"minimall/internal/models"
	"minimall/internal/service"
	"minimall/pkg/wxpay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookTestKey = "webhook-test-key"

type memPaymentStore struct {
	mu      sync.Mutex
	records map[string]*models.PaymentRecord
}

func (m *memPaymentStore) Create(p *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.records[p.MerchantTradeID] = &cp
	return nil
}

func (m *memPaymentStore) GetByMerchantTradeID(id string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memPaymentStore) MarkSuccess(id, gatewayTradeID string, paidAt time.Time, raw string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != models.PaymentPending {
		return false, nil
	}
	r.Status = models.PaymentSuccess
	r.GatewayTradeID = gatewayTradeID
	r.PaidAt = &paidAt
	r.RawCallback = raw
	return true, nil
}

func (m *memPaymentStore) MarkFailed(id, raw string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Status != models.PaymentPending {
		return false, nil
	}
	r.Status = models.PaymentFailed
	r.RawCallback = raw
	return true, nil
}

func (m *memPaymentStore) MarkCancelled(id string) (bool, error) { return false, nil }

func (m *memPaymentStore) SetRefund(id, refundTradeID, refundStatus string, refundAmount int64) error {
	return nil
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func (m *memOrderStore) GetByOrderNo(no string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[no]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) Save(o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.OrderNo] = &cp
	return nil
}

func newWebhookFixture() (*gin.Engine, *memPaymentStore, *memOrderStore) {
	gin.SetMode(gin.TestMode)
	payments := &memPaymentStore{records: make(map[string]*models.PaymentRecord)}
	orders := &memOrderStore{orders: make(map[string]*models.Order)}
	gateway := wxpay.NewClient("wxtest", "1900000000", webhookTestKey, "http://127.0.0.1:1", "", time.Second)
	svc := service.NewPaymentService(payments, orders, gateway)
	h := NewPaymentWebhookHandler(svc)

	r := gin.New()
	r.POST("/api/v1/payments/notify", h.Handle)
	return r, payments, orders
}

func signedCallback(tradeID, gatewayTradeID, resultCode string) []byte {
	params := map[string]string{
		"return_code":    "SUCCESS",
		"result_code":    resultCode,
		"out_trade_no":   tradeID,
		"transaction_id": gatewayTradeID,
		"total_fee":      "1999",
		"time_end":       "20260831120000",
	}
	params["sign"] = wxpay.Sign(params, webhookTestKey)
	var b bytes.Buffer
	b.WriteString("<xml>")
	for k, v := range params {
		fmt.Fprintf(&b, "<%s><![CDATA[%s]]></%s>", k, v, k)
	}
	b.WriteString("</xml>")
	return b.Bytes()
}

func postCallback(r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/notify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "text/xml")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAcksVerifiedSuccess(t *testing.T) {
	r, payments, orders := newWebhookFixture()
	require.NoError(t, payments.Create(&models.PaymentRecord{
		MerchantTradeID: "ORD-1", Amount: 1999, Status: models.PaymentPending,
	}))
	require.NoError(t, orders.Save(&models.Order{OrderNo: "ORD-1", Status: models.OrderPending}))

	w := postCallback(r, signedCallback("ORD-1", "gw-1", "SUCCESS"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SUCCESS")

	rec, err := payments.GetByMerchantTradeID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, rec.Status)
	assert.Equal(t, "gw-1", rec.GatewayTradeID)
	order, err := orders.GetByOrderNo("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, order.Status)

	// redelivery still gets the success ack so the gateway stops retrying
	w = postCallback(r, signedCallback("ORD-1", "gw-1", "SUCCESS"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SUCCESS")
}

func TestWebhookRejectsForgedSignature(t *testing.T) {
	r, payments, _ := newWebhookFixture()
	require.NoError(t, payments.Create(&models.PaymentRecord{
		MerchantTradeID: "ORD-1", Amount: 1999, Status: models.PaymentPending,
	}))

	body := bytes.Replace(signedCallback("ORD-1", "gw-1", "SUCCESS"), []byte("<sign><![CDATA["), []byte("<sign><![CDATA[X"), 1)
	w := postCallback(r, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FAIL")

	rec, err := payments.GetByMerchantTradeID("ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, rec.Status, "forged callback must not touch the record")
}

func TestWebhookUnknownTransactionGetsNegativeAck(t *testing.T) {
	r, payments, _ := newWebhookFixture()
	w := postCallback(r, signedCallback("ORD-unknown", "gw-1", "SUCCESS"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "FAIL")
	_, err := payments.GetByMerchantTradeID("ORD-unknown")
	assert.Error(t, err, "a callback must not create a record")
}
