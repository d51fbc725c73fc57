package wxpay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks the merchant side of the payment gateway protocol: signed XML
// requests over HTTPS. It holds no mutable state and is safe for concurrent
// use.
type Client struct {
	appID      string
	merchantID string
	apiKey     string
	baseURL    string
	notifyURL  string
	httpc      *http.Client

	now   func() time.Time
	nonce func() string
}

func NewClient(appID, merchantID, apiKey, baseURL, notifyURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.mch.weixin.qq.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		appID:      appID,
		merchantID: merchantID,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		notifyURL:  notifyURL,
		httpc:      &http.Client{Timeout: timeout},
		now:        time.Now,
		nonce:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

type UnifiedOrderRequest struct {
	MerchantTradeID string
	Amount          int64 // minor currency units
	Description     string
	OpenID          string
}

type UnifiedOrderResponse struct {
	PrepayID string
}

// UnifiedOrder creates a prepaid transaction. The returned prepay id is the
// handle the client payment parameters are built from.
func (c *Client) UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (*UnifiedOrderResponse, error) {
	params := map[string]string{
		"appid":        c.appID,
		"mch_id":       c.merchantID,
		"nonce_str":    c.nonce(),
		"body":         req.Description,
		"out_trade_no": req.MerchantTradeID,
		"total_fee":    strconv.FormatInt(req.Amount, 10),
		"notify_url":   c.notifyURL,
		"trade_type":   "JSAPI",
		"openid":       req.OpenID,
	}
	params["sign"] = Sign(params, c.apiKey)
	resp, err := c.post(ctx, "/pay/unifiedorder", params)
	if err != nil {
		return nil, err
	}
	if resp["prepay_id"] == "" {
		return nil, fmt.Errorf("%w: success response without prepay_id", ErrGatewayUnavailable)
	}
	return &UnifiedOrderResponse{PrepayID: resp["prepay_id"]}, nil
}

type RefundRequest struct {
	MerchantTradeID string
	RefundTradeID   string // freshly generated, unique per refund request
	TotalAmount     int64
	RefundAmount    int64
	Reason          string
}

type RefundResponse struct {
	RefundID string
}

// Refund requests a (partial) refund against a completed transaction. The
// gateway confirms asynchronously; an accepted request is not yet a refund.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	params := map[string]string{
		"appid":         c.appID,
		"mch_id":        c.merchantID,
		"nonce_str":     c.nonce(),
		"out_trade_no":  req.MerchantTradeID,
		"out_refund_no": req.RefundTradeID,
		"total_fee":     strconv.FormatInt(req.TotalAmount, 10),
		"refund_fee":    strconv.FormatInt(req.RefundAmount, 10),
		"refund_desc":   req.Reason,
	}
	params["sign"] = Sign(params, c.apiKey)
	resp, err := c.post(ctx, "/secapi/pay/refund", params)
	if err != nil {
		return nil, err
	}
	return &RefundResponse{RefundID: resp["refund_id"]}, nil
}

// ClientParams builds the payment sheet parameters for a prepay id with a
// fresh timestamp and nonce.
func (c *Client) ClientParams(prepayID string) PayParams {
	p := PayParams{
		AppID:     c.appID,
		TimeStamp: strconv.FormatInt(c.now().Unix(), 10),
		NonceStr:  c.nonce(),
		Package:   "prepay_id=" + prepayID,
		SignType:  "HMAC-SHA256",
	}
	p.PaySign = SignClientParams(p, c.apiKey)
	return p
}

// post sends a signed request and applies the shared response checks:
// transport return_code, response signature, business result_code.
func (c *Client) post(ctx context.Context, path string, params map[string]string) (map[string]string, error) {
	body := encodeXML(params)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	log.Printf("[WXPAY] POST %s out_trade_no=%s", path, params["out_trade_no"])
	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer httpResp.Body.Close()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrGatewayUnavailable, httpResp.StatusCode)
	}
	resp, err := decodeXML(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if resp["return_code"] != "SUCCESS" {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, resp["return_msg"])
	}
	if !Verify(resp, c.apiKey) {
		return nil, ErrSignatureMismatch
	}
	if resp["result_code"] != "SUCCESS" {
		return nil, &GatewayError{Code: resp["err_code"], Description: resp["err_code_des"]}
	}
	return resp, nil
}
