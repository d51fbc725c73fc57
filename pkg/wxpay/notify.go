package wxpay

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// NotifyPayload is the authenticated payment-completion callback. Required
// fields are typed; gateway-specific additions land in Extra untouched.
type NotifyPayload struct {
	MerchantTradeID string
	GatewayTradeID  string
	ReturnCode      string
	ResultCode      string
	ErrCode         string
	ErrCodeDes      string
	OpenID          string
	TotalFee        int64
	TimeEnd         string // yyyyMMddHHmmss
	Extra           map[string]string
}

var notifyKnownFields = map[string]bool{
	"out_trade_no":   true,
	"transaction_id": true,
	"return_code":    true,
	"result_code":    true,
	"err_code":       true,
	"err_code_des":   true,
	"openid":         true,
	"total_fee":      true,
	"time_end":       true,
	"sign":           true,
}

// ParseNotify decodes and authenticates a callback body. The signature is
// verified before any field is interpreted; a mismatch rejects the payload
// outright.
func (c *Client) ParseNotify(body []byte) (*NotifyPayload, error) {
	params, err := decodeXML(body)
	if err != nil {
		return nil, fmt.Errorf("wxpay: malformed notify payload: %w", err)
	}
	if !Verify(params, c.apiKey) {
		return nil, ErrSignatureMismatch
	}
	totalFee, _ := strconv.ParseInt(params["total_fee"], 10, 64)
	p := &NotifyPayload{
		MerchantTradeID: params["out_trade_no"],
		GatewayTradeID:  params["transaction_id"],
		ReturnCode:      params["return_code"],
		ResultCode:      params["result_code"],
		ErrCode:         params["err_code"],
		ErrCodeDes:      params["err_code_des"],
		OpenID:          params["openid"],
		TotalFee:        totalFee,
		TimeEnd:         params["time_end"],
		Extra:           make(map[string]string),
	}
	for k, v := range params {
		if !notifyKnownFields[k] {
			p.Extra[k] = v
		}
	}
	if p.MerchantTradeID == "" {
		return nil, errors.New("wxpay: notify missing out_trade_no")
	}
	return p, nil
}

// PaidAt parses the completion timestamp; zero time when absent or unparseable.
func (p *NotifyPayload) PaidAt() time.Time {
	t, err := time.ParseInLocation("20060102150405", p.TimeEnd, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AckSuccess is the fixed acknowledgement the gateway requires to stop
// redelivering a callback.
func AckSuccess() []byte {
	return encodeXML(map[string]string{"return_code": "SUCCESS", "return_msg": "OK"})
}

// AckFail tells the gateway delivery failed so it retries later.
func AckFail(reason string) []byte {
	return encodeXML(map[string]string{"return_code": "FAIL", "return_msg": reason})
}
