// Package wxmsg sends subscription messages through the vendor messaging
// gateway. It owns the short-lived access token the gateway requires.
package wxmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrGatewayUnavailable mirrors the payment client's transport-failure
// sentinel for the messaging side.
var ErrGatewayUnavailable = fmt.Errorf("wxmsg: gateway unavailable")

// GatewayError is a business rejection from the messaging gateway, e.g. the
// recipient revoked the subscription.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("wxmsg: gateway rejected message: %d (%s)", e.Code, e.Message)
}

// Client is safe for concurrent use; the token cache is guarded by a mutex
// and refreshed lazily when expired. Tokens live on the instance so multiple
// clients and test doubles do not interfere.
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	httpc     *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

func NewClient(appID, appSecret, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.weixin.qq.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpc:     &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// accessToken returns the cached token, refreshing it when it is within a
// minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}
	url := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s", c.baseURL, c.appID, c.appSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	var out tokenResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if out.AccessToken == "" {
		return "", &GatewayError{Code: out.ErrCode, Message: out.ErrMsg}
	}
	c.token = out.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.token, nil
}

type sendReq struct {
	ToUser     string                       `json:"touser"`
	TemplateID string                       `json:"template_id"`
	Data       map[string]map[string]string `json:"data"`
}

type sendResp struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// SendSubscribeMessage delivers one templated message to one recipient.
func (c *Client) SendSubscribeMessage(ctx context.Context, openid, templateID string, data map[string]string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	payload := sendReq{ToUser: openid, TemplateID: templateID, Data: make(map[string]map[string]string, len(data))}
	for k, v := range data {
		payload.Data[k] = map[string]string{"value": v}
	}
	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/cgi-bin/message/subscribe/send?access_token=%s", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	var out sendResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if out.ErrCode != 0 {
		if out.ErrCode == 40001 {
			// token invalidated server-side; drop the cache so the next call refreshes
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
		}
		log.Printf("[WXMSG] send to %s failed: %d %s", openid, out.ErrCode, out.ErrMsg)
		return &GatewayError{Code: out.ErrCode, Message: out.ErrMsg}
	}
	return nil
}
