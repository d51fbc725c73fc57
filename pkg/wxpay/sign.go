package wxpay

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// canonical builds the string-to-sign: empty values and the sign field are
// dropped, keys sorted bytewise ascending, joined as k=v&, shared secret
// appended as key=<secret>.
func canonical(params map[string]string, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('&')
	}
	b.WriteString("key=")
	b.WriteString(apiKey)
	return b.String()
}

// Sign computes the gateway digest over a flat parameter map: MD5 of the
// canonical form, rendered as uppercase hex.
func Sign(params map[string]string, apiKey string) string {
	sum := md5.Sum([]byte(canonical(params, apiKey)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify re-derives the digest and compares it with the payload's sign field
// in constant time. A missing sign never verifies.
func Verify(params map[string]string, apiKey string) bool {
	got := params["sign"]
	if got == "" {
		return false
	}
	want := Sign(params, apiKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// PayParams are returned to the mini-program to invoke the payment sheet.
type PayParams struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

// SignClientParams computes paySign over the fixed five-field client profile
// with HMAC-SHA256. This wire format is not interchangeable with the map
// signer above, so it stays a separate profile.
func SignClientParams(p PayParams, apiKey string) string {
	s := fmt.Sprintf("appId=%s&nonceStr=%s&package=%s&signType=%s&timeStamp=%s&key=%s",
		p.AppID, p.NonceStr, p.Package, p.SignType, p.TimeStamp, apiKey)
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(s))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
