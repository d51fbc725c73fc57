package wxpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	params := map[string]string{
		"appid":        "wxtest",
		"mch_id":       "1900000000",
		"out_trade_no": "ORD-1",
		"total_fee":    "1999",
		"nonce_str":    "abc123",
	}
	params["sign"] = Sign(params, "secret")
	assert.True(t, Verify(params, "secret"))
}

func TestSignDropsEmptyAndSignFields(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	withNoise := map[string]string{"a": "1", "b": "2", "c": "", "sign": "GARBAGE"}
	assert.Equal(t, Sign(base, "k"), Sign(withNoise, "k"))
}

func TestSignIsDeterministicAcrossKeyOrder(t *testing.T) {
	// map iteration order varies; the canonical form must not
	params := map[string]string{"z": "1", "a": "2", "m": "3"}
	first := Sign(params, "k")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Sign(params, "k"))
	}
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	params := map[string]string{"out_trade_no": "ORD-1", "total_fee": "1999"}
	sign := Sign(params, "secret")
	require.NotEmpty(t, sign)

	for i := 0; i < len(sign); i++ {
		flipped := []byte(sign)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		params["sign"] = string(flipped)
		assert.False(t, Verify(params, "secret"), "flipped byte %d should not verify", i)
	}
}

func TestVerifyRejectsMissingSign(t *testing.T) {
	assert.False(t, Verify(map[string]string{"a": "1"}, "secret"))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	params := map[string]string{"a": "1"}
	params["sign"] = Sign(params, "secret")
	assert.False(t, Verify(params, "other-secret"))
}

func TestSignClientParamsIsSeparateProfile(t *testing.T) {
	p := PayParams{
		AppID:     "wxtest",
		TimeStamp: "1700000000",
		NonceStr:  "abc",
		Package:   "prepay_id=tok_abc",
		SignType:  "HMAC-SHA256",
	}
	sign := SignClientParams(p, "secret")
	assert.Len(t, sign, 64) // hmac-sha256 hex
	assert.Equal(t, sign, SignClientParams(p, "secret"))

	// any field change must change the digest
	p2 := p
	p2.NonceStr = "abd"
	assert.NotEqual(t, sign, SignClientParams(p2, "secret"))
}
