package wxcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey = []byte("0123456789abcdef")
	testIV  = []byte("fedcba9876543210")
)

// encrypt mirrors the vendor side: JSON, PKCS#7 pad, AES-128-CBC.
func encrypt(t *testing.T, obj map[string]interface{}, key, iv []byte) string {
	t.Helper()
	plain, err := json.Marshal(obj)
	require.NoError(t, err)
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	for i := 0; i < pad; i++ {
		plain = append(plain, byte(pad))
	}
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return base64.StdEncoding.EncodeToString(out)
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestDecryptRoundTrip(t *testing.T) {
	obj := map[string]interface{}{
		"phoneNumber":     "+8613800138000",
		"purePhoneNumber": "13800138000",
		"countryCode":     "86",
	}
	got, err := Decrypt(encrypt(t, obj, testKey, testIV), b64(testIV), b64(testKey))
	require.NoError(t, err)
	assert.Equal(t, "+8613800138000", got["phoneNumber"])
	assert.Equal(t, "13800138000", got["purePhoneNumber"])
}

func TestDecryptRejectsBadInputs(t *testing.T) {
	valid := encrypt(t, map[string]interface{}{"a": "b"}, testKey, testIV)

	tests := []struct {
		name       string
		ciphertext string
		iv         string
		key        string
	}{
		{"ciphertext not base64", "!!!", b64(testIV), b64(testKey)},
		{"iv not base64", valid, "!!!", b64(testKey)},
		{"key not base64", valid, b64(testIV), "!!!"},
		{"key too short", valid, b64(testIV), b64(testKey[:8])},
		{"key too long", valid, b64(testIV), b64(append([]byte{}, append(testKey, testKey...)...))},
		{"iv wrong length", valid, b64(testIV[:8]), b64(testKey)},
		{"empty ciphertext", b64(nil), b64(testIV), b64(testKey)},
		{"truncated ciphertext", b64([]byte("short")), b64(testIV), b64(testKey)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.ciphertext, tt.iv, tt.key)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	// decrypting with the wrong key must fail padding or JSON validation,
	// never return a silently-wrong object
	ct := encrypt(t, map[string]interface{}{"a": "b"}, testKey, testIV)
	otherKey := []byte("fedcba9876543210")
	_, err := Decrypt(ct, b64(testIV), b64(otherKey))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRejectsCorruptPadding(t *testing.T) {
	// craft a blob whose plaintext ends in an invalid pad declaration
	plain := []byte(`{"a":"b"}`)
	padded := make([]byte, 32)
	copy(padded, plain)
	for i := len(plain); i < 32; i++ {
		padded[i] = 23 // claims 23 bytes of padding, out of range
	}
	block, err := aes.NewCipher(testKey)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, testIV).CryptBlocks(out, padded)

	_, err = Decrypt(b64(out), b64(testIV), b64(testKey))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRejectsInconsistentPadBytes(t *testing.T) {
	// last byte claims 4 pad bytes but they are not all equal to 4
	padded := []byte(`{"a":"b"}junk`)
	padded = append(padded, 1, 2, 4) // 16 bytes total
	require.Len(t, padded, 16)
	block, err := aes.NewCipher(testKey)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, testIV).CryptBlocks(out, padded)

	_, err = Decrypt(b64(out), b64(testIV), b64(testKey))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRejectsNonJSONPlaintext(t *testing.T) {
	plain := []byte("this is not json")
	padded := append([]byte{}, plain...)
	padded = append(padded, 16)
	for i := 1; i < 16; i++ {
		padded = append(padded, 16)
	}
	require.Equal(t, 0, len(padded)%aes.BlockSize)
	block, err := aes.NewCipher(testKey)
	require.NoError(t, err)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, testIV).CryptBlocks(out, padded)

	_, err = Decrypt(b64(out), b64(testIV), b64(testKey))
	assert.ErrorIs(t, err, ErrDecrypt)
}
