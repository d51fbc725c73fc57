// Package wxcrypto recovers plaintext JSON from the vendor-encrypted payloads
// the mini-program hands up (phone numbers, profile blobs). It knows nothing
// about what the plaintext means; callers interpret the returned object.
package wxcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecrypt covers every failure mode: bad base64, wrong key/iv length,
// malformed ciphertext, invalid padding, non-JSON plaintext. Callers must
// never see a silently-wrong result instead.
var ErrDecrypt = errors.New("wxcrypto: decryption failed")

// Decrypt recovers the JSON object from an AES-128-CBC blob. Padding is
// removed manually with full PKCS#7 validation: the gateway's scheme requires
// every pad byte to be checked, not just the length trimmed.
func Decrypt(ciphertextB64, ivB64, sessionKeyB64 string) (map[string]interface{}, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not valid base64", ErrDecrypt)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not valid base64", ErrDecrypt)
	}
	key, err := base64.StdEncoding.DecodeString(sessionKeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: session key is not valid base64", ErrDecrypt)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("%w: session key must be 16 bytes, got %d", ErrDecrypt, len(key))
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("%w: iv must be 16 bytes, got %d", ErrDecrypt, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of the block size", ErrDecrypt, len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(plain, &obj); err != nil {
		return nil, fmt.Errorf("%w: plaintext is not valid JSON", ErrDecrypt)
	}
	return obj, nil
}

// stripPKCS7 validates and removes the padding: claimed length in range, and
// every one of the last p bytes equal to p. Tampered or truncated ciphertext
// fails here rather than producing garbage plaintext.
func stripPKCS7(plain []byte) ([]byte, error) {
	p := int(plain[len(plain)-1])
	if p < 1 || p > aes.BlockSize {
		return nil, fmt.Errorf("%w: invalid padding length %d", ErrDecrypt, p)
	}
	if p > len(plain) {
		return nil, fmt.Errorf("%w: padding longer than plaintext", ErrDecrypt)
	}
	for _, b := range plain[len(plain)-p:] {
		if int(b) != p {
			return nil, fmt.Errorf("%w: corrupt padding", ErrDecrypt)
		}
	}
	return plain[:len(plain)-p], nil
}
