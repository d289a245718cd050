package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

func encryptToken(key, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func decryptToken(key, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(payload) < nonceSize+gcm.Overhead() {
		return "", errors.New("invalid token payload")
	}
	plaintext, err := gcm.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// newCipher uses 16, 24 or 32 byte keys as-is and stretches any other
// non-empty key to AES-256 with SHA-256.
func newCipher(key string) (cipher.Block, error) {
	raw := []byte(key)
	switch len(raw) {
	case 0:
		return nil, errors.New("token encryption key is empty")
	case 16, 24, 32:
		return aes.NewCipher(raw)
	default:
		sum := sha256.Sum256(raw)
		return aes.NewCipher(sum[:])
	}
}
