// Package token seals session identifiers into opaque tokens that are safe to
// carry as a WebSocket subprotocol value.
package token

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrShortSecret = errors.New("token: secret shorter than 32 bytes")
var ErrInvalidToken = errors.New("token: invalid or tampered token")

// Codec encrypts and decrypts session tokens with ChaCha20-Poly1305. The AEAD
// tag makes any tampering a decrypt failure rather than silent garbage, and
// RawURLEncoding keeps the output clear of ':', '/', '+' and '=' so the token
// is a legal Sec-WebSocket-Protocol value.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the cipher key from secret. The secret length is checked
// here, once at startup, not per call.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	key := sha256.Sum256(secret)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Output layout before
// encoding is nonce || ciphertext+tag.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt is the exact inverse of Encrypt for tokens produced with the same
// secret. Anything else fails with ErrInvalidToken.
func (c *Codec) Decrypt(tok string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return "", ErrInvalidToken
	}
	if len(raw) < chacha20poly1305.NonceSize {
		return "", ErrInvalidToken
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(plaintext), nil
}
