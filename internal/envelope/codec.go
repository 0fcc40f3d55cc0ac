// Package envelope encrypts small JSON payloads into opaque URL-safe tokens.
//
// Tokens cross an external redirect (the OAuth state parameter) and come back
// from untrusted hands, so every decode path fails closed: a missing segment,
// a bad base64 run, or a tag mismatch all reject the token.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrInvalidKey signals a missing or wrong-size encryption key.
	ErrInvalidKey = errors.New("envelope: key must be 32 bytes")
	// ErrMalformedToken signals a structurally invalid token.
	ErrMalformedToken = errors.New("envelope: malformed token")
	// ErrAuthentication signals an AEAD tag mismatch (tampering or wrong key).
	ErrAuthentication = errors.New("envelope: token authentication failed")
	// ErrPayloadFormat signals a verified token whose plaintext is not valid JSON.
	ErrPayloadFormat = errors.New("envelope: payload is not valid json")
)

// Codec seals and opens envelope tokens with AES-256-GCM.
// Token layout: base64url(iv) "." base64url(tag) "." base64url(ciphertext).
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a base64-encoded 32-byte key.
func NewCodec(encodedKey string) (*Codec, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

func decodeKey(encoded string) ([]byte, error) {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return nil, ErrInvalidKey
	}
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		// Keys may also arrive base64url-encoded from secret managers.
		key, err = base64.RawURLEncoding.DecodeString(trimmed)
	}
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// Encrypt serializes payload to JSON and seals it under a fresh random IV.
func (c *Codec) Encrypt(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal payload: %w", err)
	}

	iv := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("envelope: generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		base64.RawURLEncoding.EncodeToString(iv),
		base64.RawURLEncoding.EncodeToString(tag),
		base64.RawURLEncoding.EncodeToString(ciphertext),
	}, "."), nil
}

// Decrypt opens a token produced by Encrypt and unmarshals the plaintext into out.
func (c *Codec) Decrypt(token string, out any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformedToken
	}
	for _, p := range parts {
		if p == "" {
			return ErrMalformedToken
		}
	}

	iv, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != nonceSize {
		return ErrMalformedToken
	}
	tag, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return ErrMalformedToken
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformedToken
	}

	// GCM verifies the tag itself; never compare tags by hand.
	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return ErrAuthentication
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return ErrPayloadFormat
	}
	return nil
}
