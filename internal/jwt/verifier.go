// Package jwt verifies session tokens minted by the hosted auth provider.
// This service never signs tokens; it only checks the shared-secret HS256
// signature and expiry on tokens presented by browser sessions.
package jwt

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// SessionClaims are the claims this service reads from a session token.
type SessionClaims struct {
	UserID string
	Email  string
}

// Verifier validates HS256 session tokens against the provider's signing secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier from the shared signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("jwt: signing secret is empty")
	}
	return &Verifier{secret: []byte(trimmed)}, nil
}

type providerClaims struct {
	gojwt.Claims
	Email string `json:"email,omitempty"`
}

// Verify checks signature and expiry and returns the session claims.
func (v *Verifier) Verify(token string) (*SessionClaims, error) {
	parsed, err := gojwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	var claims providerClaims
	if err := parsed.Claims(v.secret, &claims); err != nil {
		return nil, fmt.Errorf("jwt: verify signature: %w", err)
	}

	if err := claims.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		return nil, fmt.Errorf("jwt: validate claims: %w", err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, fmt.Errorf("jwt: token has no subject")
	}

	return &SessionClaims{UserID: subject, Email: claims.Email}, nil
}
