package service

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSigningKeyBytes is the minimum decoded key size (256 bits). The key is
// shared out-of-band with the conferencing system, which verifies the tokens.
const minSigningKeyBytes = 32

// TokenIssuer mints short-lived SSO tokens trusted by the external
// conferencing system. It holds no state beyond the signing key; a token is
// a pure function of (key, subject, claims, ttl, now).
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

// NewTokenIssuer decodes and validates the base64-encoded signing key.
func NewTokenIssuer(encodedKey string) (*TokenIssuer, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("meeting signing key is not configured")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode meeting signing key: %w", err)
	}
	if len(key) < minSigningKeyBytes {
		return nil, fmt.Errorf("meeting signing key must decode to at least %d bytes, got %d", minSigningKeyBytes, len(key))
	}
	return &TokenIssuer{key: key, now: time.Now}, nil
}

// Issue returns a compact HS256 token carrying the custom claims plus
// subject, issued-at and expiry. Clock-skew tolerance is the verifier's
// concern, not the issuer's.
func (t *TokenIssuer) Issue(subject string, customClaims map[string]interface{}, ttl time.Duration) (string, error) {
	issuedAt := t.now().UTC()
	claims := jwt.MapClaims{}
	for k, v := range customClaims {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(issuedAt)
	claims["exp"] = jwt.NewNumericDate(issuedAt.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign join token: %w", err)
	}
	return signed, nil
}
