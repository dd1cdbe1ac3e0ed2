package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// TokenBytes is the entropy of a session token: 256 bits.
const TokenBytes = 32

// NewOpaqueToken returns a random URL-safe bearer token.
func NewOpaqueToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
