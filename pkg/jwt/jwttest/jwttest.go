// Package jwttest signs tokens for tests. The server only verifies tokens;
// issuing them belongs to the account service.
package jwttest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sign returns an HS256 token for username that expires after ttl. A
// negative ttl yields an already expired token.
func Sign(t testing.TB, secret []byte, username string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token for %q: %v", username, err)
	}
	return token
}
