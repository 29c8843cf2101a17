package jwt

import (
	"errors"
	"testing"
	"time"

	"tbnt/backend/pkg/jwt/jwttest"

	"github.com/golang-jwt/jwt/v5"
)

func TestParseSubject(t *testing.T) {
	secret := []byte("s3cret")

	token := jwttest.Sign(t, secret, "alice", time.Hour)

	sub, err := ParseSubject(secret, token)
	if err != nil {
		t.Fatalf("ParseSubject: %v", err)
	}
	if sub != "alice" {
		t.Errorf("subject = %q, want alice", sub)
	}
}

func TestParseSubject_Rejects(t *testing.T) {
	secret := []byte("s3cret")

	expired := jwttest.Sign(t, secret, "alice", -time.Minute)
	otherKey := jwttest.Sign(t, []byte("other"), "alice", time.Hour)
	noSubject := jwttest.Sign(t, secret, "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":     "not-a-token",
		"expired":     expired,
		"wrong key":   otherKey,
		"no subject":  noSubject,
		"alg none":    none,
		"empty token": "",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSubject(secret, token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ParseSubject error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
