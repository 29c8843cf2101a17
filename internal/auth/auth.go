package auth

import (
	"errors"

	"tbnt/backend/pkg/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier turns a bearer token into the username it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify returns the token subject, or ErrInvalidToken.
func (v *JWTVerifier) Verify(token string) (string, error) {
	sub, err := jwt.ParseSubject(v.secret, token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}
