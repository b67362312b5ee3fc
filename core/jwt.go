package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims wraps an arbitrary payload T inside the registered JWT claim
// set, mirroring the teacher's core.JWTClaims[T] used for proxy link tokens.
type JWTClaims[T any] struct {
	jwt.RegisteredClaims
	Data *T `json:"data"`
}

// CreateJWT signs claims with an HMAC key derived from secret.
func CreateJWT[T any](secret string, claims JWTClaims[T]) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

var ErrInvalidToken = errors.New("invalid token")

// ParseJWT parses and validates a token, resolving the signing key via
// keyFunc (which typically looks up a per-subject secret, as the teacher
// does to resolve a per-user password before verifying the signature).
func ParseJWT[T any](keyFunc func(t *jwt.Token) (any, error), tokenString string, claims *JWTClaims[T]) (*jwt.Token, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// ExpiresAt is a small helper for building a RegisteredClaims.ExpiresAt
// only when a non-zero duration is requested.
func ExpiresAt(ttl time.Duration) *jwt.NumericDate {
	if ttl <= 0 {
		return nil
	}
	return jwt.NewNumericDate(time.Now().Add(ttl))
}
