package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/velora-dev/velora/internal/app/domain/user"
)

// DefaultTokenTTL is the token lifetime when the issuer is built without one.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the verified content of a bearer token.
type Claims struct {
	UserID   int64    `json:"uid"`
	Username string   `json:"name"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies bearer tokens with a shared HMAC key. Decode
// is pure: it never consults a store, so issued tokens cannot be revoked
// before expiry.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
}

// NewTokenIssuer builds an issuer; a non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{key: key, ttl: ttl}
}

// Issue signs a token carrying the user's id, username and full current role
// list.
func (t *TokenIssuer) Issue(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Roles:    u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the claims.
func (t *TokenIssuer) Decode(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
