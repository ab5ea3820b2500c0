// Package auth issues and verifies bearer tokens, computes and verifies
// per-request HMAC signatures, and guards against replay via a bounded
// nonce cache.
package auth

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired and ErrTokenInvalid are the two typed verification
// failures a caller needs to distinguish.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the decoded claim set for a verified token.
type Claims struct {
	ClientID string
	IssuedAt time.Time
	ExpireAt time.Time
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	ClientID string `json:"client_id"`
}

// Tokens issues and verifies bearer tokens for a fixed signing secret, TTL,
// and clock-skew leeway.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
}

// NewTokens builds a Tokens issuer/verifier. secret must never be logged.
func NewTokens(secret string, ttl, leeway time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, leeway: leeway}
}

// Issue mints a bearer token for clientID. Returns the opaque token string
// and the TTL in whole seconds, as surfaced in the login response body.
func (t *Tokens) Issue(clientID string) (token string, expiresIn int, err error) {
	now := time.Now()
	exp := now.Add(t.ttl)

	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
		ClientID: clientID,
	}

	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, int(t.ttl.Seconds()), nil
}

// Verify decodes and validates a token string, returning ErrTokenExpired or
// ErrTokenInvalid (wrapped with context) on failure.
func (t *Tokens) Verify(token string) (Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &tokenClaims{}, func(tok *jwtlib.Token) (any, error) {
		if _, ok := tok.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwtlib.WithLeeway(t.leeway))

	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.ClientID == "" {
		return Claims{}, fmt.Errorf("%w: malformed claims", ErrTokenInvalid)
	}

	return Claims{
		ClientID: claims.ClientID,
		IssuedAt: claims.IssuedAt.Time,
		ExpireAt: claims.ExpiresAt.Time,
	}, nil
}
