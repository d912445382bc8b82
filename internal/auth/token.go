// Package auth verifies bearer credentials for admin endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the role claim required on admin tokens
const RoleAdmin = "admin"

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrForbiddenRole    = errors.New("token does not grant admin access")
	ErrNoSecret         = errors.New("admin secret is not configured")
)

type adminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Verifier accepts either the raw admin secret or an HS256 token signed with
// it that carries the admin role.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Mint signs an admin token valid for ttl
func (v *Verifier) Mint(subject string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrNoSecret
	}

	now := v.now()
	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks a bearer credential
func (v *Verifier) Verify(token string) error {
	if !v.Enabled() {
		return ErrNoSecret
	}
	if token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), v.secret) == 1 {
		return nil
	}

	parsed, err := jwt.ParseWithClaims(token, &adminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrInvalidSignature
		}
		return ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*adminClaims)
	if !ok || !parsed.Valid {
		return ErrInvalidToken
	}
	if claims.Role != RoleAdmin {
		return ErrForbiddenRole
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
