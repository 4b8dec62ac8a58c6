package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"panacea/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenEmpty    = errors.New("token is empty")
	ErrNotConfigured = errors.New("jwt secret not configured")
	ErrMissingUserID = errors.New("token claims missing user id")
)

// tokenClaims: userId es el claim que emite el login; sub se acepta como fallback.
type tokenClaims struct {
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// Verifier implementa auth.AuthVerifier con tokens HS256 firmados con un secreto compartido.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

var _ auth.AuthVerifier = (*Verifier)(nil)

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	var c tokenClaims
	if _, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}

	uid := strings.TrimSpace(c.UserID)
	if uid == "" {
		uid = strings.TrimSpace(c.Subject)
	}
	if uid == "" {
		return auth.Claims{}, ErrMissingUserID
	}

	return auth.Claims{
		UserID:   uid,
		Email:    c.Email,
		TenantID: c.TenantID,
	}, nil
}

// Issue firma un token para userID. Lo usan los tests y herramientas de dev.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrNotConfigured
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.secret)
}
