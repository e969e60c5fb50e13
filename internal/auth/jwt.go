// Package auth issues and verifies the bearer tokens used by the API and
// hashes account passwords.
//
// TWO KINDS OF TOKEN:
// The server runs two TokenService instances with different secrets and
// audiences:
//
//	access:  returned by /auth/login, sent as "Authorization: Bearer ...",
//	          30 minutes, audience "access"
//	reset:   returned by /auth/forgot-password, consumed by
//	          /auth/reset-password, 15 minutes, audience "password-reset"
//
// A token of one kind never validates as the other: the signature fails
// (different secret) and so does the audience check.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"a@x.com","jti":"...","aud":["access"],"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The subject is the user's e-mail. The jti (token ID) is what logout and
// password reset put on the denylist, since a JWT cannot be "deleted".
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "sprintium"

const (
	AudienceAccess = "access"
	AudienceReset  = "password-reset"
)

// ErrTokenExpired is returned by Validate for a well-formed token whose
// exp is in the past.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation for one audience.
type TokenService struct {
	secret   []byte
	audience string
	ttl      time.Duration
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTTL sets the lifetime of generated tokens.
func WithTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.ttl = d }
}

// WithAudience sets the audience written into and required from tokens.
func WithAudience(aud string) TokenOption {
	return func(s *TokenService) { s.audience = aud }
}

// NewTokenService creates a TokenService with the given secret.
// Defaults: audience "access", 30 minute lifetime.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:   []byte(secret),
		audience: AudienceAccess,
		ttl:      30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return s, nil
}

// TTL is the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Claims is what a validated token tells the caller.
type Claims struct {
	Subject   string // user e-mail
	TokenID   string // jti, the denylist key
	ExpiresAt time.Time
}

// Generate creates and signs a token for subject with the service's TTL.
func (s *TokenService) Generate(subject string) (string, error) {
	return s.GenerateWithDuration(subject, s.ttl)
}

// GenerateWithDuration creates a token with a custom lifetime.
// Negative durations produce already-expired tokens (useful in tests).
func (s *TokenService) GenerateWithDuration(subject string, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and carries an exp at all
//   - Issuer is "sprintium" and audience matches this service
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if rc.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if rc.ID == "" {
		return nil, fmt.Errorf("auth: token has no id")
	}

	return &Claims{
		Subject:   rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
