package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier accepts HS256 bearer tokens whose subject is the principal.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// JWTOption configures a JWTVerifier.
type JWTOption func(*JWTVerifier)

// WithIssuer requires the token's iss claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) { v.issuer = issuer }
}

// WithLeeway tolerates clock skew when checking exp/nbf.
func WithLeeway(d time.Duration) JWTOption {
	return func(v *JWTVerifier) { v.leeway = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) { v.now = now }
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	v := &JWTVerifier{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, principal Principal) error {
	if principal == "" {
		return unauthorized("empty principal")
	}
	creds, ok := CredentialsFrom(ctx)
	if !ok || creds.Token == "" {
		return unauthorized("missing bearer token")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(creds.Token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return unauthorized("invalid token: %v", err)
	}
	if !token.Valid {
		return unauthorized("invalid token")
	}
	if claims.Subject != string(principal) {
		return unauthorized("token subject %q does not match principal %q", claims.Subject, principal)
	}
	return nil
}

// IssueToken signs an HS256 token for principal valid for ttl.
func IssueToken(secret []byte, issuer string, principal Principal, ttl time.Duration, now time.Time) (string, error) {
	if principal == "" {
		return "", errors.New("principal is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   string(principal),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
