// Package auth validates bearer identity tokens against a remote key
// set. The widget works anonymously by default; deployments that front
// an authenticated portal turn verification on and every connection
// must then present a valid id token.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken covers every verification failure: missing, expired,
// malformed, wrong issuer or audience. Callers only need the one
// category; detail goes to logs.
var ErrInvalidToken = errors.New("invalid identity token")

// Claims is the subset of verified token claims the chat core uses.
type Claims struct {
	Subject string
	Email   string
}

// Label returns the sender label for messages authored under these
// claims: the email when present, else the subject.
func (c Claims) Label() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// Verifier validates a raw bearer token and extracts claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}

// JWKSVerifier validates JWTs against a cached remote JWK set.
type JWKSVerifier struct {
	cache    *jwk.Cache
	jwksURL  string
	issuer   string
	audience string
}

// NewJWKSVerifier registers jwksURL with a background-refreshing key
// cache. Issuer is required; audience is enforced when non-empty.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL); err != nil {
		return nil, fmt.Errorf("register jwks url: %w", err)
	}
	// Fetch once up front so a misconfigured URL fails at startup.
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	return &JWKSVerifier{
		cache:    cache,
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Verify parses and validates rawToken. Any failure maps to
// ErrInvalidToken with the cause wrapped for logging.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if rawToken == "" {
		return Claims{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	keySet, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: jwks unavailable: %v", ErrInvalidToken, err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseString(rawToken, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := Claims{Subject: token.Subject()}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	return claims, nil
}
