// Package auth acquires Data Cloud access tokens via the JWT bearer flow.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AssertionConfig holds everything needed to sign a bearer assertion for
// one org.
type AssertionConfig struct {
	// Username is the org user the token is issued for (JWT sub).
	Username string
	// ConsumerKey is the connected app's consumer key (JWT iss).
	ConsumerKey string
	// PrivateKeyPEM is the PEM-encoded RSA key the connected app trusts.
	PrivateKeyPEM []byte
	// Audience is the login URL (JWT aud).
	Audience string
	// Lifetime bounds the assertion's validity (JWT exp).
	Lifetime time.Duration
}

// BuildAssertion signs an RS256 bearer assertion valid for cfg.Lifetime
// from now.
func BuildAssertion(cfg AssertionConfig, now time.Time) (string, error) {
	if cfg.Username == "" || cfg.ConsumerKey == "" {
		return "", fmt.Errorf("username and consumer key are required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	claims := jwt.MapClaims{
		"exp": now.Add(cfg.Lifetime).Unix(),
		"sub": cfg.Username,
		"iss": cfg.ConsumerKey,
		"aud": cfg.Audience,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
