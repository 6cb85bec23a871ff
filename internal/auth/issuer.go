package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/tapinapp/beacon/internal/platform/errors"
)

const defaultCustomTokenTTL = 5 * time.Minute

// issuerEnv holds raw env values before post-parse validation.
type issuerEnv struct {
	Issuer     string        `env:"BEACON_CUSTOM_TOKEN_ISSUER"`
	PrivateKey string        `env:"BEACON_CUSTOM_TOKEN_PRIVATE_KEY"`
	TTL        time.Duration `env:"BEACON_CUSTOM_TOKEN_TTL"`
}

// IssuerConfig defines how one-time custom tokens are signed.
type IssuerConfig struct {
	Issuer string
	Key    ed25519.PrivateKey
	TTL    time.Duration
	Now    func() time.Time
}

// Issuer signs short-lived custom tokens recipients use to fetch their
// pending data after a push notification wakes the client.
type Issuer struct {
	cfg IssuerConfig
}

// customTokenClaims is the internal claims type for signed custom tokens.
type customTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// LoadIssuerConfigFromEnv reads custom-token signing configuration.
func LoadIssuerConfigFromEnv(now func() time.Time) (IssuerConfig, error) {
	var raw issuerEnv
	if err := env.Parse(&raw); err != nil {
		return IssuerConfig{}, fmt.Errorf("parse issuer env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return IssuerConfig{}, fmt.Errorf("BEACON_CUSTOM_TOKEN_ISSUER is required")
	}
	if privateKey == "" {
		return IssuerConfig{}, fmt.Errorf("BEACON_CUSTOM_TOKEN_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return IssuerConfig{}, fmt.Errorf("decode custom token private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return IssuerConfig{}, fmt.Errorf("custom token private key must be %d bytes", ed25519.PrivateKeySize)
	}
	ttl := raw.TTL
	if ttl <= 0 {
		ttl = defaultCustomTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return IssuerConfig{
		Issuer: issuer,
		Key:    ed25519.PrivateKey(keyBytes),
		TTL:    ttl,
		Now:    now,
	}, nil
}

// NewIssuer constructs a custom-token issuer from validated configuration.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer name is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, errors.New("issuer signing key is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCustomTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// IssueCustomToken signs a one-time token for the recipient identified by
// identityID. The email claim lets the client exchange the token for its
// account without a full sign-in round trip.
func (i *Issuer) IssueCustomToken(ctx context.Context, identityID string, email string) (string, error) {
	if i == nil {
		return "", errors.New("issuer is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return "", apperrors.New(apperrors.CodeCustomTokenIssueFailed, "recipient identity id is required")
	}

	now := i.cfg.Now().UTC()
	claims := customTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   identityID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
		Email: strings.TrimSpace(email),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(i.cfg.Key)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeCustomTokenIssueFailed, "sign custom token", err)
	}
	return signed, nil
}
