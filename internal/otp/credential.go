package otp

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"streamprime-wallet-go/internal/models"
)

const DefaultCredentialTTL = 7 * 24 * time.Hour

// Claims carried by a login credential
type Claims struct {
	AccountId string `json:"uid"`
	Phone     string `json:"phone"`
	jwt.RegisteredClaims
}

// CredentialIssuer signs and validates HS256 login credentials
type CredentialIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewCredentialIssuer(cfg models.AuthConfig, now func() time.Time) (*CredentialIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := cfg.CredentialTTL
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CredentialIssuer{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      now,
	}, nil
}

// Issue signs a credential for the account valid for the configured TTL
func (c *CredentialIssuer) Issue(account *models.Account) (*models.Credential, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.ttl)

	claims := Claims{
		AccountId: account.Id,
		Phone:     account.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Id,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return &models.Credential{Token: token, AccountId: account.Id, ExpiresAt: expiresAt}, nil
}

// Validate parses a credential and checks its signature, expiry, issuer and
// audience. Any failure is reported as ErrInvalidCredential.
func (c *CredentialIssuer) Validate(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	claims := new(Claims)
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCredential, err)
	}
	if claims.AccountId == "" {
		return nil, fmt.Errorf("%w: missing uid", models.ErrInvalidCredential)
	}
	return claims, nil
}
