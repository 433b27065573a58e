// Package token issues and verifies signed access tokens.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/config"
)

const TokenType = "bearer"

var ErrMissingSecret = errors.New("auth: SECRET_KEY is required")

// Issuer signs HMAC access tokens carrying the user id as subject.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
}

// NewIssuer builds an issuer from config. Only the HS* family is accepted.
func NewIssuer(cfg config.Config) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = "development-secret-change-me"
	}
	method, err := signingMethod(cfg.AuthJWTAlgorithm)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.AccessTokenExpireMins) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{secret: []byte(secret), method: method, ttl: ttl}, nil
}

// Issue returns a signed token for the user valid from now until now+ttl.
func (i *Issuer) Issue(userID snowflake.ID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the subject user id.
func (i *Issuer) Parse(raw string) (snowflake.ID, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{i.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, domain.ErrTokenExpired
		}
		return 0, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, domain.ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, domain.ErrInvalidToken
	}
	id, err := snowflake.ParseString(sub)
	if err != nil {
		return 0, domain.ErrInvalidToken
	}
	return id, nil
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", alg)
	}
}
