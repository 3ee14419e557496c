package auth

import (
	"fmt"
	"time"

	"github.com/redmonkez12/taskauth/internal/config"
)

// TokenClaims is the verified content of an access token. Email is carried for
// convenience only; the user record is authoritative.
type TokenClaims struct {
	UserID    int64
	Email     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier checks a bearer token. Errors are ErrTokenExpired,
// ErrTokenInvalid or ErrTokenMissingFields.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// TokenService creates and verifies access tokens.
// Implementations are JWTService (HS256/384/512) and PasetoService (v4.local).
type TokenService interface {
	TokenVerifier
	CreateToken(userID int64, email string, duration time.Duration) (string, error)
}

type tokenOptions struct {
	now func() time.Time
}

// TokenOption configures a token service.
type TokenOption func(*tokenOptions)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(o *tokenOptions) {
		o.now = now
	}
}

func buildTokenOptions(opts []TokenOption) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTokenService picks the implementation for cfg.Algorithm.
func NewTokenService(cfg config.AuthConfig, opts ...TokenOption) (TokenService, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	switch cfg.Algorithm {
	case config.AlgorithmPasetoLocal:
		return NewPasetoService([]byte(cfg.Secret), opts...)
	case config.AlgorithmHS256, config.AlgorithmHS384, config.AlgorithmHS512, "":
		alg := cfg.Algorithm
		if alg == "" {
			alg = config.AlgorithmHS256
		}
		return NewJWTService([]byte(cfg.Secret), alg, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
}
