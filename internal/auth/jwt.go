package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues HMAC-signed JWTs.
type JWTService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

func NewJWTService(secret []byte, algorithm string, opts ...TokenOption) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}

	o := buildTokenOptions(opts)

	return &JWTService{
		secret: secret,
		method: method,
		now:    o.now,
	}, nil
}

// CreateToken signs a token for the user valid for duration from now.
func (s *JWTService) CreateToken(userID int64, email string, duration time.Duration) (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(s.method, jwtClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the claims.
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	claims := &jwtClaims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Subject == "" || claims.Email == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrTokenMissingFields
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}

	return &TokenClaims{
		UserID:    userID,
		Email:     claims.Email,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
