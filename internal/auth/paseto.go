package auth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const pasetoKeyInfo = "taskauth access token v4.local"

// PasetoService issues PASETO v4.local tokens (XChaCha20-Poly1305). The
// 32-byte key is derived from the configured secret with HKDF-SHA256.
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	now          func() time.Time
}

func NewPasetoService(secret []byte, opts ...TokenOption) (*PasetoService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	keyBytes := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(pasetoKeyInfo)), keyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive symmetric key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	o := buildTokenOptions(opts)

	return &PasetoService{
		symmetricKey: key,
		now:          o.now,
	}, nil
}

// CreateToken encrypts a token for the user valid for duration from now.
func (s *PasetoService) CreateToken(userID int64, email string, duration time.Duration) (string, error) {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(duration))
	token.SetSubject(strconv.FormatInt(userID, 10))
	token.SetJti(uuid.NewString())
	token.SetString("email", email)

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyToken decrypts the token and checks expiry against the service clock.
func (s *PasetoService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	// expiry is checked below so it can be reported separately
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrTokenMissingFields
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrTokenExpired
	}

	subject, err := token.GetSubject()
	if err != nil {
		return nil, ErrTokenMissingFields
	}
	email, err := token.GetString("email")
	if err != nil || email == "" {
		return nil, ErrTokenMissingFields
	}
	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrTokenMissingFields
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: malformed subject", ErrTokenInvalid)
	}

	// jti is optional
	tokenID, _ := token.GetJti()

	return &TokenClaims{
		UserID:    userID,
		Email:     email,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
