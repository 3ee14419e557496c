package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskauth/internal/audit"
	"github.com/redmonkez12/taskauth/internal/logging"
	"github.com/redmonkez12/taskauth/internal/user"
)

// Password policy, counted in characters.
const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// emailRule is the validator rule for a normalized email. Request structs
// carry the same rule in their tags.
const emailRule = "email,max=254"

// Auditor appends audit entries.
type Auditor interface {
	Record(ctx context.Context, userID int64, action audit.Action, details *string) error
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
}

// Service handles registration, authentication and token issuance.
type Service struct {
	db            bun.IDB
	users         *user.Repository
	hasher        *PasswordHasher
	tokens        TokenService
	auditor       Auditor
	logger        *logging.Logger
	validate      *validator.Validate
	tokenDuration time.Duration
}

// NewService builds a Service over db, which may be a *bun.DB or a bun.Tx.
func NewService(
	db bun.IDB,
	hasher *PasswordHasher,
	tokens TokenService,
	auditor Auditor,
	logger *logging.Logger,
	tokenDuration time.Duration,
) *Service {
	return &Service{
		db:            db,
		users:         user.NewRepository(db),
		hasher:        hasher,
		tokens:        tokens,
		auditor:       auditor,
		logger:        logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		tokenDuration: tokenDuration,
	}
}

// Register validates input, hashes the password and stores a new user.
// Hashing happens before the insert transaction is opened.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	email := user.NormalizeEmail(in.Email)
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, storageError(err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var created *user.User
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		u, err := user.NewRepository(tx).Create(ctx, email, passwordHash)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		// the unique index settles concurrent registrations of one email
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, storageError(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID)
	_ = s.auditor.Record(ctx, created.ID, audit.ActionUserRegistered, nil)

	return created, nil
}

// Authenticate returns the user for a matching email and password. Unknown
// email and wrong password both yield ErrAuthenticationFailed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			s.logger.DebugContext(ctx, "authentication failed", "reason", "unknown email")
			return nil, ErrAuthenticationFailed
		}
		return nil, storageError(err)
	}

	if !s.hasher.Verify(existing.PasswordHash, password) {
		s.logger.DebugContext(ctx, "authentication failed", "reason", "wrong password", "user_id", existing.ID)
		_ = s.auditor.Record(ctx, existing.ID, audit.ActionLoginFailed, audit.Details("wrong password"))
		return nil, ErrAuthenticationFailed
	}

	_ = s.auditor.Record(ctx, existing.ID, audit.ActionLoginSucceeded, nil)

	return existing, nil
}

// CreateAccessToken issues a bearer token for the user.
func (s *Service) CreateAccessToken(userID int64, email string) (string, error) {
	return s.tokens.CreateToken(userID, email, s.tokenDuration)
}

// VerifyAccessToken checks a bearer token and returns its claims.
func (s *Service) VerifyAccessToken(token string) (*TokenClaims, error) {
	return s.tokens.VerifyToken(token)
}

func (s *Service) validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if err := s.validate.Var(email, emailRule); err != nil {
		return ErrInvalidEmailFormat
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return ErrPasswordTooShort
	}
	if n > maxPasswordLength {
		return ErrPasswordTooLong
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrPasswordTooWeak
	}

	return nil
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
