package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redmonkez12/taskauth/internal/user"
)

// UserLookup loads a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// ExtractBearerToken returns the token from an Authorization header value, or
// "" when the header is absent or uses another scheme.
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ResolveCurrentUser verifies rawToken and loads the user it names.
// Credential problems of any kind return an error matching ErrUnauthenticated
// (with the cause wrapped); storage failures are returned unchanged.
// It has no side effects.
func ResolveCurrentUser(ctx context.Context, tokens TokenVerifier, users UserLookup, rawToken string) (*user.User, error) {
	if rawToken == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := tokens.VerifyToken(rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	u, err := users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, storageError(err)
	}

	return u, nil
}
