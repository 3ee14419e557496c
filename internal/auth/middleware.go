package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/redmonkez12/taskauth/internal/httputil"
	"github.com/redmonkez12/taskauth/internal/logging"
	"github.com/redmonkez12/taskauth/internal/user"
)

type contextKey string

const userContextKey contextKey = "current_user"

// Middleware handles authentication for protected routes
type Middleware struct {
	tokens TokenVerifier
	users  UserLookup
}

func NewMiddleware(tokens TokenVerifier, users UserLookup) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// RequireAuth resolves the bearer token to a user and stores it in the
// request context. Every credential failure is a plain 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		token := ExtractBearerToken(r.Header.Get("Authorization"))

		current, err := ResolveCurrentUser(r.Context(), m.tokens, m.users, token)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				logger.Warn("authentication rejected", "reason", err.Error())
				w.Header().Set("WWW-Authenticate", "Bearer")
				httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeUnauthenticated, http.StatusUnauthorized)
				return
			}
			logger.Error("failed to resolve current user", "error", err.Error())
			httputil.RespondErrorWithCode(w, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), current)))
	})
}

// ContextWithUser returns a copy of ctx carrying the authenticated user.
func ContextWithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext extracts the authenticated user from the request context
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok && u != nil
}
