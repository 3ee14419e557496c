package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskauth/internal/config"
	"github.com/redmonkez12/taskauth/internal/user"
)

type stubUsers struct {
	users map[int64]*user.User
	err   error
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer abc.def", "abc.def"},
		{"  Bearer   abc.def  ", "abc.def"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"abc.def", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBearerToken(tt.header), tt.header)
	}
}

func TestResolveCurrentUser(t *testing.T) {
	clock := newClock()
	tokens := newTokenService(t, "secret", config.AlgorithmHS256, clock)
	alice := &user.User{ID: 1, Email: "alice@example.com"}
	users := &stubUsers{users: map[int64]*user.User{1: alice}}
	ctx := context.Background()

	valid, err := tokens.CreateToken(1, alice.Email, week)
	require.NoError(t, err)
	orphan, err := tokens.CreateToken(99, "ghost@example.com", week)
	require.NoError(t, err)
	foreign, err := newTokenService(t, "other", config.AlgorithmHS256, clock).CreateToken(1, alice.Email, week)
	require.NoError(t, err)

	got, err := ResolveCurrentUser(ctx, tokens, users, valid)
	require.NoError(t, err)
	assert.Same(t, alice, got)

	tests := []struct {
		name  string
		token string
		cause error
	}{
		{"missing", "", nil},
		{"garbage", "garbage", ErrTokenInvalid},
		{"wrong secret", foreign, ErrTokenInvalid},
		{"deleted user", orphan, user.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveCurrentUser(ctx, tokens, users, tt.token)
			require.ErrorIs(t, err, ErrUnauthenticated)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}

	clock.Advance(week)
	_, err = ResolveCurrentUser(ctx, tokens, users, valid)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResolveCurrentUser_StorageFailure(t *testing.T) {
	tokens := newTokenService(t, "secret", config.AlgorithmHS256, newClock())
	tok, err := tokens.CreateToken(1, "a@b.com", week)
	require.NoError(t, err)

	_, err = ResolveCurrentUser(context.Background(), tokens, &stubUsers{err: errors.New("db down")}, tok)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestMiddleware_RequireAuth(t *testing.T) {
	tokens := newTokenService(t, "secret", config.AlgorithmHS256, newClock())
	alice := &user.User{ID: 1, Email: "alice@example.com"}
	users := &stubUsers{users: map[int64]*user.User{1: alice}}

	var seen *user.User
	h := NewMiddleware(tokens, users).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, err := tokens.CreateToken(1, alice.Email, week)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Same(t, alice, seen)

	for _, header := range []string{"", "Bearer nope", "Token " + tok} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Could not validate credentials", body["detail"])
	}
}

func TestMiddleware_StorageFailureIs500(t *testing.T) {
	tokens := newTokenService(t, "secret", config.AlgorithmHS256, newClock())
	h := NewMiddleware(tokens, &stubUsers{err: errors.New("db down")}).RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	tok, err := tokens.CreateToken(1, "a@b.com", week)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
