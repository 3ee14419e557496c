package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/redmonkez12/taskauth/internal/audit"
	"github.com/redmonkez12/taskauth/internal/httputil"
	"github.com/redmonkez12/taskauth/internal/logging"
	"github.com/redmonkez12/taskauth/internal/user"
)

const invalidCredentialsMessage = "Invalid email or password"

// maxRequestBodyBytes caps JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// RateLimiter counts requests per purpose and client IP.
type RateLimiter interface {
	Allow(ctx context.Context, purpose, ip string) (bool, error)
}

// AuditLister reads a user's own audit entries.
type AuditLister interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]audit.Entry, error)
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	audits      AuditLister
	rateLimiter RateLimiter
	validate    *validator.Validate
}

// NewHandler wires the handlers. rateLimiter may be nil to disable limiting.
func NewHandler(service *Service, audits AuditLister, rateLimiter RateLimiter) *Handler {
	return &Handler{
		service:     service,
		audits:      audits,
		rateLimiter: rateLimiter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// TokenResponse is returned by register and login
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// ErrorResponse represents an error response
type ErrorResponse = httputil.ErrorResponse

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration credentials"
// @Success      201 {object} TokenResponse
// @Failure      400 {object} ErrorResponse "Invalid input or email already registered"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, "register") {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	req.Email = user.NormalizeEmail(req.Email)
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.validate.Struct(req); err != nil {
		msg := validationMessage(err)
		logger.Warn("registration failed: validation error", "error", msg)
		httputil.RespondErrorWithCode(w, msg, httputil.CodeInvalidInput, http.StatusBadRequest)
		return
	}

	newUser, err := h.service.Register(r.Context(), RegisterInput{Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			httputil.RespondErrorWithCode(w, "Email already registered", httputil.CodeEmailAlreadyExists, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidInput):
			logger.Warn("registration failed: validation error", "error", err.Error())
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidInput, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.respondWithToken(w, logger, newUser, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} TokenResponse
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      401 {object} ErrorResponse "Invalid email or password"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, "login") {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": user.NormalizeEmail(req.Email)})

	authenticated, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, invalidCredentialsMessage, httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	h.respondWithToken(w, logger, authenticated, http.StatusOK)
}

// Me returns the authenticated user
// @Summary      Current user
// @Description  Return the user that owns the bearer token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResponse
// @Failure      401 {object} ErrorResponse "Unauthorized"
// @Router       /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, newUserResponse(current), http.StatusOK)
}

// Logs returns the caller's own audit trail, newest first
// @Summary      Audit log
// @Description  List security events recorded for the authenticated user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Maximum number of entries (1-100)"
// @Success      200 {array} audit.Entry
// @Failure      400 {object} ErrorResponse "Invalid limit"
// @Failure      401 {object} ErrorResponse "Unauthorized"
// @Router       /api/auth/logs [get]
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "Could not validate credentials", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}

	limit := audit.MaxListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > audit.MaxListLimit {
			httputil.RespondErrorWithCode(w, "limit must be between 1 and 100", httputil.CodeInvalidInput, http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.audits.ListByUser(r.Context(), current.ID, limit)
	if err != nil {
		logger.Error("failed to list audit entries", "error", err.Error(), "user_id", current.ID)
		httputil.RespondErrorWithCode(w, "failed to list audit entries", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, entries, http.StatusOK)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, logger *logging.Logger, u *user.User, status int) {
	token, err := h.service.CreateAccessToken(u.ID, u.Email)
	if err != nil {
		logger.Error("failed to create access token", "error", err.Error(), "user_id", u.ID)
		httputil.RespondErrorWithCode(w, "failed to create access token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        newUserResponse(u),
	}, status)
}

// allow applies the per-IP rate limit. A limiter error lets the request
// through so Redis outages do not block logins.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, logger *logging.Logger, purpose string) bool {
	if h.rateLimiter == nil {
		return true
	}

	ip := clientIP(r)
	ok, err := h.rateLimiter.Allow(r.Context(), purpose, ip)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return true
	}
	if !ok {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	return true
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware has
// already rewritten from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Email":
		if fe.Tag() == "required" {
			return ErrEmailRequired.Error()
		}
		return ErrInvalidEmailFormat.Error()
	case "Password":
		return ErrPasswordRequired.Error()
	default:
		return "invalid request"
	}
}
