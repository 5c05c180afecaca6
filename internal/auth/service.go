package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/jwt"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/limiter"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo    Repository
	limiter *limiter.DynamicRateLimiter
	logger  logger.Logger
	config  *config.Config
}

func NewService(repo Repository, logger logger.Logger, config *config.Config) (*Service, error) {
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &Service{
		repo: repo,
		// Brute force protection for login attempts.
		limiter: limiter.NewDynamicRateLimiter(time.Second, 10),
		logger:  logger,
		config:  config,
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Registration (POST /api/v1/user/register).
func (s *Service) Register(w http.ResponseWriter, r *http.Request, params RegisterParams) {
	if !params.Language.Valid() {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: language %q", errs.ErrInvalidRequest, params.Language))
		return
	}
	if !params.Currency.Valid() {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: currency %q", errs.ErrInvalidRequest, params.Currency))
		return
	}

	hashPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	id, err := s.repo.CreateUser(r.Context(), params.Email, string(hashPassword),
		params.Language, params.Currency)
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: email %q already registered", err, params.Email))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	s.setAuthCookie(w, r, id)
}

// Authentication (POST /api/v1/user/login).
func (s *Service) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	if !s.limiter.Allow() {
		ErrorHandlerFunc(w, r, errs.ErrRateLimit)
		return
	}

	u, err := s.repo.GetUserByEmail(r.Context(), params.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: user %q not found",
				errs.ErrInvalidCredentials, params.Email))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("get user %q: %w", params.Email, err))
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(params.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: password", errs.ErrInvalidCredentials))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("compare passwords: %w", err))
		return
	}

	s.setAuthCookie(w, r, u.ID)
}

// Own profile (GET /api/v1/user/profile).
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := json.NewEncoder(w).Encode(u); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Profile update (PATCH /api/v1/user/profile).
func (s *Service) UpdateProfile(w http.ResponseWriter, r *http.Request, params UpdateProfileParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if !params.Language.Valid() {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: language %q", errs.ErrInvalidRequest, params.Language))
		return
	}

	if err := s.repo.UpdateLanguage(r.Context(), u.ID, params.Language); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("update language: %w", err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Authorization middleware.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		authCookie, err := r.Cookie("Authorization")
		if err != nil {
			if errors.Is(err, http.ErrNoCookie) {
				ErrorHandlerFunc(w, r, fmt.Errorf("authorization token: %w", errs.ErrNotFound))
				return
			}
			ErrorHandlerFunc(w, r, fmt.Errorf("authorization token: %w", err))
			return
		}

		userID, err := jwt.GetUserID(authCookie.Value, s.config.JWT.SigningKey)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: parse token: %s", errs.ErrInvalidCredentials, err))
			return
		}

		u, err := s.repo.GetUserByID(r.Context(), userID)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("get user %d: %w", userID, err))
			return
		}

		r = r.WithContext(user.NewContext(r.Context(), u))

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// StaffOnly rejects requests of non-staff users. Must be nested
// inside Middleware.
func (s *Service) StaffOnly(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		u, found := user.FromContext(r.Context())
		if !found || !u.IsStaff {
			ErrorHandlerFunc(w, r, errs.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

func (s *Service) setAuthCookie(w http.ResponseWriter, r *http.Request, userID int) {
	authToken, err := jwt.BuildString(userID, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("build token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "Authorization",
		Value:    authToken,
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusOK)
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request.
	case errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, io.EOF):
		code = http.StatusBadRequest

	// Status Unauthorized.
	case errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized

	// Status Forbidden.
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden

	// Status Conflict.
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict

	// Status Too Many Requests.
	case errors.Is(err, errs.ErrRateLimit):
		code = http.StatusTooManyRequests
	}

	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
