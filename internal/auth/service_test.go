package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	items []user.User
	mu    sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetUserByID(_ context.Context, userID int) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.ID == userID {
			return &item, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.Email == email {
			return &item, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) CreateUser(_ context.Context, email, password string, lang user.Language, cur user.Currency) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxID := 0
	for _, item := range m.items {
		if item.Email == email {
			return -1, errs.ErrDataConflict
		}
		maxID = max(maxID, item.ID)
	}
	m.items = append(m.items, user.User{
		ID:        maxID + 1,
		Email:     email,
		Password:  password,
		Language:  lang,
		Currency:  cur,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	return maxID + 1, nil
}

func (m *mockRepository) UpdateLanguage(_ context.Context, userID int, lang user.Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == userID {
			m.items[i].Language = lang
			return nil
		}
	}
	return errs.ErrNotFound
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWT{
			SigningKey: "test-signing-key",
			Expiration: time.Hour,
		},
		PasswordHashCost: bcrypt.MinCost,
	}
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()

	s, err := NewService(repo, logger.NewWithZap(zap.L()), testConfig())
	require.NoError(t, err)

	return s
}

func TestRegister(t *testing.T) {
	repo := new(mockRepository)
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/register", nil)

	s.Register(w, r, RegisterParams{
		Email:    "dj@example.com",
		Password: "secret",
		Language: user.RU,
		Currency: user.RUB,
	})

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, res.Cookies(), 1)
	assert.Equal(t, "Authorization", res.Cookies()[0].Name)
	assert.True(t, strings.HasPrefix(res.Cookies()[0].Value, "Bearer "))

	u, err := repo.GetUserByEmail(context.Background(), "dj@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.RUB, u.Currency)
	assert.NotEqual(t, "secret", u.Password)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(mockRepository)
	s := newTestService(t, repo)

	params := RegisterParams{
		Email:    "dj@example.com",
		Password: "secret",
		Language: user.EN,
		Currency: user.USD,
	}

	w := httptest.NewRecorder()
	s.Register(w, httptest.NewRequest(http.MethodPost, "/register", nil), params)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	w = httptest.NewRecorder()
	s.Register(w, httptest.NewRequest(http.MethodPost, "/register", nil), params)
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestRegister_InvalidCurrency(t *testing.T) {
	s := newTestService(t, new(mockRepository))

	w := httptest.NewRecorder()
	s.Register(w, httptest.NewRequest(http.MethodPost, "/register", nil), RegisterParams{
		Email:    "dj@example.com",
		Password: "secret",
		Language: user.EN,
		Currency: "BTC",
	})

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockRepository{items: []user.User{{
		ID:       1,
		Email:    "dj@example.com",
		Password: string(hash),
	}}}
	s := newTestService(t, repo)

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{"valid credentials", "dj@example.com", "secret", http.StatusOK},
		{"wrong password", "dj@example.com", "nope", http.StatusUnauthorized},
		{"unknown user", "ghost@example.com", "secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Login(w, httptest.NewRequest(http.MethodPost, "/login", nil), LoginParams{
				Email:    tt.email,
				Password: tt.password,
			})
			assert.Equal(t, tt.want, w.Result().StatusCode)
		})
	}
}

func TestMiddleware(t *testing.T) {
	repo := &mockRepository{items: []user.User{{
		ID:    1,
		Email: "dj@example.com",
	}}}
	s := newTestService(t, repo)

	var gotUser *user.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = user.FromContext(r.Context())
	})

	t.Run("no cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		// Log in to obtain a cookie.
		lw := httptest.NewRecorder()
		s.setAuthCookie(lw, httptest.NewRequest(http.MethodPost, "/login", nil), 1)
		require.Len(t, lw.Result().Cookies(), 1)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(lw.Result().Cookies()[0])

		w := httptest.NewRecorder()
		s.Middleware(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		require.NotNil(t, gotUser)
		assert.Equal(t, 1, gotUser.ID)
	})
}

func TestStaffOnly(t *testing.T) {
	s := newTestService(t, new(mockRepository))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("regular user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(user.NewContext(r.Context(), &user.User{ID: 1}))

		w := httptest.NewRecorder()
		s.StaffOnly(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
	})

	t.Run("staff user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(user.NewContext(r.Context(), &user.User{ID: 1, IsStaff: true}))

		w := httptest.NewRecorder()
		s.StaffOnly(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	})
}
