package radios

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	selfHosted []radio.SelfHosted
	hosted     []radio.Hosted
	mu         sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetSelfHostedByUser(_ context.Context, userID int) ([]*radio.SelfHosted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*radio.SelfHosted, 0)
	for i := range m.selfHosted {
		if m.selfHosted[i].UserID == userID && m.selfHosted[i].Status != radio.BeingDeleted {
			sh := m.selfHosted[i]
			items = append(items, &sh)
		}
	}
	return items, nil
}

func (m *mockRepository) GetSelfHosted(_ context.Context, id int) (*radio.SelfHosted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.selfHosted {
		if m.selfHosted[i].ID == id {
			sh := m.selfHosted[i]
			return &sh, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) CreateSelfHosted(_ context.Context, sh *radio.SelfHosted) (*radio.SelfHosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.selfHosted {
		if m.selfHosted[i].IP == sh.IP {
			return nil, errs.ErrDataConflict
		}
	}
	sh.ID = len(m.selfHosted) + 1
	sh.CreatedAt = time.Now()
	m.selfHosted = append(m.selfHosted, *sh)
	return sh, nil
}

func (m *mockRepository) UpdateSelfHosted(_ context.Context, sh *radio.SelfHosted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.selfHosted {
		if m.selfHosted[i].ID == sh.ID {
			m.selfHosted[i] = *sh
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) SetSelfHostedStatus(_ context.Context, id int, status radio.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.selfHosted {
		if m.selfHosted[i].ID == id {
			m.selfHosted[i].Status = status
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) GetHostedByUser(_ context.Context, userID int) ([]*radio.Hosted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*radio.Hosted, 0)
	for i := range m.hosted {
		if m.hosted[i].UserID == userID && m.hosted[i].Status != radio.BeingDeleted {
			h := m.hosted[i]
			items = append(items, &h)
		}
	}
	return items, nil
}

func (m *mockRepository) GetHosted(_ context.Context, id int) (*radio.Hosted, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.hosted {
		if m.hosted[i].ID == id {
			h := m.hosted[i]
			return &h, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) CreateHosted(_ context.Context, h *radio.Hosted) (*radio.Hosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.hosted {
		if m.hosted[i].Login == h.Login {
			return nil, errs.ErrDataConflict
		}
	}
	h.ID = len(m.hosted) + 1
	h.CreatedAt = time.Now()
	m.hosted = append(m.hosted, *h)
	return h, nil
}

func (m *mockRepository) SetHostedStatus(_ context.Context, id int, status radio.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.hosted {
		if m.hosted[i].ID == id {
			m.hosted[i].Status = status
			return nil
		}
	}
	return errs.ErrNotFound
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()

	s, err := NewService(repo, logger.NewWithZap(zap.L()))
	require.NoError(t, err)

	return s
}

func asUser(r *http.Request, id int) *http.Request {
	return r.WithContext(user.NewContext(r.Context(), &user.User{ID: id}))
}

func TestCreateSelfHosted(t *testing.T) {
	repo := new(mockRepository)
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	r := asUser(httptest.NewRequest(http.MethodPost, "/selfhosted", nil), 1)

	s.CreateSelfHosted(w, r, CreateSelfHostedParams{
		IP:       "203.0.113.10",
		Domain:   "radio.example.com",
		Channels: 3,
	})

	res := w.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got radio.SelfHosted
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, radio.Pending, got.Status)
	assert.Equal(t, 1, got.UserID)
}

func TestCreateSelfHosted_DuplicateIP(t *testing.T) {
	repo := &mockRepository{selfHosted: []radio.SelfHosted{{
		ID: 1, UserID: 2, IP: "203.0.113.10",
	}}}
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	s.CreateSelfHosted(w, asUser(httptest.NewRequest(http.MethodPost, "/selfhosted", nil), 1),
		CreateSelfHostedParams{IP: "203.0.113.10"})

	assert.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestGetSelfHosted_OwnerScoped(t *testing.T) {
	repo := &mockRepository{selfHosted: []radio.SelfHosted{{
		ID: 1, UserID: 1, IP: "203.0.113.10", Status: radio.Ready,
	}}}
	s := newTestService(t, repo)

	t.Run("owner", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetSelfHosted(w, asUser(httptest.NewRequest(http.MethodGet, "/selfhosted/1", nil), 1), 1)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	})

	// Foreign instances read as not found so ids cannot be probed.
	t.Run("other user", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetSelfHosted(w, asUser(httptest.NewRequest(http.MethodGet, "/selfhosted/1", nil), 2), 1)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetSelfHosted(w, asUser(httptest.NewRequest(http.MethodGet, "/selfhosted/42", nil), 1), 42)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})
}

func TestUpdateSelfHosted(t *testing.T) {
	repo := &mockRepository{selfHosted: []radio.SelfHosted{{
		ID: 1, UserID: 1, IP: "203.0.113.10", Channels: 3, Status: radio.Ready,
	}}}
	s := newTestService(t, repo)

	channels := 8
	unbranded := true

	w := httptest.NewRecorder()
	s.UpdateSelfHosted(w, asUser(httptest.NewRequest(http.MethodPatch, "/selfhosted/1", nil), 1), 1,
		UpdateSelfHostedParams{Channels: &channels, Unbranded: &unbranded})

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	got, err := repo.GetSelfHosted(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Channels)
	assert.True(t, got.Unbranded)
	// Untouched fields survive a partial update.
	assert.Equal(t, "203.0.113.10", got.IP)
}

func TestDeleteSelfHosted(t *testing.T) {
	repo := &mockRepository{selfHosted: []radio.SelfHosted{{
		ID: 1, UserID: 1, IP: "203.0.113.10", Status: radio.Ready,
	}}}
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	s.DeleteSelfHosted(w, asUser(httptest.NewRequest(http.MethodDelete, "/selfhosted/1", nil), 1), 1)

	require.Equal(t, http.StatusNoContent, w.Result().StatusCode)

	got, err := repo.GetSelfHosted(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, radio.BeingDeleted, got.Status)

	// Deleted instances disappear from the listing.
	items, err := repo.GetSelfHostedByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateHosted(t *testing.T) {
	repo := new(mockRepository)
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	s.CreateHosted(w, asUser(httptest.NewRequest(http.MethodPost, "/hosted", nil), 1),
		CreateHostedParams{Login: "jazzfm"})

	res := w.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got radio.Hosted
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, radio.BeingCreated, got.Status)

	w = httptest.NewRecorder()
	s.CreateHosted(w, asUser(httptest.NewRequest(http.MethodPost, "/hosted", nil), 2),
		CreateHostedParams{Login: "jazzfm"})
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestListHostedServices(t *testing.T) {
	repo := &mockRepository{hosted: []radio.Hosted{{
		ID: 1, UserID: 1, Login: "jazzfm", Status: radio.Ready,
		Services: []radio.Service{
			{ID: 1, HostedID: 1, Type: radio.ServiceStream},
			{ID: 2, HostedID: 1, Type: radio.ServiceDisk, DiskQuotaGB: 5},
		},
	}}}
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	s.ListHostedServices(w, asUser(httptest.NewRequest(http.MethodGet, "/hosted/1/services", nil), 1), 1)

	res := w.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []radio.Service
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Len(t, got, 2)

	w = httptest.NewRecorder()
	s.ListHostedServices(w, asUser(httptest.NewRequest(http.MethodGet, "/hosted/1/services", nil), 2), 1)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestUnauthenticated(t *testing.T) {
	s := newTestService(t, new(mockRepository))

	w := httptest.NewRecorder()
	s.ListSelfHosted(w, httptest.NewRequest(http.MethodGet, "/selfhosted", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}
