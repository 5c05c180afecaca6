package radios

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
)

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}

	return &Service{repo: repo, logger: logger}, nil
}

var _ ServerInterface = (*Service)(nil)

// Self-hosted radio servers (GET /api/v1/radios/selfhosted).
func (s *Service) ListSelfHosted(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	items, err := s.repo.GetSelfHostedByUser(r.Context(), u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list self-hosted radios: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(items); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// New self-hosted radio server (POST /api/v1/radios/selfhosted).
// The instance starts out pending until the control plane verifies it.
func (s *Service) CreateSelfHosted(w http.ResponseWriter, r *http.Request, params CreateSelfHostedParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if params.Channels < 0 {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: channels must not be negative", errs.ErrInvalidRequest))
		return
	}

	sh := &radio.SelfHosted{
		UserID:    u.ID,
		IP:        params.IP,
		Domain:    params.Domain,
		Channels:  params.Channels,
		Unbranded: params.Unbranded,
		Status:    radio.Pending,
	}

	created, err := s.repo.CreateSelfHosted(r.Context(), sh)
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: server %q already registered", err, params.IP))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("create self-hosted radio: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(created); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Single self-hosted server (GET /api/v1/radios/selfhosted/{id}).
func (s *Service) GetSelfHosted(w http.ResponseWriter, r *http.Request, id int) {
	sh, ok := s.ownSelfHosted(w, r, id)
	if !ok {
		return
	}

	if err := json.NewEncoder(w).Encode(sh); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Self-hosted server update (PATCH /api/v1/radios/selfhosted/{id}).
func (s *Service) UpdateSelfHosted(w http.ResponseWriter, r *http.Request, id int, params UpdateSelfHostedParams) {
	sh, ok := s.ownSelfHosted(w, r, id)
	if !ok {
		return
	}

	if params.Domain != nil {
		sh.Domain = *params.Domain
	}
	if params.Channels != nil {
		if *params.Channels < 0 {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: channels must not be negative", errs.ErrInvalidRequest))
			return
		}
		sh.Channels = *params.Channels
	}
	if params.Unbranded != nil {
		sh.Unbranded = *params.Unbranded
	}

	if err := s.repo.UpdateSelfHosted(r.Context(), sh); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("update self-hosted radio %d: %w", id, err))
		return
	}

	if err := json.NewEncoder(w).Encode(sh); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Self-hosted server removal (DELETE /api/v1/radios/selfhosted/{id}).
// Marks the instance for teardown; billing ignores it from that moment.
func (s *Service) DeleteSelfHosted(w http.ResponseWriter, r *http.Request, id int) {
	if _, ok := s.ownSelfHosted(w, r, id); !ok {
		return
	}

	if err := s.repo.SetSelfHostedStatus(r.Context(), id, radio.BeingDeleted); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("delete self-hosted radio %d: %w", id, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Hosted radios (GET /api/v1/radios/hosted).
func (s *Service) ListHosted(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	items, err := s.repo.GetHostedByUser(r.Context(), u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list hosted radios: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(items); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// New hosted radio (POST /api/v1/radios/hosted). Provisioning is
// asynchronous: the radio is created in the being_created state.
func (s *Service) CreateHosted(w http.ResponseWriter, r *http.Request, params CreateHostedParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	h := &radio.Hosted{
		UserID: u.ID,
		Login:  params.Login,
		IsDemo: params.IsDemo,
		Status: radio.BeingCreated,
	}

	created, err := s.repo.CreateHosted(r.Context(), h)
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: login %q already taken", err, params.Login))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("create hosted radio: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(created); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Single hosted radio (GET /api/v1/radios/hosted/{id}).
func (s *Service) GetHosted(w http.ResponseWriter, r *http.Request, id int) {
	h, ok := s.ownHosted(w, r, id)
	if !ok {
		return
	}

	if err := json.NewEncoder(w).Encode(h); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Hosted radio removal (DELETE /api/v1/radios/hosted/{id}).
func (s *Service) DeleteHosted(w http.ResponseWriter, r *http.Request, id int) {
	if _, ok := s.ownHosted(w, r, id); !ok {
		return
	}

	if err := s.repo.SetHostedStatus(r.Context(), id, radio.BeingDeleted); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("delete hosted radio %d: %w", id, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Service line items (GET /api/v1/radios/hosted/{id}/services).
func (s *Service) ListHostedServices(w http.ResponseWriter, r *http.Request, id int) {
	h, ok := s.ownHosted(w, r, id)
	if !ok {
		return
	}

	if err := json.NewEncoder(w).Encode(h.Services); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// ownSelfHosted loads the instance and verifies ownership. Foreign
// instances read as not found so ids cannot be probed.
func (s *Service) ownSelfHosted(w http.ResponseWriter, r *http.Request, id int) (*radio.SelfHosted, bool) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}

	sh, err := s.repo.GetSelfHosted(r.Context(), id)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("get self-hosted radio %d: %w", id, err))
		return nil, false
	}

	if sh.UserID != u.ID {
		ErrorHandlerFunc(w, r, fmt.Errorf("self-hosted radio %d: %w", id, errs.ErrNotFound))
		return nil, false
	}

	return sh, true
}

func (s *Service) ownHosted(w http.ResponseWriter, r *http.Request, id int) (*radio.Hosted, bool) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}

	h, err := s.repo.GetHosted(r.Context(), id)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("get hosted radio %d: %w", id, err))
		return nil, false
	}

	if h.UserID != u.ID {
		ErrorHandlerFunc(w, r, fmt.Errorf("hosted radio %d: %w", id, errs.ErrNotFound))
		return nil, false
	}

	return h, true
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

	// Status Not Found.
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound

	// Status Conflict.
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict
	}

	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
