package apps

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/mobileapp"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/google/uuid"
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

// Mobile applications (GET /api/v1/apps).
func (s *Service) ListApps(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	apps, err := s.repo.GetAppsByUser(r.Context(), u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list apps: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(apps); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// New application (POST /api/v1/apps). The build pipeline picks the
// configuration up by its public id.
func (s *Service) CreateApp(w http.ResponseWriter, r *http.Request, params CreateAppParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if !params.Platform.Valid() {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: platform %q", errs.ErrInvalidRequest, params.Platform))
		return
	}

	app := &mobileapp.App{
		PublicID:    uuid.NewString(),
		UserID:      u.ID,
		Title:       params.Title,
		Description: params.Description,
		WebsiteURL:  params.WebsiteURL,
		Email:       params.Email,
		Platform:    params.Platform,
		Theme:       params.Theme,
		EnablePush:  params.EnablePush,
		FCMAPIKey:   params.FCMAPIKey,
		Status:      mobileapp.Draft,
		Version:     1,
	}

	created, err := s.repo.CreateApp(r.Context(), app)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("create app: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(created); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Single application (GET /api/v1/apps/{id}).
func (s *Service) GetApp(w http.ResponseWriter, r *http.Request, id int) {
	app, ok := s.ownApp(w, r, id)
	if !ok {
		return
	}

	if err := json.NewEncoder(w).Encode(app); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Application update (PATCH /api/v1/apps/{id}). Any change bumps the
// version so the builder knows to rebuild.
func (s *Service) UpdateApp(w http.ResponseWriter, r *http.Request, id int, params UpdateAppParams) {
	app, ok := s.ownApp(w, r, id)
	if !ok {
		return
	}

	if params.Title != nil {
		app.Title = *params.Title
	}
	if params.Description != nil {
		app.Description = *params.Description
	}
	if params.WebsiteURL != nil {
		app.WebsiteURL = *params.WebsiteURL
	}
	if params.Email != nil {
		app.Email = *params.Email
	}
	if params.Theme != nil {
		app.Theme = *params.Theme
	}
	if params.EnablePush != nil {
		app.EnablePush = *params.EnablePush
	}
	if params.FCMAPIKey != nil {
		app.FCMAPIKey = *params.FCMAPIKey
	}
	if params.CopyrightTitle != nil {
		app.CopyrightTitle = *params.CopyrightTitle
	}
	if params.CopyrightURL != nil {
		app.CopyrightURL = *params.CopyrightURL
	}
	app.Version++

	if err := s.repo.UpdateApp(r.Context(), app); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("update app %d: %w", id, err))
		return
	}

	if err := json.NewEncoder(w).Encode(app); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Application removal (DELETE /api/v1/apps/{id}). Archives the
// configuration rather than dropping it.
func (s *Service) DeleteApp(w http.ResponseWriter, r *http.Request, id int) {
	if _, ok := s.ownApp(w, r, id); !ok {
		return
	}

	if err := s.repo.SetAppStatus(r.Context(), id, mobileapp.Archived); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("archive app %d: %w", id, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) ownApp(w http.ResponseWriter, r *http.Request, id int) (*mobileapp.App, bool) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return nil, false
	}

	app, err := s.repo.GetApp(r.Context(), id)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("get app %d: %w", id, err))
		return nil, false
	}

	if app.UserID != u.ID {
		ErrorHandlerFunc(w, r, fmt.Errorf("app %d: %w", id, errs.ErrNotFound))
		return nil, false
	}

	return app, true
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
