package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	model "github.com/alexey-v-paramonov/sc-api/internal/models/catalog"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
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

// Public station directory (GET /api/v1/catalog/stations). Only
// enabled stations are listed.
func (s *Service) ListStations(w http.ResponseWriter, r *http.Request, params ListStationsParams) {
	stations, err := s.repo.GetStations(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list stations: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(stations); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

func (s *Service) ListCountries(w http.ResponseWriter, r *http.Request) {
	s.dictionary(w, r, "countries", s.repo.GetCountries)
}

func (s *Service) ListGenres(w http.ResponseWriter, r *http.Request) {
	s.dictionary(w, r, "genres", s.repo.GetGenres)
}

func (s *Service) ListLanguages(w http.ResponseWriter, r *http.Request) {
	s.dictionary(w, r, "languages", s.repo.GetLanguages)
}

func (s *Service) ListRegions(w http.ResponseWriter, r *http.Request, countryID int) {
	regions, err := s.repo.GetRegions(r.Context(), countryID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list regions: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(regions); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

func (s *Service) ListCities(w http.ResponseWriter, r *http.Request, countryID int) {
	cities, err := s.repo.GetCities(r.Context(), countryID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list cities: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(cities); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// New station (POST /api/v1/catalog/stations). Staff only.
func (s *Service) CreateStation(w http.ResponseWriter, r *http.Request, params StationParams) {
	st := stationFromParams(params)

	created, err := s.repo.CreateStation(r.Context(), st)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("create station: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(created); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Station update (PUT /api/v1/catalog/stations/{id}). Staff only.
func (s *Service) UpdateStation(w http.ResponseWriter, r *http.Request, id int, params StationParams) {
	st := stationFromParams(params)
	st.ID = id

	if err := s.repo.UpdateStation(r.Context(), st); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("update station %d: %w", id, err))
		return
	}

	if err := json.NewEncoder(w).Encode(st); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Station removal (DELETE /api/v1/catalog/stations/{id}). Staff only.
func (s *Service) DeleteStation(w http.ResponseWriter, r *http.Request, id int) {
	if err := s.repo.DeleteStation(r.Context(), id); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("delete station %d: %w", id, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) dictionary(w http.ResponseWriter, r *http.Request, name string,
	load func(ctx context.Context) ([]*model.Entry, error),
) {
	entries, err := load(r.Context())
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list %s: %w", name, err))
		return
	}

	if err = json.NewEncoder(w).Encode(entries); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

func stationFromParams(params StationParams) *model.Station {
	return &model.Station{
		Name:        params.Name,
		Description: params.Description,
		WebsiteURL:  params.WebsiteURL,
		StreamURL:   params.StreamURL,
		CountryID:   params.CountryID,
		RegionID:    params.RegionID,
		CityID:      params.CityID,
		GenreID:     params.GenreID,
		Enabled:     params.Enabled,
	}
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

	// Status Forbidden.
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden

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
