package catalog

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// ListStationsParams defines query filters for ListStations. Nil
// filters are not applied.
type ListStationsParams struct {
	CountryID *int
	RegionID  *int
	CityID    *int
	GenreID   *int
	Search    string
}

// StationParams defines parameters for CreateStation and
// UpdateStation.
type StationParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	WebsiteURL  string `json:"website_url"`
	StreamURL   string `json:"stream_url"`
	CountryID   int    `json:"country_id"`
	RegionID    *int   `json:"region_id,omitempty"`
	CityID      *int   `json:"city_id,omitempty"`
	GenreID     int    `json:"genre_id"`
	Enabled     bool   `json:"enabled"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Public station directory (GET /stations)
	ListStations(w http.ResponseWriter, r *http.Request, params ListStationsParams)
	// Dictionaries (GET /countries, /regions, /cities, /genres, /languages)
	ListCountries(w http.ResponseWriter, r *http.Request)
	ListRegions(w http.ResponseWriter, r *http.Request, countryID int)
	ListCities(w http.ResponseWriter, r *http.Request, countryID int)
	ListGenres(w http.ResponseWriter, r *http.Request)
	ListLanguages(w http.ResponseWriter, r *http.Request)

	// Staff only (POST /stations)
	CreateStation(w http.ResponseWriter, r *http.Request, params StationParams)
	// Staff only (PUT /stations/{id})
	UpdateStation(w http.ResponseWriter, r *http.Request, id int, params StationParams)
	// Staff only (DELETE /stations/{id})
	DeleteStation(w http.ResponseWriter, r *http.Request, id int)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
	HandlerMiddlewares []MiddlewareFunc
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return false
	}
	r.Body.Close()

	if err = json.Unmarshal(data, v); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return false
	}

	return true
}

func (siw *ServerInterfaceWrapper) id(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "id"})
		return 0, false
	}
	return id, true
}

func (siw *ServerInterfaceWrapper) handle(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	var handler http.Handler = f

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r.WithContext(r.Context()))
}

func queryInt(r *http.Request, name string) *int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// ListStations operation middleware.
func (siw *ServerInterfaceWrapper) ListStations(w http.ResponseWriter, r *http.Request) {
	params := ListStationsParams{
		CountryID: queryInt(r, "country"),
		RegionID:  queryInt(r, "region"),
		CityID:    queryInt(r, "city"),
		GenreID:   queryInt(r, "genre"),
		Search:    r.URL.Query().Get("search"),
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListStations(w, r, params)
	})
}

// ListCountries operation middleware.
func (siw *ServerInterfaceWrapper) ListCountries(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListCountries)
}

// ListRegions operation middleware.
func (siw *ServerInterfaceWrapper) ListRegions(w http.ResponseWriter, r *http.Request) {
	countryID := queryInt(r, "country")
	if countryID == nil {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "country"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListRegions(w, r, *countryID)
	})
}

// ListCities operation middleware.
func (siw *ServerInterfaceWrapper) ListCities(w http.ResponseWriter, r *http.Request) {
	countryID := queryInt(r, "country")
	if countryID == nil {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "country"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListCities(w, r, *countryID)
	})
}

// ListGenres operation middleware.
func (siw *ServerInterfaceWrapper) ListGenres(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListGenres)
}

// ListLanguages operation middleware.
func (siw *ServerInterfaceWrapper) ListLanguages(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListLanguages)
}

func (siw *ServerInterfaceWrapper) stationParams(w http.ResponseWriter, r *http.Request) (StationParams, bool) {
	var params StationParams

	if !siw.decode(w, r, &params) {
		return params, false
	}

	if params.Name == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "name"})
		return params, false
	}
	if params.StreamURL == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "stream_url"})
		return params, false
	}

	return params, true
}

// CreateStation operation middleware.
func (siw *ServerInterfaceWrapper) CreateStation(w http.ResponseWriter, r *http.Request) {
	params, ok := siw.stationParams(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateStation(w, r, params)
	})
}

// UpdateStation operation middleware.
func (siw *ServerInterfaceWrapper) UpdateStation(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	params, ok := siw.stationParams(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateStation(w, r, id, params)
	})
}

// DeleteStation operation middleware.
func (siw *ServerInterfaceWrapper) DeleteStation(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteStation(w, r, id)
	})
}

// Handler creates http.Handler with routing matching spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
	// AuthMiddleware and StaffMiddleware guard the mutating routes, in
	// that order. Reads stay public.
	AuthMiddleware  MiddlewareFunc
	StaffMiddleware MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/stations", wrapper.ListStations)
		r.Get(options.BaseURL+"/countries", wrapper.ListCountries)
		r.Get(options.BaseURL+"/regions", wrapper.ListRegions)
		r.Get(options.BaseURL+"/cities", wrapper.ListCities)
		r.Get(options.BaseURL+"/genres", wrapper.ListGenres)
		r.Get(options.BaseURL+"/languages", wrapper.ListLanguages)
	})
	r.Group(func(r chi.Router) {
		if options.AuthMiddleware != nil {
			r.Use(func(next http.Handler) http.Handler {
				return options.AuthMiddleware(next)
			})
		}
		if options.StaffMiddleware != nil {
			r.Use(func(next http.Handler) http.Handler {
				return options.StaffMiddleware(next)
			})
		}
		r.Post(options.BaseURL+"/stations", wrapper.CreateStation)
		r.Put(options.BaseURL+"/stations/{id}", wrapper.UpdateStation)
		r.Delete(options.BaseURL+"/stations/{id}", wrapper.DeleteStation)
	})

	return r
}
