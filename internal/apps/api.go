package apps

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/mobileapp"
	"github.com/go-chi/chi/v5"
)

// CreateAppParams defines parameters for CreateApp.
type CreateAppParams struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	WebsiteURL  string             `json:"website_url"`
	Email       string             `json:"email"`
	Platform    mobileapp.Platform `json:"platform"`
	Theme       mobileapp.Theme    `json:"theme"`
	EnablePush  bool               `json:"enable_push"`
	FCMAPIKey   string             `json:"fcm_api_key"`
}

// UpdateAppParams defines parameters for UpdateApp. Nil fields are
// left unchanged.
type UpdateAppParams struct {
	Title          *string          `json:"title,omitempty"`
	Description    *string          `json:"description,omitempty"`
	WebsiteURL     *string          `json:"website_url,omitempty"`
	Email          *string          `json:"email,omitempty"`
	Theme          *mobileapp.Theme `json:"theme,omitempty"`
	EnablePush     *bool            `json:"enable_push,omitempty"`
	FCMAPIKey      *string          `json:"fcm_api_key,omitempty"`
	CopyrightTitle *string          `json:"copyright_title,omitempty"`
	CopyrightURL   *string          `json:"copyright_url,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Mobile applications (GET /)
	ListApps(w http.ResponseWriter, r *http.Request)
	// (POST /)
	CreateApp(w http.ResponseWriter, r *http.Request, params CreateAppParams)
	// (GET /{id})
	GetApp(w http.ResponseWriter, r *http.Request, id int)
	// (PATCH /{id})
	UpdateApp(w http.ResponseWriter, r *http.Request, id int, params UpdateAppParams)
	// (DELETE /{id})
	DeleteApp(w http.ResponseWriter, r *http.Request, id int)
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

// ListApps operation middleware.
func (siw *ServerInterfaceWrapper) ListApps(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListApps)
}

// CreateApp operation middleware.
func (siw *ServerInterfaceWrapper) CreateApp(w http.ResponseWriter, r *http.Request) {
	var params CreateAppParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.Title == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "title"})
		return
	}
	if params.Email == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "email"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateApp(w, r, params)
	})
}

// GetApp operation middleware.
func (siw *ServerInterfaceWrapper) GetApp(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetApp(w, r, id)
	})
}

// UpdateApp operation middleware.
func (siw *ServerInterfaceWrapper) UpdateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	var params UpdateAppParams

	if !siw.decode(w, r, &params) {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateApp(w, r, id, params)
	})
}

// DeleteApp operation middleware.
func (siw *ServerInterfaceWrapper) DeleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteApp(w, r, id)
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

	// Collection routes live at the base URL itself.
	base := options.BaseURL
	if base == "" {
		base = "/"
	}

	r.Group(func(r chi.Router) {
		r.Get(base, wrapper.ListApps)
		r.Post(base, wrapper.CreateApp)
		r.Get(options.BaseURL+"/{id}", wrapper.GetApp)
		r.Patch(options.BaseURL+"/{id}", wrapper.UpdateApp)
		r.Delete(options.BaseURL+"/{id}", wrapper.DeleteApp)
	})

	return r
}
