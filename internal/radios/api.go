package radios

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// CreateSelfHostedParams defines parameters for CreateSelfHosted.
type CreateSelfHostedParams struct {
	IP        string `json:"ip"`
	Domain    string `json:"domain"`
	Channels  int    `json:"channels"`
	Unbranded bool   `json:"unbranded"`
}

// UpdateSelfHostedParams defines parameters for UpdateSelfHosted.
// Nil fields are left unchanged.
type UpdateSelfHostedParams struct {
	Domain    *string `json:"domain,omitempty"`
	Channels  *int    `json:"channels,omitempty"`
	Unbranded *bool   `json:"unbranded,omitempty"`
}

// CreateHostedParams defines parameters for CreateHosted.
type CreateHostedParams struct {
	Login  string `json:"login"`
	IsDemo bool   `json:"is_demo"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Self-hosted radio servers (GET /selfhosted)
	ListSelfHosted(w http.ResponseWriter, r *http.Request)
	// (POST /selfhosted)
	CreateSelfHosted(w http.ResponseWriter, r *http.Request, params CreateSelfHostedParams)
	// (GET /selfhosted/{id})
	GetSelfHosted(w http.ResponseWriter, r *http.Request, id int)
	// (PATCH /selfhosted/{id})
	UpdateSelfHosted(w http.ResponseWriter, r *http.Request, id int, params UpdateSelfHostedParams)
	// (DELETE /selfhosted/{id})
	DeleteSelfHosted(w http.ResponseWriter, r *http.Request, id int)

	// Hosted radios (GET /hosted)
	ListHosted(w http.ResponseWriter, r *http.Request)
	// (POST /hosted)
	CreateHosted(w http.ResponseWriter, r *http.Request, params CreateHostedParams)
	// (GET /hosted/{id})
	GetHosted(w http.ResponseWriter, r *http.Request, id int)
	// (DELETE /hosted/{id})
	DeleteHosted(w http.ResponseWriter, r *http.Request, id int)
	// Service line items (GET /hosted/{id}/services)
	ListHostedServices(w http.ResponseWriter, r *http.Request, id int)
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

// ListSelfHosted operation middleware.
func (siw *ServerInterfaceWrapper) ListSelfHosted(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListSelfHosted)
}

// CreateSelfHosted operation middleware.
func (siw *ServerInterfaceWrapper) CreateSelfHosted(w http.ResponseWriter, r *http.Request) {
	var params CreateSelfHostedParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.IP == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "ip"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateSelfHosted(w, r, params)
	})
}

// GetSelfHosted operation middleware.
func (siw *ServerInterfaceWrapper) GetSelfHosted(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetSelfHosted(w, r, id)
	})
}

// UpdateSelfHosted operation middleware.
func (siw *ServerInterfaceWrapper) UpdateSelfHosted(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	var params UpdateSelfHostedParams

	if !siw.decode(w, r, &params) {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateSelfHosted(w, r, id, params)
	})
}

// DeleteSelfHosted operation middleware.
func (siw *ServerInterfaceWrapper) DeleteSelfHosted(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteSelfHosted(w, r, id)
	})
}

// ListHosted operation middleware.
func (siw *ServerInterfaceWrapper) ListHosted(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListHosted)
}

// CreateHosted operation middleware.
func (siw *ServerInterfaceWrapper) CreateHosted(w http.ResponseWriter, r *http.Request) {
	var params CreateHostedParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.Login == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "login"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateHosted(w, r, params)
	})
}

// GetHosted operation middleware.
func (siw *ServerInterfaceWrapper) GetHosted(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetHosted(w, r, id)
	})
}

// DeleteHosted operation middleware.
func (siw *ServerInterfaceWrapper) DeleteHosted(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteHosted(w, r, id)
	})
}

// ListHostedServices operation middleware.
func (siw *ServerInterfaceWrapper) ListHostedServices(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.id(w, r)
	if !ok {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListHostedServices(w, r, id)
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

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/selfhosted", wrapper.ListSelfHosted)
		r.Post(options.BaseURL+"/selfhosted", wrapper.CreateSelfHosted)
		r.Get(options.BaseURL+"/selfhosted/{id}", wrapper.GetSelfHosted)
		r.Patch(options.BaseURL+"/selfhosted/{id}", wrapper.UpdateSelfHosted)
		r.Delete(options.BaseURL+"/selfhosted/{id}", wrapper.DeleteSelfHosted)

		r.Get(options.BaseURL+"/hosted", wrapper.ListHosted)
		r.Post(options.BaseURL+"/hosted", wrapper.CreateHosted)
		r.Get(options.BaseURL+"/hosted/{id}", wrapper.GetHosted)
		r.Delete(options.BaseURL+"/hosted/{id}", wrapper.DeleteHosted)
		r.Get(options.BaseURL+"/hosted/{id}/services", wrapper.ListHostedServices)
	})

	return r
}
