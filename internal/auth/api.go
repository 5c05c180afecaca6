package auth

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/go-chi/chi/v5"
)

// RegisterParams defines parameters for Register.
type RegisterParams struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Language user.Language `json:"language"`
	Currency user.Currency `json:"currency"`
}

// LoginParams defines parameters for Login.
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileParams defines parameters for UpdateProfile. Currency
// is fixed at registration: the ledger is denominated in it.
type UpdateProfileParams struct {
	Language user.Language `json:"language"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Registration (POST /register)
	Register(w http.ResponseWriter, r *http.Request, params RegisterParams)
	// Authentication (POST /login)
	Login(w http.ResponseWriter, r *http.Request, params LoginParams)
	// Own profile (GET /profile)
	GetProfile(w http.ResponseWriter, r *http.Request)
	// Profile update (PATCH /profile)
	UpdateProfile(w http.ResponseWriter, r *http.Request, params UpdateProfileParams)
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

func (siw *ServerInterfaceWrapper) handle(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	var handler http.Handler = f

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r.WithContext(r.Context()))
}

// Register operation middleware.
func (siw *ServerInterfaceWrapper) Register(w http.ResponseWriter, r *http.Request) {
	var params RegisterParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.Email == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "email"})
		return
	}
	if params.Password == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "password"})
		return
	}
	if params.Language == "" {
		params.Language = user.EN
	}
	if params.Currency == "" {
		params.Currency = user.USD
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Register(w, r, params)
	})
}

// Login operation middleware.
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	var params LoginParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.Email == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "email"})
		return
	}
	if params.Password == "" {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "password"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.Login(w, r, params)
	})
}

// GetProfile operation middleware.
func (siw *ServerInterfaceWrapper) GetProfile(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.GetProfile)
}

// UpdateProfile operation middleware.
func (siw *ServerInterfaceWrapper) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var params UpdateProfileParams

	if !siw.decode(w, r, &params) {
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateProfile(w, r, params)
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
	// AuthMiddleware guards the profile routes.
	AuthMiddleware MiddlewareFunc
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
		r.Post(options.BaseURL+"/register", wrapper.Register)
		r.Post(options.BaseURL+"/login", wrapper.Login)
	})
	r.Group(func(r chi.Router) {
		if options.AuthMiddleware != nil {
			r.Use(func(next http.Handler) http.Handler {
				return options.AuthMiddleware(next)
			})
		}
		r.Get(options.BaseURL+"/profile", wrapper.GetProfile)
		r.Patch(options.BaseURL+"/profile", wrapper.UpdateProfile)
	})

	return r
}
