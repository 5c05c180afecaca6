package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceParams defines parameters for CreateInvoice.
type CreateInvoiceParams struct {
	Amount decimal.Decimal `json:"amount"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Charge history (GET /charges)
	ListCharges(w http.ResponseWriter, r *http.Request)
	// Invoice request (POST /invoice)
	CreateInvoice(w http.ResponseWriter, r *http.Request, params CreateInvoiceParams)
	// Payment confirmation, staff only (POST /invoice/{uuid}/paid)
	MarkInvoicePaid(w http.ResponseWriter, r *http.Request, publicID string)
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

// ListCharges operation middleware.
func (siw *ServerInterfaceWrapper) ListCharges(w http.ResponseWriter, r *http.Request) {
	siw.handle(w, r, siw.Handler.ListCharges)
}

// CreateInvoice operation middleware.
func (siw *ServerInterfaceWrapper) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var params CreateInvoiceParams

	if !siw.decode(w, r, &params) {
		return
	}

	if params.Amount.IsZero() {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "amount"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateInvoice(w, r, params)
	})
}

// MarkInvoicePaid operation middleware.
func (siw *ServerInterfaceWrapper) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "uuid")
	if _, err := uuid.Parse(publicID); err != nil {
		siw.ErrorHandlerFunc(w, r, &errs.RequiredJSONBodyParamError{ParamName: "uuid"})
		return
	}

	siw.handle(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.MarkInvoicePaid(w, r, publicID)
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
	// AuthMiddleware guards every payment route.
	AuthMiddleware MiddlewareFunc
	// StaffMiddleware additionally guards the payment confirmation
	// route. Runs after AuthMiddleware.
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
		if options.AuthMiddleware != nil {
			r.Use(func(next http.Handler) http.Handler {
				return options.AuthMiddleware(next)
			})
		}
		r.Get(options.BaseURL+"/charges", wrapper.ListCharges)
		r.Post(options.BaseURL+"/invoice", wrapper.CreateInvoice)
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
		r.Post(options.BaseURL+"/invoice/{uuid}/paid", wrapper.MarkInvoicePaid)
	})

	return r
}
