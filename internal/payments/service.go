package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/payment"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
)

type Service struct {
	repo   Repository
	trm    trm.Manager
	logger logger.Logger
}

func NewService(repo Repository, trm trm.Manager, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}

	return &Service{repo: repo, trm: trm, logger: logger}, nil
}

var _ ServerInterface = (*Service)(nil)

// Charge history (GET /api/v1/payments/charges).
func (s *Service) ListCharges(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	charges, err := s.repo.GetCharges(r.Context(), u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("list charges: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(charges); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Invoice request (POST /api/v1/payments/invoice). The public id goes
// into the payment provider's order reference.
func (s *Service) CreateInvoice(w http.ResponseWriter, r *http.Request, params CreateInvoiceParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if params.Amount.IsNegative() {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidRequest))
		return
	}

	inv := &payment.InvoiceRequest{
		PublicID: uuid.NewString(),
		UserID:   u.ID,
		Email:    u.Email,
		Amount:   params.Amount,
	}

	if err := s.repo.CreateInvoice(r.Context(), inv); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("create invoice request: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(inv); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Payment confirmation (POST /api/v1/payments/invoice/{uuid}/paid).
// Staff only. Marking the invoice paid and crediting the balance is
// a single transaction; confirming twice is a conflict.
func (s *Service) MarkInvoicePaid(w http.ResponseWriter, r *http.Request, publicID string) {
	inv, err := s.repo.GetInvoice(r.Context(), publicID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("get invoice %s: %w", publicID, err))
		return
	}

	if inv.IsPaid {
		ErrorHandlerFunc(w, r, fmt.Errorf("%w: invoice %s already paid", errs.ErrDataConflict, publicID))
		return
	}

	err = s.trm.Do(r.Context(), func(ctx context.Context) error {
		if err := s.repo.SetInvoicePaid(ctx, inv.ID); err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if _, err := s.repo.CreditBalance(ctx, inv.UserID, inv.Amount); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		return nil
	})
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("confirm invoice %s: %w", publicID, err))
		return
	}

	s.logger.Infof("invoice %s paid: user %d credited %s", publicID, inv.UserID, inv.Amount)

	w.WriteHeader(http.StatusOK)
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
