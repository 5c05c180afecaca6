package payments

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alexey-v-paramonov/sc-api/internal/models/charge"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/payment"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// GetCharges returns the user's ledger entries, newest first.
	GetCharges(ctx context.Context, userID int) ([]*charge.Charge, error)
	CreateInvoice(ctx context.Context, inv *payment.InvoiceRequest) error
	GetInvoice(ctx context.Context, publicID string) (*payment.InvoiceRequest, error)
	SetInvoicePaid(ctx context.Context, id int) error
	// CreditBalance increases the user's balance and returns the new
	// value.
	CreditBalance(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetCharges(ctx context.Context, userID int) ([]*charge.Charge, error) {
	const query = `
		SELECT id, user_id, service_type, description, currency, price, created_at
		FROM charges
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC;
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	charges := make([]*charge.Charge, 0)

	for rows.Next() {
		c := new(charge.Charge)
		err = rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Service,
			&c.Description,
			&c.Currency,
			&c.Price,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return charges, nil
}

func (r *Repo) CreateInvoice(ctx context.Context, inv *payment.InvoiceRequest) error {
	const query = `
		INSERT INTO invoice_requests (public_id, user_id, email, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at;
	`

	return r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, inv.PublicID, inv.UserID, inv.Email, inv.Amount).
		Scan(&inv.ID, &inv.CreatedAt)
}

func (r *Repo) GetInvoice(ctx context.Context, publicID string) (*payment.InvoiceRequest, error) {
	const query = `
		SELECT id, public_id, user_id, email, amount, is_paid, created_at
		FROM invoice_requests
		WHERE public_id = $1;
	`

	inv := new(payment.InvoiceRequest)

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, publicID).
		Scan(
			&inv.ID,
			&inv.PublicID,
			&inv.UserID,
			&inv.Email,
			&inv.Amount,
			&inv.IsPaid,
			&inv.CreatedAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return inv, nil
}

func (r *Repo) SetInvoicePaid(ctx context.Context, id int) error {
	const query = "UPDATE invoice_requests SET is_paid = TRUE WHERE id = $1 AND NOT is_paid"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Concurrent confirmation won the race.
		return errs.ErrDataConflict
	}

	return nil
}

func (r *Repo) CreditBalance(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE users SET
			balance = balance + $1,
			updated_at = now()
		WHERE id = $2
			RETURNING balance;
	`

	var balance decimal.Decimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, amount, userID).
		Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}
