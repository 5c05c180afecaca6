package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRequest is a user's request for a payment invoice. Marking
// it paid credits the user's balance.
type InvoiceRequest struct {
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	PublicID  string          `db:"public_id" json:"public_id"`
	Email     string          `db:"email" json:"email"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	IsPaid    bool            `db:"is_paid" json:"is_paid"`
}
