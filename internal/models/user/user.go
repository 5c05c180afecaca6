package user

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Currency of a user's balance. All of a user's charges and payments
// are denominated in this single currency.
type Currency string

const (
	USD Currency = "USD"
	RUB Currency = "RUB"
	EUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	switch c {
	case USD, RUB, EUR:
		return true
	}
	return false
}

// Language drives notification templates and mail routing.
type Language string

const (
	EN Language = "en"
	RU Language = "ru"
)

func (l Language) Valid() bool {
	return l == EN || l == RU
}

// User description. A user is also the billing account: the balance
// lives here and is debited by the daily accrual job.
type User struct {
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Email     string          `db:"email" json:"email"`
	Password  string          `db:"password" json:"-"`
	Language  Language        `db:"language" json:"language"`
	Currency  Currency        `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	ID        int             `db:"id" json:"id"`
	IsStaff   bool            `db:"is_staff" json:"is_staff"`
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// userKey is the key for user.User values in Contexts. It is
// unexported; clients use user.NewContext and user.FromContext
// instead of using this key directly.
var userKey key

// NewContext returns a new Context that carries value u.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext returns the User value stored in ctx, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}
