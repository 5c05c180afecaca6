package charge

import (
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/shopspring/decimal"
)

// ServiceType tags a ledger entry with the kind of service charged.
type ServiceType string

const (
	SelfHosted   ServiceType = "self_hosted"
	HostedStream ServiceType = "hosted_stream"
	HostedDisk   ServiceType = "hosted_disk"
)

// Charge is an immutable ledger entry: one row per resource per day.
// Charges are only ever appended, never updated or deleted.
type Charge struct {
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Service     ServiceType     `db:"service_type" json:"service_type"`
	Description string          `db:"description" json:"description"`
	Currency    user.Currency   `db:"currency" json:"currency"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ID          int64           `db:"id" json:"id"`
	UserID      int             `db:"user_id" json:"user_id"`
}
