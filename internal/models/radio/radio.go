package radio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a radio instance. Only Ready instances accrue charges.
type Status string

const (
	Pending      Status = "pending"
	Checking     Status = "checking"
	Ready        Status = "ready"
	BeingCreated Status = "being_created"
	BeingDeleted Status = "being_deleted"
	Suspended    Status = "suspended"
	Error        Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Checking, Ready, BeingCreated, BeingDeleted, Suspended, Error:
		return true
	}
	return false
}

// SelfHosted is a radio server running on the customer's own
// infrastructure, billed as a flat recurring fee.
type SelfHosted struct {
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	IP          string           `db:"ip" json:"ip"`
	Domain      string           `db:"domain" json:"domain"`
	Status      Status           `db:"status" json:"status"`
	CustomPrice *decimal.Decimal `db:"custom_price" json:"custom_price,omitempty"`
	ID          int              `db:"id" json:"id"`
	UserID      int              `db:"user_id" json:"user_id"`
	Channels    int              `db:"channels" json:"channels"`
	Unbranded   bool             `db:"unbranded" json:"unbranded"`
	Blocked     bool             `db:"blocked" json:"blocked"`
}

// Description identifies the instance in charge ledger entries.
func (r *SelfHosted) Description() string {
	if r.Domain != "" {
		return r.IP + " (" + r.Domain + ")"
	}
	return r.IP
}

// ServiceType of a hosted radio line item.
type ServiceType string

const (
	ServiceStream ServiceType = "stream"
	ServiceDisk   ServiceType = "disk"
)

// Service is a line item attached to a hosted radio. Prices are
// computed at provisioning time; billing only sums them.
type Service struct {
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Type        ServiceType     `db:"service_type" json:"service_type"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ID          int             `db:"id" json:"id"`
	HostedID    int             `db:"hosted_radio_id" json:"hosted_radio_id"`
	DiskQuotaGB int             `db:"disk_quota_gb" json:"disk_quota_gb"`
}

// Hosted is a radio instance running on the platform's
// infrastructure, billed as the sum of its service line items plus a
// surcharge for disk usage above quota.
type Hosted struct {
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	Login       string           `db:"login" json:"login"`
	Status      Status           `db:"status" json:"status"`
	CustomPrice *decimal.Decimal `db:"custom_price" json:"custom_price,omitempty"`
	Services    []Service        `db:"-" json:"services,omitempty"`
	DiskUsageMB int64            `db:"disk_usage_mb" json:"disk_usage_mb"`
	ID          int              `db:"id" json:"id"`
	UserID      int              `db:"user_id" json:"user_id"`
	IsDemo      bool             `db:"is_demo" json:"is_demo"`
	Blocked     bool             `db:"blocked" json:"blocked"`
}

// DiskQuotaGB returns the quota of the most recently provisioned disk
// line item, or zero when the radio has no disk service.
func (r *Hosted) DiskQuotaGB() int {
	quota := 0
	var latest time.Time
	found := false
	for _, s := range r.Services {
		if s.Type != ServiceDisk {
			continue
		}
		if !found || s.CreatedAt.After(latest) {
			latest = s.CreatedAt
			quota = s.DiskQuotaGB
			found = true
		}
	}
	return quota
}
