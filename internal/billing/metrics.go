package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes accrual job counters.
type Metrics struct {
	// Accounts processed per run, by result (charged/skipped/failed).
	AccountsTotal *prometheus.CounterVec
	// Ledger entries posted, by service type.
	ChargesPosted *prometheus.CounterVec
	// Daily totals of the last run, by currency.
	DailyTotal *prometheus.GaugeVec
	// Accrual run duration.
	RunDuration prometheus.Histogram
	// Runs skipped because another run held the lock.
	LockBusyTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccountsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_accounts_total",
				Help: "Accounts processed by the accrual job",
			},
			[]string{"result"},
		),
		ChargesPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_charges_posted_total",
				Help: "Ledger entries posted by the accrual job",
			},
			[]string{"service_type"},
		),
		DailyTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "billing_daily_total",
				Help: "Total daily charge amount of the last run",
			},
			[]string{"currency"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billing_run_duration_seconds",
				Help:    "Duration of accrual job runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		LockBusyTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_lock_busy_total",
				Help: "Accrual runs skipped because the run lock was held",
			},
		),
	}
}
