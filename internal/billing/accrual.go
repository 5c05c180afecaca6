package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/models/charge"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job is the daily accrual batch: for every payable account it prices
// the owned radios, posts one prorated ledger entry per resource per
// day, debits the balance and dispatches balance notifications.
//
// The job is stateless between runs. Re-running it on the same day is
// safe: the same-day charge check plus the ledger unique index reject
// duplicates.
type Job struct {
	repo     Repository
	trm      trm.Manager
	resolver *Resolver
	notifier *Notifier
	metrics  *Metrics
	logger   logger.Logger
}

// Summary of a single accrual run.
type Summary struct {
	RunID         string
	AsOf          time.Time
	PayingClients map[user.Currency]int
	Totals        map[user.Currency]decimal.Decimal
	ChargesPosted int
	Failed        int
}

func NewJob(
	repo Repository,
	trManager trm.Manager,
	resolver *Resolver,
	notifier *Notifier,
	metrics *Metrics,
	logger logger.Logger,
) (*Job, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trManager == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if resolver == nil {
		return nil, errors.New("nil dependency: resolver")
	}
	if notifier == nil {
		return nil, errors.New("nil dependency: notifier")
	}

	return &Job{
		repo:     repo,
		trm:      trManager,
		resolver: resolver,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run executes one accrual pass as of the given moment. Proration,
// trial windows and the same-day duplicate check all derive from
// asOf; callers pass time.Now().UTC() in production and a fixed
// timestamp in tests.
//
// A failure for one account aborts that account only.
func (j *Job) Run(ctx context.Context, asOf time.Time) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := j.logger.With(ctx, "run_id", runID, "as_of", asOf.Format("2006-01-02"))

	summary := &Summary{
		RunID:         runID,
		AsOf:          asOf,
		PayingClients: make(map[user.Currency]int),
		Totals:        make(map[user.Currency]decimal.Decimal),
	}

	users, err := j.repo.GetPayableUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get payable users: %w", err)
	}

	log.Infof("accrual started for %d accounts", len(users))

	for _, u := range users {
		total, posted, err := j.processUser(ctx, u, asOf)
		if err != nil {
			log.With(ctx, "user_id", u.ID).Errorf("account skipped: %s", err)
			summary.Failed++
			j.observeAccount("failed")
			continue
		}

		summary.ChargesPosted += posted
		if total.Sign() > 0 {
			summary.PayingClients[u.Currency]++
			summary.Totals[u.Currency] = summary.Totals[u.Currency].Add(total)
			j.observeAccount("charged")
		} else {
			j.observeAccount("skipped")
		}

		j.notifier.Notify(ctx, u, total)
	}

	if j.metrics != nil {
		for cur, total := range summary.Totals {
			totalf, _ := total.Float64()
			j.metrics.DailyTotal.WithLabelValues(string(cur)).Set(totalf)
		}
		j.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}

	j.notifier.SendSummary(ctx, summary)

	log.Infof("accrual finished: %d charges posted, %d accounts failed",
		summary.ChargesPosted, summary.Failed)

	return summary, nil
}

// processUser prices and accrues all of one user's resources and
// returns the user's total daily charge and the number of ledger
// entries posted. A pricing or accrual failure for one resource is
// logged and does not stop the others.
func (j *Job) processUser(ctx context.Context, u *user.User, asOf time.Time) (decimal.Decimal, int, error) {
	total := decimal.Zero
	posted := 0
	days := decimal.NewFromInt(int64(daysInMonth(asOf)))
	log := j.logger.With(ctx, "user_id", u.ID)

	selfHosted, err := j.repo.GetSelfHostedRadios(ctx, u.ID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("get self-hosted radios: %w", err)
	}

	for _, sh := range selfHosted {
		monthly, err := j.resolver.SelfHostedMonthly(sh, u.Currency, asOf)
		if err != nil {
			log.Errorf("price self-hosted radio %d: %s", sh.ID, err)
			continue
		}

		daily, ok, err := j.accrue(ctx, u, charge.SelfHosted, sh.Description(), monthly, days, asOf)
		if err != nil {
			log.Errorf("accrue self-hosted radio %d: %s", sh.ID, err)
			continue
		}
		total = total.Add(daily)
		if ok {
			posted++
		}
	}

	hosted, err := j.repo.GetHostedRadios(ctx, u.ID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("get hosted radios: %w", err)
	}

	for _, h := range hosted {
		monthly, err := j.resolver.HostedMonthly(h)
		if err != nil {
			log.Errorf("price hosted radio %q: %s", h.Login, err)
			continue
		}

		daily, ok, err := j.accrue(ctx, u, charge.HostedStream, h.Login, monthly, days, asOf)
		if err != nil {
			log.Errorf("accrue hosted radio %q: %s", h.Login, err)
			continue
		}
		total = total.Add(daily)
		if ok {
			posted++
		}

		// Disk overage is billed only while the instance itself bills.
		if monthly.Sign() <= 0 {
			continue
		}

		overage, overMB, err := j.resolver.DiskOverageMonthly(h, u.Currency)
		if err != nil {
			log.Errorf("price disk overage for %q: %s", h.Login, err)
			continue
		}
		if overMB > 0 {
			log.Debugf("radio %q is %d MB over disk quota", h.Login, overMB)
		}

		daily, ok, err = j.accrue(ctx, u, charge.HostedDisk, h.Login+" disk overage", overage, days, asOf)
		if err != nil {
			log.Errorf("accrue disk overage for %q: %s", h.Login, err)
			continue
		}
		total = total.Add(daily)
		if ok {
			posted++
		}
	}

	return total, posted, nil
}

// accrue prorates a monthly price to a daily amount, posts the ledger
// entry and debits the balance in one transaction. It returns the
// daily amount (zero when the price is not positive) and whether a
// new ledger entry was actually posted.
//
// An existing same-day charge for the same (user, service,
// description) makes accrue a no-op with respect to the ledger and
// the balance, which keeps re-runs of the job safe.
func (j *Job) accrue(
	ctx context.Context,
	u *user.User,
	svc charge.ServiceType,
	description string,
	monthly decimal.Decimal,
	daysInMonth decimal.Decimal,
	asOf time.Time,
) (decimal.Decimal, bool, error) {
	if monthly.Sign() <= 0 {
		return decimal.Zero, false, nil
	}

	daily := monthly.DivRound(daysInMonth, 4)

	exists, err := j.repo.ChargeExists(ctx, u.ID, svc, asOf, description)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("check existing charge: %w", err)
	}
	if exists {
		return daily, false, nil
	}

	c := &charge.Charge{
		UserID:      u.ID,
		Service:     svc,
		Description: description,
		Currency:    u.Currency,
		Price:       daily,
		CreatedAt:   asOf,
	}

	// The ledger entry and the balance debit must commit together.
	err = j.trm.Do(ctx, func(ctx context.Context) error {
		if err := j.repo.CreateCharge(ctx, c); err != nil {
			return err
		}

		balance, err := j.repo.DebitBalance(ctx, u.ID, daily)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		u.Balance = balance

		return nil
	})
	if err != nil {
		// A unique violation means a concurrent run posted this charge
		// between the existence check and the insert.
		if errors.Is(err, errs.ErrDataConflict) {
			return daily, false, nil
		}
		return decimal.Zero, false, err
	}

	if j.metrics != nil {
		j.metrics.ChargesPosted.WithLabelValues(string(svc)).Inc()
	}
	j.logger.With(ctx, "user_id", u.ID, "service_type", svc).
		Infof("charged %s %s for %q, balance: %s",
			daily, u.Currency, description, u.Balance)

	return daily, true, nil
}

func (j *Job) observeAccount(result string) {
	if j.metrics != nil {
		j.metrics.AccountsTotal.WithLabelValues(result).Inc()
	}
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
