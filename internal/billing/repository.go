package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/models/charge"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repository is the persistence surface of the accrual job: accounts
// to bill, their resources, the charge ledger and the balance.
type Repository interface {
	// GetPayableUsers returns non-staff users with a positive balance.
	GetPayableUsers(ctx context.Context) ([]*user.User, error)
	GetSelfHostedRadios(ctx context.Context, userID int) ([]*radio.SelfHosted, error)
	// GetHostedRadios returns the user's hosted radios with their
	// service line items attached. Demo instances are excluded.
	GetHostedRadios(ctx context.Context, userID int) ([]*radio.Hosted, error)
	// ChargeExists reports whether a charge was already posted for the
	// same user, service, calendar day and description.
	ChargeExists(ctx context.Context, userID int, service charge.ServiceType, day time.Time, description string) (bool, error)
	CreateCharge(ctx context.Context, c *charge.Charge) error
	// DebitBalance decreases the user's balance and returns the new
	// value. The balance may go negative; suspension is handled by the
	// notification path, not by rejecting the debit.
	DebitBalance(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error)
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

func (r *Repo) GetPayableUsers(ctx context.Context) ([]*user.User, error) {
	const query = `
		SELECT id, email, language, currency, balance, is_staff, created_at, updated_at
		FROM users
		WHERE balance > 0 AND NOT is_staff
		ORDER BY id;
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	users := make([]*user.User, 0)

	for rows.Next() {
		u := new(user.User)
		err = rows.Scan(
			&u.ID,
			&u.Email,
			&u.Language,
			&u.Currency,
			&u.Balance,
			&u.IsStaff,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repo) GetSelfHostedRadios(ctx context.Context, userID int) ([]*radio.SelfHosted, error) {
	const query = `
		SELECT id, user_id, ip, domain, status, custom_price,
			channels, unbranded, blocked, created_at
		FROM self_hosted_radios
		WHERE user_id = $1
		ORDER BY id;
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

	radios := make([]*radio.SelfHosted, 0)

	for rows.Next() {
		var (
			sh     radio.SelfHosted
			domain sql.NullString
			custom decimal.NullDecimal
		)
		err = rows.Scan(
			&sh.ID,
			&sh.UserID,
			&sh.IP,
			&domain,
			&sh.Status,
			&custom,
			&sh.Channels,
			&sh.Unbranded,
			&sh.Blocked,
			&sh.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sh.Domain = domain.String
		if custom.Valid {
			sh.CustomPrice = &custom.Decimal
		}
		radios = append(radios, &sh)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return radios, nil
}

func (r *Repo) GetHostedRadios(ctx context.Context, userID int) ([]*radio.Hosted, error) {
	const query = `
		SELECT id, user_id, login, status, custom_price,
			disk_usage_mb, is_demo, blocked, created_at
		FROM hosted_radios
		WHERE user_id = $1 AND NOT is_demo
		ORDER BY id;
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

	radios := make([]*radio.Hosted, 0)
	byID := make(map[int]*radio.Hosted)

	for rows.Next() {
		var (
			h      radio.Hosted
			custom decimal.NullDecimal
		)
		err = rows.Scan(
			&h.ID,
			&h.UserID,
			&h.Login,
			&h.Status,
			&custom,
			&h.DiskUsageMB,
			&h.IsDemo,
			&h.Blocked,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if custom.Valid {
			h.CustomPrice = &custom.Decimal
		}
		radios = append(radios, &h)
		byID[h.ID] = &h
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(radios) == 0 {
		return radios, nil
	}

	if err = r.attachServices(ctx, userID, byID); err != nil {
		return nil, err
	}

	return radios, nil
}

func (r *Repo) attachServices(ctx context.Context, userID int, byID map[int]*radio.Hosted) error {
	const query = `
		SELECT s.id, s.hosted_radio_id, s.service_type, s.price,
			s.disk_quota_gb, s.created_at
		FROM hosted_radio_services s
		JOIN hosted_radios h ON h.id = s.hosted_radio_id
		WHERE h.user_id = $1
		ORDER BY s.id;
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	for rows.Next() {
		var s radio.Service
		err = rows.Scan(
			&s.ID,
			&s.HostedID,
			&s.Type,
			&s.Price,
			&s.DiskQuotaGB,
			&s.CreatedAt,
		)
		if err != nil {
			return err
		}
		if h, ok := byID[s.HostedID]; ok {
			h.Services = append(h.Services, s)
		}
	}

	return rows.Err()
}

func (r *Repo) ChargeExists(ctx context.Context, userID int, service charge.ServiceType, day time.Time, description string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM charges
			WHERE user_id = $1
				AND service_type = $2
				AND created_at::date = $3::date
				AND description = $4
		);
	`

	var exists bool

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, userID, service, day, description).
		Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repo) CreateCharge(ctx context.Context, c *charge.Charge) error {
	const query = `
		INSERT INTO charges (user_id, service_type, description, currency, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			c.UserID, c.Service, c.Description, c.Currency, c.Price, c.CreatedAt).
		Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Duplicate (user, service, day, description): a concurrent
			// run posted this charge first.
			return errs.ErrDataConflict
		}
		return fmt.Errorf("create charge: %w", err)
	}

	return nil
}

func (r *Repo) DebitBalance(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE users SET
			balance = balance - $1,
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
