package radios

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetSelfHostedByUser(ctx context.Context, userID int) ([]*radio.SelfHosted, error)
	GetSelfHosted(ctx context.Context, id int) (*radio.SelfHosted, error)
	CreateSelfHosted(ctx context.Context, sh *radio.SelfHosted) (*radio.SelfHosted, error)
	UpdateSelfHosted(ctx context.Context, sh *radio.SelfHosted) error
	SetSelfHostedStatus(ctx context.Context, id int, status radio.Status) error

	// GetHostedByUser returns the user's hosted radios with service
	// line items attached.
	GetHostedByUser(ctx context.Context, userID int) ([]*radio.Hosted, error)
	GetHosted(ctx context.Context, id int) (*radio.Hosted, error)
	CreateHosted(ctx context.Context, h *radio.Hosted) (*radio.Hosted, error)
	SetHostedStatus(ctx context.Context, id int, status radio.Status) error
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

const selfHostedColumns = "id, user_id, ip, domain, status, custom_price, channels, unbranded, blocked, created_at"

func (r *Repo) GetSelfHostedByUser(ctx context.Context, userID int) ([]*radio.SelfHosted, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM self_hosted_radios
		WHERE user_id = $1 AND status <> 'being_deleted'
		ORDER BY id;
	`, selfHostedColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	items := make([]*radio.SelfHosted, 0)

	for rows.Next() {
		sh, err := scanSelfHosted(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sh)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repo) GetSelfHosted(ctx context.Context, id int) (*radio.SelfHosted, error) {
	query := fmt.Sprintf("SELECT %s FROM self_hosted_radios WHERE id = $1", selfHostedColumns)

	sh, err := scanSelfHosted(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return sh, nil
}

func (r *Repo) CreateSelfHosted(ctx context.Context, sh *radio.SelfHosted) (*radio.SelfHosted, error) {
	const query = `
		INSERT INTO self_hosted_radios (user_id, ip, domain, status, channels, unbranded)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			sh.UserID, sh.IP, sh.Domain, sh.Status, sh.Channels, sh.Unbranded).
		Scan(&sh.ID, &sh.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, errs.ErrDataConflict
		}
		return nil, fmt.Errorf("create self-hosted radio: %w", err)
	}

	return sh, nil
}

func (r *Repo) UpdateSelfHosted(ctx context.Context, sh *radio.SelfHosted) error {
	const query = `
		UPDATE self_hosted_radios SET
			domain = $1,
			channels = $2,
			unbranded = $3
		WHERE id = $4;
	`

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query, sh.Domain, sh.Channels, sh.Unbranded, sh.ID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) SetSelfHostedStatus(ctx context.Context, id int, status radio.Status) error {
	const query = "UPDATE self_hosted_radios SET status = $1 WHERE id = $2"

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	return nil
}

const hostedColumns = "id, user_id, login, status, custom_price, disk_usage_mb, is_demo, blocked, created_at"

func (r *Repo) GetHostedByUser(ctx context.Context, userID int) ([]*radio.Hosted, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM hosted_radios
		WHERE user_id = $1 AND status <> 'being_deleted'
		ORDER BY id;
	`, hostedColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	items := make([]*radio.Hosted, 0)
	byID := make(map[int]*radio.Hosted)

	for rows.Next() {
		h, err := scanHosted(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
		byID[h.ID] = h
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return items, nil
	}

	if err = r.attachServices(ctx, byID); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repo) GetHosted(ctx context.Context, id int) (*radio.Hosted, error) {
	query := fmt.Sprintf("SELECT %s FROM hosted_radios WHERE id = $1", hostedColumns)

	h, err := scanHosted(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	if err = r.attachServices(ctx, map[int]*radio.Hosted{h.ID: h}); err != nil {
		return nil, err
	}

	return h, nil
}

func (r *Repo) CreateHosted(ctx context.Context, h *radio.Hosted) (*radio.Hosted, error) {
	const query = `
		INSERT INTO hosted_radios (user_id, login, status, is_demo)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, h.UserID, h.Login, h.Status, h.IsDemo).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, errs.ErrDataConflict
		}
		return nil, fmt.Errorf("create hosted radio: %w", err)
	}

	return h, nil
}

func (r *Repo) SetHostedStatus(ctx context.Context, id int, status radio.Status) error {
	const query = "UPDATE hosted_radios SET status = $1 WHERE id = $2"

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) attachServices(ctx context.Context, byID map[int]*radio.Hosted) error {
	const query = `
		SELECT id, hosted_radio_id, service_type, price, disk_quota_gb, created_at
		FROM hosted_radio_services
		WHERE hosted_radio_id = ANY($1)
		ORDER BY id;
	`

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.db.QueryContext(ctx, query, ids)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanSelfHosted(row scanner) (*radio.SelfHosted, error) {
	var (
		sh     radio.SelfHosted
		domain sql.NullString
		custom decimal.NullDecimal
	)

	err := row.Scan(
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

	return &sh, nil
}

func scanHosted(row scanner) (*radio.Hosted, error) {
	var (
		h      radio.Hosted
		custom decimal.NullDecimal
	)

	err := row.Scan(
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

	return &h, nil
}
