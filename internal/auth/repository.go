package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	GetUserByID(ctx context.Context, userID int) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, email, password string, lang user.Language, cur user.Currency) (id int, err error)
	UpdateLanguage(ctx context.Context, userID int, lang user.Language) error
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

const userColumns = "id, email, password, language, currency, balance, is_staff, created_at, updated_at"

func (r *Repo) GetUserByID(ctx context.Context, userID int) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)

	return r.scanUser(r.db.QueryRowContext(ctx, query, userID))
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)

	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repo) CreateUser(ctx context.Context, email, password string, lang user.Language, cur user.Currency) (int, error) {
	const query = `
		INSERT INTO users (email, password, language, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`

	var id int

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, email, password, lang, cur).
		Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return -1, errs.ErrDataConflict
			}
		}
		return -1, fmt.Errorf("create user: %w", err)
	}

	return id, nil
}

func (r *Repo) UpdateLanguage(ctx context.Context, userID int, lang user.Language) error {
	const query = "UPDATE users SET language = $1, updated_at = now() WHERE id = $2"

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, lang, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) scanUser(row *sql.Row) (*user.User, error) {
	u := new(user.User)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.Language,
		&u.Currency,
		&u.Balance,
		&u.IsStaff,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}
