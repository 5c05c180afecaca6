package apps

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/mobileapp"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

type Repository interface {
	GetAppsByUser(ctx context.Context, userID int) ([]*mobileapp.App, error)
	GetApp(ctx context.Context, id int) (*mobileapp.App, error)
	CreateApp(ctx context.Context, app *mobileapp.App) (*mobileapp.App, error)
	UpdateApp(ctx context.Context, app *mobileapp.App) error
	SetAppStatus(ctx context.Context, id int, status mobileapp.Status) error
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

const appColumns = `id, public_id, user_id, title, description, website_url, email,
	platform, status, version, theme, enable_push, fcm_api_key,
	copyright_title, copyright_url, is_paid, created_at, updated_at`

func (r *Repo) GetAppsByUser(ctx context.Context, userID int) ([]*mobileapp.App, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM mobile_apps
		WHERE user_id = $1 AND status <> 'archived'
		ORDER BY id;
	`, appColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	apps := make([]*mobileapp.App, 0)

	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *Repo) GetApp(ctx context.Context, id int) (*mobileapp.App, error) {
	query := fmt.Sprintf("SELECT %s FROM mobile_apps WHERE id = $1", appColumns)

	app, err := scanApp(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return app, nil
}

func (r *Repo) CreateApp(ctx context.Context, app *mobileapp.App) (*mobileapp.App, error) {
	const query = `
		INSERT INTO mobile_apps
			(public_id, user_id, title, description, website_url, email,
			platform, status, version, theme, enable_push, fcm_api_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at;
	`

	theme, err := json.Marshal(app.Theme)
	if err != nil {
		return nil, fmt.Errorf("marshal theme: %w", err)
	}

	err = r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			app.PublicID, app.UserID, app.Title, app.Description,
			app.WebsiteURL, app.Email, app.Platform, app.Status,
			app.Version, theme, app.EnablePush, app.FCMAPIKey).
		Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}

	return app, nil
}

func (r *Repo) UpdateApp(ctx context.Context, app *mobileapp.App) error {
	const query = `
		UPDATE mobile_apps SET
			title = $1,
			description = $2,
			website_url = $3,
			email = $4,
			version = $5,
			theme = $6,
			enable_push = $7,
			fcm_api_key = $8,
			copyright_title = $9,
			copyright_url = $10,
			updated_at = now()
		WHERE id = $11;
	`

	theme, err := json.Marshal(app.Theme)
	if err != nil {
		return fmt.Errorf("marshal theme: %w", err)
	}

	_, err = r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query,
			app.Title, app.Description, app.WebsiteURL, app.Email,
			app.Version, theme, app.EnablePush, app.FCMAPIKey,
			app.CopyrightTitle, app.CopyrightURL, app.ID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) SetAppStatus(ctx context.Context, id int, status mobileapp.Status) error {
	const query = "UPDATE mobile_apps SET status = $1, updated_at = now() WHERE id = $2"

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApp(row scanner) (*mobileapp.App, error) {
	var (
		app     mobileapp.App
		theme   []byte
		website sql.NullString
		fcmKey  sql.NullString
		crTitle sql.NullString
		crURL   sql.NullString
		desc    sql.NullString
	)

	err := row.Scan(
		&app.ID,
		&app.PublicID,
		&app.UserID,
		&app.Title,
		&desc,
		&website,
		&app.Email,
		&app.Platform,
		&app.Status,
		&app.Version,
		&theme,
		&app.EnablePush,
		&fcmKey,
		&crTitle,
		&crURL,
		&app.IsPaid,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Description = desc.String
	app.WebsiteURL = website.String
	app.FCMAPIKey = fcmKey.String
	app.CopyrightTitle = crTitle.String
	app.CopyrightURL = crURL.String

	if len(theme) > 0 {
		if err = json.Unmarshal(theme, &app.Theme); err != nil {
			return nil, fmt.Errorf("unmarshal theme: %w", err)
		}
	}

	return &app, nil
}
