package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	model "github.com/alexey-v-paramonov/sc-api/internal/models/catalog"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
)

type Repository interface {
	GetStations(ctx context.Context, params ListStationsParams) ([]*model.Station, error)
	GetCountries(ctx context.Context) ([]*model.Entry, error)
	GetRegions(ctx context.Context, countryID int) ([]*model.Region, error)
	GetCities(ctx context.Context, countryID int) ([]*model.City, error)
	GetGenres(ctx context.Context) ([]*model.Entry, error)
	GetLanguages(ctx context.Context) ([]*model.Entry, error)
	CreateStation(ctx context.Context, st *model.Station) (*model.Station, error)
	UpdateStation(ctx context.Context, st *model.Station) error
	DeleteStation(ctx context.Context, id int) error
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

func (r *Repo) GetStations(ctx context.Context, params ListStationsParams) ([]*model.Station, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, name, description, website_url, stream_url,
			country_id, region_id, city_id, genre_id, enabled, created_at
		FROM catalog_stations
		WHERE enabled`)

	args := make([]any, 0, 5)
	add := func(clause string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND %s = $%d", clause, len(args))
	}

	if params.CountryID != nil {
		add("country_id", *params.CountryID)
	}
	if params.RegionID != nil {
		add("region_id", *params.RegionID)
	}
	if params.CityID != nil {
		add("city_id", *params.CityID)
	}
	if params.GenreID != nil {
		add("genre_id", *params.GenreID)
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		fmt.Fprintf(&sb, " AND name ILIKE $%d", len(args))
	}

	sb.WriteString(" ORDER BY name;")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	stations := make([]*model.Station, 0)

	for rows.Next() {
		var (
			st       model.Station
			website  sql.NullString
			regionID sql.NullInt64
			cityID   sql.NullInt64
			desc     sql.NullString
		)
		err = rows.Scan(
			&st.ID,
			&st.Name,
			&desc,
			&website,
			&st.StreamURL,
			&st.CountryID,
			&regionID,
			&cityID,
			&st.GenreID,
			&st.Enabled,
			&st.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		st.Description = desc.String
		st.WebsiteURL = website.String
		if regionID.Valid {
			v := int(regionID.Int64)
			st.RegionID = &v
		}
		if cityID.Valid {
			v := int(cityID.Int64)
			st.CityID = &v
		}
		stations = append(stations, &st)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stations, nil
}

func (r *Repo) GetCountries(ctx context.Context) ([]*model.Entry, error) {
	return r.entries(ctx, "catalog_countries")
}

func (r *Repo) GetGenres(ctx context.Context) ([]*model.Entry, error) {
	return r.entries(ctx, "catalog_genres")
}

func (r *Repo) GetLanguages(ctx context.Context) ([]*model.Entry, error) {
	return r.entries(ctx, "catalog_languages")
}

func (r *Repo) entries(ctx context.Context, table string) ([]*model.Entry, error) {
	query := fmt.Sprintf("SELECT id, name, name_eng FROM %s ORDER BY name", table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	entries := make([]*model.Entry, 0)

	for rows.Next() {
		var (
			e       model.Entry
			nameEng sql.NullString
		)
		if err = rows.Scan(&e.ID, &e.Name, &nameEng); err != nil {
			return nil, err
		}
		e.NameEng = nameEng.String
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Repo) GetRegions(ctx context.Context, countryID int) ([]*model.Region, error) {
	const query = `
		SELECT id, name, name_eng, country_id
		FROM catalog_regions
		WHERE country_id = $1
		ORDER BY name;
	`

	rows, err := r.db.QueryContext(ctx, query, countryID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	regions := make([]*model.Region, 0)

	for rows.Next() {
		var (
			reg     model.Region
			nameEng sql.NullString
		)
		if err = rows.Scan(&reg.ID, &reg.Name, &nameEng, &reg.CountryID); err != nil {
			return nil, err
		}
		reg.NameEng = nameEng.String
		regions = append(regions, &reg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return regions, nil
}

func (r *Repo) GetCities(ctx context.Context, countryID int) ([]*model.City, error) {
	const query = `
		SELECT id, name, name_eng, country_id, region_id, longitude, latitude
		FROM catalog_cities
		WHERE country_id = $1
		ORDER BY name;
	`

	rows, err := r.db.QueryContext(ctx, query, countryID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	cities := make([]*model.City, 0)

	for rows.Next() {
		var (
			c        model.City
			nameEng  sql.NullString
			regionID sql.NullInt64
			lon, lat sql.NullFloat64
		)
		err = rows.Scan(&c.ID, &c.Name, &nameEng, &c.CountryID, &regionID, &lon, &lat)
		if err != nil {
			return nil, err
		}
		c.NameEng = nameEng.String
		if regionID.Valid {
			v := int(regionID.Int64)
			c.RegionID = &v
		}
		if lon.Valid {
			c.Longitude = &lon.Float64
		}
		if lat.Valid {
			c.Latitude = &lat.Float64
		}
		cities = append(cities, &c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return cities, nil
}

func (r *Repo) CreateStation(ctx context.Context, st *model.Station) (*model.Station, error) {
	const query = `
		INSERT INTO catalog_stations
			(name, description, website_url, stream_url,
			country_id, region_id, city_id, genre_id, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			st.Name, st.Description, st.WebsiteURL, st.StreamURL,
			st.CountryID, st.RegionID, st.CityID, st.GenreID, st.Enabled).
		Scan(&st.ID, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create station: %w", err)
	}

	return st, nil
}

func (r *Repo) UpdateStation(ctx context.Context, st *model.Station) error {
	const query = `
		UPDATE catalog_stations SET
			name = $1,
			description = $2,
			website_url = $3,
			stream_url = $4,
			country_id = $5,
			region_id = $6,
			city_id = $7,
			genre_id = $8,
			enabled = $9
		WHERE id = $10;
	`

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).
		ExecContext(ctx, query,
			st.Name, st.Description, st.WebsiteURL, st.StreamURL,
			st.CountryID, st.RegionID, st.CityID, st.GenreID, st.Enabled, st.ID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *Repo) DeleteStation(ctx context.Context, id int) error {
	const query = "DELETE FROM catalog_stations WHERE id = $1"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
