package catalog

import "time"

// Dictionary entry shared by countries, regions, cities, genres and
// languages of the public catalog. Name is the local spelling,
// NameEng the latin one.
type Entry struct {
	Name    string `db:"name" json:"name"`
	NameEng string `db:"name_eng" json:"name_eng,omitempty"`
	ID      int    `db:"id" json:"id"`
}

// Region belongs to a country.
type Region struct {
	Entry
	CountryID int `db:"country_id" json:"country_id"`
}

// City belongs to a country and optionally a region.
type City struct {
	Entry
	CountryID int      `db:"country_id" json:"country_id"`
	RegionID  *int     `db:"region_id" json:"region_id,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
}

// Station is a public catalog entry for a radio station.
type Station struct {
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	WebsiteURL  string    `db:"website_url" json:"website_url,omitempty"`
	StreamURL   string    `db:"stream_url" json:"stream_url"`
	ID          int       `db:"id" json:"id"`
	CountryID   int       `db:"country_id" json:"country_id"`
	RegionID    *int      `db:"region_id" json:"region_id,omitempty"`
	CityID      *int      `db:"city_id" json:"city_id,omitempty"`
	GenreID     int       `db:"genre_id" json:"genre_id"`
	Enabled     bool      `db:"enabled" json:"enabled"`
}
