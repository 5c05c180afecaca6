package mobileapp

import (
	"time"
)

// Platform of the application build.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

func (p Platform) Valid() bool {
	return p == Android || p == IOS
}

// Status of the application build pipeline.
type Status string

const (
	Draft     Status = "draft"
	Building  Status = "building"
	Published Status = "published"
	Archived  Status = "archived"
)

// Theme holds the color scheme of the mobile application. Stored as a
// single JSON document; the builder consumes it verbatim.
type Theme struct {
	TabsColor             string `json:"tabs_color,omitempty"`
	TabsIconColor         string `json:"tabs_icon_color,omitempty"`
	TabsIconSelectedColor string `json:"tabs_icon_selected_color,omitempty"`
	MainThemeColor        string `json:"main_theme_color,omitempty"`
	TextSecondaryColor    string `json:"text_secondary_color,omitempty"`
	PlayButtonBorderColor string `json:"play_button_border_color,omitempty"`
	VolumeButtonsColor    string `json:"volume_buttons_color,omitempty"`
	VolumeBarActiveColor  string `json:"volume_bar_active_color,omitempty"`
	VolumeBarInactive     string `json:"volume_bar_inactive_color,omitempty"`
	BgColor               string `json:"bg_color,omitempty"`
	BgColorGradient       string `json:"bg_color_gradient,omitempty"`
	FontColor             string `json:"font_color,omitempty"`
}

// App is a mobile application build configuration owned by a user.
type App struct {
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	WebsiteURL     string    `db:"website_url" json:"website_url,omitempty"`
	Email          string    `db:"email" json:"email"`
	Platform       Platform  `db:"platform" json:"platform"`
	Status         Status    `db:"status" json:"status"`
	PublicID       string    `db:"public_id" json:"public_id"`
	FCMAPIKey      string    `db:"fcm_api_key" json:"fcm_api_key,omitempty"`
	CopyrightTitle string    `db:"copyright_title" json:"copyright_title,omitempty"`
	CopyrightURL   string    `db:"copyright_url" json:"copyright_url,omitempty"`
	Theme          Theme     `db:"theme" json:"theme"`
	ID             int       `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Version        int       `db:"version" json:"version"`
	EnablePush     bool      `db:"enable_push" json:"enable_push"`
	IsPaid         bool      `db:"is_paid" json:"is_paid"`
}
