package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"prana-chat/internal/conversation"
	"prana-chat/internal/geo"
	"prana-chat/internal/ui"
)

// Config holds all application configuration
type Config struct {
	// Service settings
	BaseURL   string        `mapstructure:"base_url"`
	UserID    string        `mapstructure:"user_id"`
	SessionID string        `mapstructure:"session_id"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// Location settings
	Location    LocationConfig `mapstructure:"location"`
	IPInfoToken string         `mapstructure:"ipinfo_token"`

	// Display settings
	Style string `mapstructure:"style"`
	Plain bool   `mapstructure:"plain"`

	// Logging settings
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// LocationConfig selects the location source. Latitude and Longitude are
// nil unless configured.
type LocationConfig struct {
	Mode      string   `mapstructure:"mode"`
	Latitude  *float64 `mapstructure:"latitude"`
	Longitude *float64 `mapstructure:"longitude"`
}

// Static returns the configured coordinates, or nil when either is missing.
func (l LocationConfig) Static() *geo.Static {
	if l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return &geo.Static{Latitude: *l.Latitude, Longitude: *l.Longitude}
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		// Service defaults
		BaseURL:   "http://localhost:8000/api",
		UserID:    "user",
		SessionID: conversation.DefaultSessionID,
		Timeout:   60 * time.Second,

		// Location defaults
		Location: LocationConfig{Mode: geo.ModeAuto},

		// Display defaults
		Style: "auto",
		Plain: false,

		// Logging defaults
		LogLevel: "",
		LogFile:  "",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if c.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if !ui.ValidStyle(c.Style) {
		return fmt.Errorf("unknown style %q (want one of %v)", c.Style, ui.Styles)
	}

	switch c.Location.Mode {
	case geo.ModeAuto, geo.ModeIPInfo, geo.ModeOff:
	case geo.ModeStatic:
		if c.Location.Static() == nil {
			return fmt.Errorf("static location requires latitude and longitude")
		}
	default:
		return fmt.Errorf("unknown location mode %q", c.Location.Mode)
	}
	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be set together")
	}
	if s := c.Location.Static(); s != nil && !geo.ValidCoordinates(s.Latitude, s.Longitude) {
		return fmt.Errorf("coordinates out of range: %v, %v", s.Latitude, s.Longitude)
	}
	return nil
}

// ExpandHome expands the ~ in file paths to the user's home directory
func ExpandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		return filepath.Join(homeDir(), path[1:])
	}
	return path
}

// homeDir returns the user's home directory
func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
