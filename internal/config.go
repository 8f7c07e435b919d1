package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/mosaic/internal/controller"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Library LibraryConfig     `yaml:"library"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Layout  LayoutConfig      `yaml:"layout"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Layout.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig holds the image library directory and the file types it
// indexes.
type LibraryConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	if len(c.Extensions) == 0 {
		c.Extensions = storage.DefaultExtensions
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.By(extension))),
	)
}

func extension(v any) error {
	s, _ := v.(string)
	if strings.ContainsAny(strings.TrimPrefix(s, "."), "./\\ ") {
		return fmt.Errorf("invalid extension %q", s)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LayoutConfig holds the gallery geometry defaults.
type LayoutConfig struct {
	TargetRowHeight  float64 `yaml:"target_row_height"`
	Gap              float64 `yaml:"gap"`
	GridCell         float64 `yaml:"grid_cell"`
	Overscan         int     `yaml:"overscan"`
	ProbeConcurrency int     `yaml:"probe_concurrency"`
	AssetBaseURL     string  `yaml:"asset_base_url"`
	DefaultMode      string  `yaml:"default_mode"`
}

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	if c.DefaultMode == "" {
		c.DefaultMode = string(gallery.ModeLoose)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.TargetRowHeight, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Gap, validation.Min(0.0)),
		validation.Field(&c.GridCell, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Overscan, validation.Min(0), validation.Max(50)),
		validation.Field(&c.ProbeConcurrency, validation.Required, validation.Min(1), validation.Max(256)),
		validation.Field(&c.AssetBaseURL, validation.Required, is.URL),
		validation.Field(&c.DefaultMode, validation.In(string(gallery.ModeGrid), string(gallery.ModeLoose))),
	)
}

// Geometry returns the layout defaults with the given container width.
func (c *LayoutConfig) Geometry(width float64) gallery.Geometry {
	return gallery.Geometry{
		ContainerWidth:  width,
		TargetRowHeight: c.TargetRowHeight,
		Gap:             c.Gap,
		GridCell:        c.GridCell,
	}
}

// Settings returns the per-session controller settings.
func (c *LayoutConfig) Settings() controller.Settings {
	return controller.Settings{
		Mode:            gallery.Mode(c.DefaultMode),
		TargetRowHeight: c.TargetRowHeight,
		Gap:             c.Gap,
		GridCell:        c.GridCell,
		Overscan:        c.Overscan,
		AssetBaseURL:    c.AssetBaseURL,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Path:       "./library",
			Extensions: storage.DefaultExtensions,
		},
		SQLite: SQLiteConfig{
			Path: "./mosaic.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Layout: LayoutConfig{
			TargetRowHeight:  250,
			Gap:              6,
			GridCell:         200,
			Overscan:         1,
			ProbeConcurrency: 8,
			AssetBaseURL:     "http://asset.localhost",
			DefaultMode:      string(gallery.ModeLoose),
		},
	}
}
