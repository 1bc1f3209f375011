package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vizbase/internal/compare"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Artifacts ArtifactsConfig   `yaml:"artifacts"`
	Compare   CompareConfig     `yaml:"compare"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Capture   CaptureConfig     `yaml:"capture"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Artifacts.Validate(); err != nil {
		return err
	}
	if err := c.Compare.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Capture.Validate()
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

// ArtifactsConfig locates the Baselines and Diffs trees.
type ArtifactsConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the artifacts configuration.
func (c *ArtifactsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// CompareConfig tunes the comparator.
type CompareConfig struct {
	Threshold          float64 `yaml:"threshold"`
	DimensionTolerance int     `yaml:"dimension_tolerance"`
	MarkerColor        string  `yaml:"marker_color"`
}

// Validate validates the comparison configuration.
func (c *CompareConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DimensionTolerance, validation.Min(0)),
		validation.Field(&c.MarkerColor, validation.Required, validation.By(func(any) error {
			_, err := compare.ParseMarker(c.MarkerColor)
			return err
		})),
	)
}

// Comparator builds the comparator described by c.
func (c *CompareConfig) Comparator() (*compare.Comparator, error) {
	marker, err := compare.ParseMarker(c.MarkerColor)
	if err != nil {
		return nil, err
	}
	return compare.New(
		compare.WithDimensionTolerance(c.DimensionTolerance),
		compare.WithMarker(marker),
	), nil
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

// CaptureConfig holds settings for image sources.
type CaptureConfig struct {
	Browser BrowserConfig `yaml:"browser"`
	// AllowPrivateHosts lets URL captures reach loopback and metadata addresses.
	AllowPrivateHosts bool `yaml:"allow_private_hosts"`
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return c.Browser.Validate()
}

// BrowserConfig configures the Chromium region capture.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	Timeout         time.Duration `yaml:"timeout"`
	WrapperSelector string        `yaml:"wrapper_selector"`
	ViewportWidth   int           `yaml:"viewport_width"`
	ViewportHeight  int           `yaml:"viewport_height"`
}

// Validate validates the browser configuration.
func (c *BrowserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ViewportWidth, validation.Min(0)),
		validation.Field(&c.ViewportHeight, validation.Min(0)),
	)
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
		Artifacts: ArtifactsConfig{
			Root: "./Data/Images",
		},
		Compare: CompareConfig{
			Threshold:          compare.DefaultThreshold,
			DimensionTolerance: compare.DefaultDimensionTolerance,
			MarkerColor:        compare.DefaultMarkerHex,
		},
		SQLite: SQLiteConfig{
			Path: "./vizbase.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Capture: CaptureConfig{
			Browser: BrowserConfig{
				Headless:       true,
				Timeout:        30 * time.Second,
				ViewportWidth:  1280,
				ViewportHeight: 800,
			},
		},
	}
}
