package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Quills QuillsConfig      `yaml:"quills"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Render RenderConfig      `yaml:"render"`
	MCP    MCPConfig         `yaml:"mcp"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Quills.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Render.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	LogJSON  bool       `yaml:"log_json"`
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

// QuillsConfig holds the quill bundle catalog configuration.
//
// Path is the directory scanned for quill bundles (one subdirectory per
// quill, each with a Quill.toml manifest). Default names the quill used
// when a document carries no QUILL tag. Watch enables live resync on
// filesystem changes.
type QuillsConfig struct {
	Path    string `yaml:"path"`
	Default string `yaml:"default"`
	Watch   bool   `yaml:"watch"`
}

// Validate validates the quills configuration.
func (c *QuillsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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

// RenderConfig holds render pipeline configuration.
//
// AssetsDir is where staged shared assets live (the assets API and the MCP
// upload tool write here). MaxBytes caps markdown input accepted by the
// parse and render endpoints; zero means no service-level cap beyond the
// parser's own limit.
type RenderConfig struct {
	AssetsDir string `yaml:"assets_dir"`
	MaxBytes  int64  `yaml:"max_bytes"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	if c.MaxBytes < 0 {
		return fmt.Errorf("render: max_bytes must not be negative")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AssetsDir, validation.Required),
	)
}

// MCPConfig controls the stdio MCP server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  true,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Quills: QuillsConfig{
			Path:  "./quills",
			Watch: true,
		},
		SQLite: SQLiteConfig{
			Path: "./quillmark.db",
		},
		Render: RenderConfig{
			AssetsDir: "./assets",
			MaxBytes:  10 << 20,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
