package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/SilverRainZ/loveletter/internal/address"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	IMAP    IMAPConfig        `yaml:"imap"`
	Archive ArchiveConfig     `yaml:"archive"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Runtime RuntimeConfig     `yaml:"runtime"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.IMAP.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Runtime.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// IMAPConfig holds mailbox polling configuration. Leaving Host empty
// disables polling entirely; the archive then only serves what is
// already on disk.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
}

// Enabled returns true when a mailbox is configured.
func (c *IMAPConfig) Enabled() bool {
	return c.Host != ""
}

// Validate validates the IMAP configuration. Fields are checked only
// when polling is enabled.
func (c *IMAPConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
		validation.Field(&c.Mailbox, validation.Required),
	)
}

// ArchiveConfig holds the letter archive layout and policy.
type ArchiveConfig struct {
	LetterDir  string `yaml:"letter_dir"`
	DocDir     string `yaml:"doc_dir"`
	CreateDirs bool   `yaml:"create_dirs"`

	Git        bool `yaml:"git"`
	Push       bool `yaml:"push"`
	PreCleanup bool `yaml:"pre_cleanup"`
	Overwrite  bool `yaml:"overwrite"`
	Retry      int  `yaml:"retry"`

	AllowedFrom address.List `yaml:"allowed_from"`
	AllowedTo   address.List `yaml:"allowed_to"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LetterDir, validation.Required),
		validation.Field(&c.DocDir, validation.Required),
		validation.Field(&c.Retry, validation.Min(0)),
		validation.Field(&c.AllowedFrom, validation.Required),
		validation.Field(&c.AllowedTo, validation.Required),
	); err != nil {
		return err
	}
	for _, e := range append(append(address.List{}, c.AllowedFrom...), c.AllowedTo...) {
		if e.Address == "" {
			return fmt.Errorf("archive: allow-list entry %q has no address", e.Name)
		}
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

// RuntimeConfig holds polling runtime configuration.
type RuntimeConfig struct {
	Interval int `yaml:"interval"` // seconds between mailbox polls
}

// Validate validates the runtime configuration.
func (c *RuntimeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(1)),
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		IMAP: IMAPConfig{
			Port:    993,
			Mailbox: "INBOX",
		},
		Archive: ArchiveConfig{
			LetterDir:  "./letters",
			DocDir:     "./docs",
			CreateDirs: true,
			Retry:      3,
		},
		SQLite: SQLiteConfig{
			Path: "./loveletter.db",
		},
		Runtime: RuntimeConfig{
			Interval: 60,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
