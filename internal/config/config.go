package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/finscale/internal/common"
)

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"
)

// Config holds the resolved application settings.
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Telegram   TelegramConfig
	Recurrence RecurrenceConfig
	Session    SessionConfig
	Logging    LoggingConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// TelegramConfig configures the chat transport. An empty token disables the bot.
type TelegramConfig struct {
	Token   string
	Debug   bool
	Timeout int
}

// RecurrenceConfig configures the background sweep.
type RecurrenceConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// SessionConfig configures conversation state storage.
type SessionConfig struct {
	Backend string
	MaxAge  time.Duration
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("telegram.timeout", 60)
	v.SetDefault("recurrence.interval", time.Hour)
	v.SetDefault("recurrence.run_on_start", true)
	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load resolves a Config from v, applying defaults and validating the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Telegram: TelegramConfig{
			Token:   v.GetString("telegram.token"),
			Debug:   v.GetBool("telegram.debug"),
			Timeout: v.GetInt("telegram.timeout"),
		},
		Recurrence: RecurrenceConfig{
			Interval:   v.GetDuration("recurrence.interval"),
			RunOnStart: v.GetBool("recurrence.run_on_start"),
		},
		Session: SessionConfig{
			Backend: v.GetString("session.backend"),
			MaxAge:  v.GetDuration("session.max_age"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Recurrence.Interval <= 0 {
		return fmt.Errorf("%w: recurrence.interval must be positive", common.ErrInvalidConfig)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", common.ErrInvalidConfig)
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendSQLite:
	default:
		return fmt.Errorf("%w: unknown session.backend %q", common.ErrInvalidConfig, c.Session.Backend)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("%w: session.max_age must be positive", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// RequireServerSecrets checks the settings needed by the serve command.
func (c *Config) RequireServerSecrets() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret", common.ErrMissingConfig)
	}
	return nil
}
