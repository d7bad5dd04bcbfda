package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Loads a .env file, if present, into the process environment.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/forgo/vitals/internal/database"
)

// EnvPrefix is the prefix of every configuration variable. Nesting levels
// are separated by a double underscore:
//
//	VITALS_DATABASE__AUTH__METHOD -> database.auth.method
const EnvPrefix = "VITALS_"

// Config holds all application configuration
type Config struct {
	Env      string         `koanf:"env" validate:"required,oneof=development production test"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Retry    RetryConfig    `koanf:"retry"`
	Health   HealthConfig   `koanf:"health"`
	Log      LogConfig      `koanf:"log"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	URL       string     `koanf:"url" validate:"required,url"`
	Namespace string     `koanf:"namespace" validate:"required"`
	Database  string     `koanf:"database" validate:"required"`
	Auth      AuthConfig `koanf:"auth"`

	// TxWait bounds how long a query waits behind a running transaction.
	TxWait time.Duration `koanf:"tx_wait" validate:"min=0"`
}

// AuthConfig selects the single sign-in strategy
type AuthConfig struct {
	Method   string `koanf:"method" validate:"required,oneof=none root namespace database record token"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Access   string `koanf:"access"`
	Token    string `koanf:"token"`
}

// RetryConfig bounds connection establishment
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"min=1ms,max=10s"`
	MaxDelay    time.Duration `koanf:"max_delay" validate:"max=2m,gtefield=BaseDelay"`
	Multiplier  float64       `koanf:"multiplier" validate:"min=1,max=10"`
	Jitter      float64       `koanf:"jitter" validate:"min=0,max=1"`
}

// HealthConfig holds liveness probe settings
type HealthConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"min=1ms,max=1m"`
	Query   string        `koanf:"query" validate:"required"`
	// Interval between background probes; 0 disables the monitor.
	Interval time.Duration `koanf:"interval" validate:"min=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level              string        `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format             string        `koanf:"format" validate:"oneof=json console"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold" validate:"min=0"`
}

// TracingConfig toggles OpenTelemetry query spans
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// Default returns the configuration used for any variable that is not set.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:       "ws://localhost:8000",
			Namespace: "vitals",
			Database:  "main",
			Auth: AuthConfig{
				Method:   string(database.AuthRoot),
				Username: "root",
				Password: "root",
			},
			TxWait: database.DefaultTxWait,
		},
		Retry: RetryConfig{
			MaxAttempts: database.DefaultRetryMaxAttempts,
			BaseDelay:   database.DefaultRetryBaseDelay,
			MaxDelay:    database.DefaultRetryMaxDelay,
			Multiplier:  database.DefaultRetryMultiplier,
			Jitter:      database.DefaultRetryJitter,
		},
		Health: HealthConfig{
			Timeout:  database.DefaultHealthTimeout,
			Query:    database.DefaultHealthQuery,
			Interval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:              "info",
			Format:             "json",
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Tracing: TracingConfig{
			ServiceName: "vitals",
		},
	}
}

// Load reads configuration from VITALS_* environment variables on top of
// Default and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the credential fields the selected
// auth method needs. It returns an error describing all validation failures,
// or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if _, err := c.Credentials(); err != nil {
		errs = append(errs, err)
	}

	if c.IsProduction() && c.Database.Auth.Method == string(database.AuthNone) {
		errs = append(errs, errors.New("VITALS_DATABASE__AUTH__METHOD=none is not allowed in production"))
	}

	return errors.Join(errs...)
}

// fieldError names the environment variable behind a failed struct field.
func fieldError(fe validator.FieldError) error {
	// Namespace is Config.Database.Auth.Method; drop the root type.
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = strings.ToUpper(snake(p))
	}
	name := EnvPrefix + strings.Join(parts, "__")

	if fe.Param() != "" {
		return fmt.Errorf("%s failed %s=%s (got %v)", name, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s failed %s", name, fe.Tag())
}

// snake converts a Go field name such as MaxAttempts or URL to max_attempts
// or url.
func snake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prev := rune(s[i-1])
			nextLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
			if (prev >= 'a' && prev <= 'z') || nextLower {
				sb.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Credentials converts the auth settings into database credentials.
func (c *Config) Credentials() (database.Credentials, error) {
	method, err := database.ParseAuthMethod(c.Database.Auth.Method)
	if err != nil {
		return database.Credentials{}, fmt.Errorf("VITALS_DATABASE__AUTH__METHOD: %w", err)
	}
	creds := database.Credentials{
		Method:   method,
		Username: c.Database.Auth.Username,
		Password: c.Database.Auth.Password,
		Access:   c.Database.Auth.Access,
		Token:    c.Database.Auth.Token,
	}
	if err := creds.Validate(); err != nil {
		return database.Credentials{}, fmt.Errorf("VITALS_DATABASE__AUTH: %w", err)
	}
	return creds, nil
}

// ManagerConfig builds the database.Manager configuration.
func (c *Config) ManagerConfig() (database.Config, error) {
	creds, err := c.Credentials()
	if err != nil {
		return database.Config{}, err
	}
	return database.Config{
		URL:         c.Database.URL,
		Namespace:   c.Database.Namespace,
		Database:    c.Database.Database,
		Credentials: creds,
		Retry: database.RetryPolicy{
			MaxAttempts: c.Retry.MaxAttempts,
			BaseDelay:   c.Retry.BaseDelay,
			MaxDelay:    c.Retry.MaxDelay,
			Multiplier:  c.Retry.Multiplier,
			Jitter:      c.Retry.Jitter,
		},
		Health: database.HealthPolicy{
			Timeout: c.Health.Timeout,
			Query:   c.Health.Query,
		},
		TxWait: c.Database.TxWait,
	}, nil
}
