package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// StoreMemory keeps deployment settings in process memory
	StoreMemory = "memory"
	// StorePostgres keeps deployment settings in PostgreSQL
	StorePostgres = "postgres"

	// AuditSinkLog writes authentication rejections to the application log
	AuditSinkLog = "log"
	// AuditSinkPostgres writes authentication rejections to PostgreSQL
	AuditSinkPostgres = "postgres"

	minProductionKeyLength = 32
)

var validate = validator.New()

// Config represents the complete application configuration. It is read
// once at startup and treated as immutable afterwards.
type Config struct {
	Environment   string `validate:"required"`
	Server        ServerConfig
	JWT           JWTConfig
	Settings      SettingsConfig
	Database      DatabaseConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int `validate:"min=1,max=65535"`
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// JWTConfig holds bearer token validation settings
type JWTConfig struct {
	SignatureKey string        `validate:"required"`
	Issuer       string        `validate:"required"`
	Audience     string        `validate:"required"`
	ClockSkew    time.Duration `validate:"gte=0s"`
}

// SettingsConfig says where the deployment settings come from and where
// they are kept
type SettingsConfig struct {
	Path  string `validate:"required"`
	Store string `validate:"oneof=memory postgres"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuditConfig holds authentication rejection audit settings
type AuditConfig struct {
	Sink        string `validate:"oneof=log postgres"`
	BufferSize  int    `validate:"min=1"`
	WorkerCount int    `validate:"min=1"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	var envErrs []error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		value, err := getEnvAsDuration(key, defaultValue)
		if err != nil {
			envErrs = append(envErrs, err)
		}
		return value
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        duration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://localhost:*"}),
		},
		JWT: JWTConfig{
			SignatureKey: getEnv("JWT_SIGNATURE_KEY", ""),
			Issuer:       getEnv("JWT_ISSUER", ""),
			Audience:     getEnv("JWT_AUDIENCE", ""),
			ClockSkew:    duration("JWT_CLOCK_SKEW", 0),
		},
		Settings: SettingsConfig{
			Path:  getEnv("DEPLOY_SETTINGS_PATH", ""),
			Store: getEnv("SETTINGS_STORE", StoreMemory),
		},
		Database: loadDatabaseConfig(duration),
		Audit: AuditConfig{
			Sink:        getEnv("AUDIT_SINK", AuditSinkLog),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Unparsable durations must not fall back to defaults
	if err := errors.Join(envErrs...); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return fmt.Errorf("%s: failed on %q", fieldErrs[0].Namespace(), fieldErrs[0].Tag())
		}
		return err
	}

	if c.IsProduction() && len(c.JWT.SignatureKey) < minProductionKeyLength {
		return fmt.Errorf("jwt signature key must be at least %d bytes in production", minProductionKeyLength)
	}

	if c.UsesDatabase() && c.Database.ConnectionString == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	return nil
}

// UsesDatabase reports whether any component needs PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.Settings.Store == StorePostgres || c.Audit.Sink == AuditSinkPostgres
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig(duration func(string, time.Duration) time.Duration) DatabaseConfig {
	cfg := DatabaseConfig{
		ConnectionString: getEnv("DATABASE_URL", ""),
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if cfg.ConnectionString != "" {
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "deploy")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "deploy_service")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
