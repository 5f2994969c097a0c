package config

import (
	"fmt"
	"net/url"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/segyhp/credit-engine/internal/domain"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"SERVER_PORT"`
	Host            string        `mapstructure:"SERVER_HOST"`
	Env             string        `mapstructure:"ENV"`
	ReadTimeout     time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	TxRetries       int           `mapstructure:"DATABASE_TX_RETRIES"`
}

type RedisConfig struct {
	Host        string        `mapstructure:"REDIS_HOST"`
	Port        string        `mapstructure:"REDIS_PORT"`
	Password    string        `mapstructure:"REDIS_PASSWORD"`
	DB          int           `mapstructure:"REDIS_DB"`
	KeyPrefix   string        `mapstructure:"REDIS_KEY_PREFIX"`
	SnapshotTTL time.Duration `mapstructure:"REDIS_SNAPSHOT_TTL"`
	Enabled     bool          `mapstructure:"REDIS_ENABLED"`
}

type SchedulerConfig struct {
	Spec     string `mapstructure:"SCHEDULER_SPEC"`
	Timezone string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	ArrearsPeriodDays     int    `mapstructure:"ARREARS_PERIOD_DAYS"`
	DefaultInterestMethod string `mapstructure:"DEFAULT_INTEREST_METHOD"`
	DefaultCurrency       string `mapstructure:"DEFAULT_CURRENCY"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":             "8080",
	"SERVER_HOST":             "0.0.0.0",
	"ENV":                     "development",
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "15s",
	"SERVER_SHUTDOWN_TIMEOUT": "30s",

	"DATABASE_URL":               "",
	"DATABASE_DRIVER":            "postgres",
	"DATABASE_HOST":              "",
	"DATABASE_PORT":              "5432",
	"DATABASE_NAME":              "",
	"DATABASE_USER":              "",
	"DATABASE_PASSWORD":          "",
	"DATABASE_SSLMODE":           "disable",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"DATABASE_TX_RETRIES":        3,

	"REDIS_HOST":         "localhost",
	"REDIS_PORT":         "6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"REDIS_KEY_PREFIX":   "credit-engine",
	"REDIS_SNAPSHOT_TTL": "10m",
	"REDIS_ENABLED":      true,

	"SCHEDULER_SPEC":     "0 0 1 * * *",
	"SCHEDULER_TIMEZONE": "America/Bogota",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"ARREARS_PERIOD_DAYS":     30,
	"DEFAULT_INTEREST_METHOD": string(domain.InterestMethodDecliningBalance),
	"DEFAULT_CURRENCY":        "COP",

	"HEALTH_CHECK_TIMEOUT": "5s",
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// every key needs a default so that AutomaticEnv picks it up on Unmarshal
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", c.Database.Driver)
	}

	if c.Database.TxRetries < 0 {
		return fmt.Errorf("DATABASE_TX_RETRIES cannot be negative")
	}

	if c.Business.ArrearsPeriodDays <= 0 {
		return fmt.Errorf("ARREARS_PERIOD_DAYS must be greater than 0")
	}

	if !domain.InterestMethod(c.Business.DefaultInterestMethod).Valid() {
		return fmt.Errorf("DEFAULT_INTEREST_METHOD must be flat or declining_balance, got %q", c.Business.DefaultInterestMethod)
	}

	if len(c.Business.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code")
	}

	if c.Redis.Enabled && c.Redis.SnapshotTTL <= 0 {
		return fmt.Errorf("REDIS_SNAPSHOT_TTL must be a positive duration")
	}

	if _, err := cron.NewParser(CronFields).Parse(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("SCHEDULER_SPEC must be a valid cron expression: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// CronFields is the cron syntax accepted by SCHEDULER_SPEC: six fields, seconds first.
const CronFields = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// DSN returns DATABASE_URL, or a postgres URL assembled from the individual fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DefaultInterestMethod returns the method used when a loan does not name one.
func (c *Config) DefaultInterestMethod() domain.InterestMethod {
	return domain.InterestMethod(c.Business.DefaultInterestMethod)
}

// SchedulerLocation returns the scheduler timezone.
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
