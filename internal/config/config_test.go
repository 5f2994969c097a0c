package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/internal/domain"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/credit?sslmode=disable")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("REDIS_SNAPSHOT_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Database.TxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Redis.SnapshotTTL)
	assert.Equal(t, 30, cfg.Business.ArrearsPeriodDays)
	assert.Equal(t, domain.InterestMethodDecliningBalance, cfg.DefaultInterestMethod())
	assert.Equal(t, "COP", cfg.Business.DefaultCurrency)
	assert.Equal(t, 5*time.Second, cfg.GetHealthTimeout())
	assert.Equal(t, "America/Bogota", cfg.SchedulerLocation().String())
	assert.True(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Database:  DatabaseConfig{URL: "postgres://localhost/credit", Driver: "postgres"},
			Redis:     RedisConfig{Enabled: true, SnapshotTTL: time.Minute},
			Scheduler: SchedulerConfig{Spec: "0 0 1 * * *", Timezone: "UTC"},
			Business:  BusinessConfig{ArrearsPeriodDays: 30, DefaultInterestMethod: "flat", DefaultCurrency: "COP"},
			Health:    HealthConfig{Timeout: "5s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "SERVER_PORT"},
		{name: "no database", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "DATABASE_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "DATABASE_DRIVER"},
		{name: "zero arrears period", mutate: func(c *Config) { c.Business.ArrearsPeriodDays = 0 }, wantErr: "ARREARS_PERIOD_DAYS"},
		{name: "unknown interest method", mutate: func(c *Config) { c.Business.DefaultInterestMethod = "simple" }, wantErr: "DEFAULT_INTEREST_METHOD"},
		{name: "bad currency", mutate: func(c *Config) { c.Business.DefaultCurrency = "PESO" }, wantErr: "DEFAULT_CURRENCY"},
		{name: "bad cron", mutate: func(c *Config) { c.Scheduler.Spec = "every day" }, wantErr: "SCHEDULER_SPEC"},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: "SCHEDULER_TIMEZONE"},
		{name: "zero ttl", mutate: func(c *Config) { c.Redis.SnapshotTTL = 0 }, wantErr: "REDIS_SNAPSHOT_TTL"},
		{name: "zero ttl with redis off", mutate: func(c *Config) { c.Redis.Enabled = false; c.Redis.SnapshotTTL = 0 }},
		{name: "bad health timeout", mutate: func(c *Config) { c.Health.Timeout = "soon" }, wantErr: "HEALTH_CHECK_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db", DatabaseConfig{URL: "postgres://u@h/db", Host: "ignored"}.DSN())

	d := DatabaseConfig{Host: "db", Port: "5432", Name: "credit", User: "app", Password: "s3cret", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:s3cret@db:5432/credit?sslmode=disable", d.DSN())
}
