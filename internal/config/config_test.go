package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AlgorithmHS256, cfg.Auth.Algorithm)
	assert.Equal(t, 7, cfg.Auth.TokenExpiryDays)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenDuration())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Server.IsDevelopment())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s")
	t.Setenv("AUTH_ALGORITHM", "v4.local")
	t.Setenv("AUTH_TOKEN_EXPIRY_DAYS", "1")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SERVER_READ_TIMEOUT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AlgorithmPasetoLocal, cfg.Auth.Algorithm)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.ConnectionString())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.TrustedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverPostgres},
			Auth:     AuthConfig{Secret: "s", Algorithm: AlgorithmHS256, TokenExpiryDays: 7},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown algorithm", func(c *Config) { c.Auth.Algorithm = "RS256" }, true},
		{"zero expiry", func(c *Config) { c.Auth.TokenExpiryDays = 0 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"sqlite without url", func(c *Config) { c.Database.Driver = DriverSQLite }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnectionString_Composed(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.ConnectionString())
}
