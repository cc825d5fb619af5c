package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, int64(5), cfg.RateLimit.Defaults["login_attempt"])
	assert.Equal(t, int64(2), cfg.RateLimit.Defaults["password_reset"])
	assert.Equal(t, int64(10), cfg.RateLimit.Defaults["default"])
	assert.Equal(t, 10240, cfg.EventLog.MaxPayloadBytes)
	assert.Equal(t, int64(2), cfg.EventLog.ClientLogPerMinute)
	assert.Equal(t, 5*time.Minute, cfg.EventLog.AggregationWindow)
	assert.Equal(t, 30*time.Minute, cfg.Trust.IdleTTL)
	assert.Equal(t, time.Second, cfg.Trust.Throttle)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
database:
  driver: memory
cors:
  allowed_origins:
    - https://example.com
    - "*.example.com"
ratelimit:
  defaults:
    login_attempt: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("GUARDRAIL_SERVER_PORT", "9100")
	t.Setenv("GUARDRAIL_AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://example.com", "*.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(7), cfg.RateLimit.Defaults["login_attempt"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "secret"
		cfg.Audit.SigningKey = "audit"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "auth.jwt_secret"},
		{name: "missing audit key", mutate: func(c *Config) { c.Audit.SigningKey = "" }, wantErr: "audit.signing_key"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "zero limit", mutate: func(c *Config) { c.RateLimit.Defaults["api_call"] = 0 }, wantErr: "ratelimit.defaults.api_call"},
		{name: "bad timezone", mutate: func(c *Config) { c.ZeroTrust.Timezone = "Mars/Olympus" }, wantErr: "zerotrust.timezone"},
		{name: "local timezone", mutate: func(c *Config) { c.ZeroTrust.Timezone = "Local" }, wantErr: "IANA zone name"},
		{name: "opensearch without url", mutate: func(c *Config) {
			c.OpenSearch.Enabled = true
			c.OpenSearch.URL = ""
		}, wantErr: "opensearch.url"},
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

func TestPostgresConnectionString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "guard", Password: "p@ss/word", Database: "guardrail", SSLMode: "disable"}
	assert.Equal(t, "postgres://guard:p%40ss%2Fword@db:5432/guardrail?sslmode=disable", p.ConnectionString())
}
