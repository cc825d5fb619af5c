package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the guardrail service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Audit      AuditConfig      `mapstructure:"audit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Rules      RulesConfig      `mapstructure:"rules"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	EventLog   EventLogConfig   `mapstructure:"eventlog"`
	Trust      TrustConfig      `mapstructure:"trust"`
	ZeroTrust  ZeroTrustConfig  `mapstructure:"zerotrust"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	HSTS            bool          `mapstructure:"hsts"`
}

// DatabaseConfig selects the event store backend.
type DatabaseConfig struct {
	Driver         string         `mapstructure:"driver"`
	MigrationsPath string         `mapstructure:"migrations_path"`
	Postgres       PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ConnectionString builds a postgres:// URL with escaped credentials.
func (p PostgresConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

// RedisConfig holds the sliding-window store connection. When disabled the
// in-process store is used.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// NATSConfig holds NATS connection configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// OpenSearchConfig holds the event mirror target.
type OpenSearchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Insecure bool   `mapstructure:"insecure"`
	Index    string `mapstructure:"index"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// AuditConfig holds the audit signing key.
type AuditConfig struct {
	SigningKey string `mapstructure:"signing_key"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequireOrigin  bool     `mapstructure:"require_origin"`
	MaxAge         int      `mapstructure:"max_age"`
}

// RulesConfig points at the threat rule document. Empty means the built-in set.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

type RateLimitConfig struct {
	Window           time.Duration    `mapstructure:"window"`
	WarningThreshold float64          `mapstructure:"warning_threshold"`
	Defaults         map[string]int64 `mapstructure:"defaults"`
}

type EventLogConfig struct {
	MaxPayloadBytes      int           `mapstructure:"max_payload_bytes"`
	ClientLogPerMinute   int64         `mapstructure:"client_log_per_minute"`
	LowPriorityPerMinute int64         `mapstructure:"low_priority_per_minute"`
	AggregationThreshold int           `mapstructure:"aggregation_threshold"`
	AggregationWindow    time.Duration `mapstructure:"aggregation_window"`
	CriticalAuditEnabled bool          `mapstructure:"critical_audit_enabled"`
}

type TrustConfig struct {
	Capacity int           `mapstructure:"capacity"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
	Throttle time.Duration `mapstructure:"throttle"`
}

type ZeroTrustConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override (GUARDRAIL_SERVER_PORT, etc.)
	v.SetEnvPrefix("GUARDRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.hsts", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.migrations_path", "file://migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "guardrail")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "guardrail")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_conns", 25)
	v.SetDefault("database.postgres.min_conns", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.index", "guardrail-security-events")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "guardrail")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("audit.signing_key", "")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.require_origin", false)
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("rules.path", "")

	v.SetDefault("ratelimit.window", "1h")
	v.SetDefault("ratelimit.warning_threshold", 0.8)
	v.SetDefault("ratelimit.defaults", map[string]int64{
		"login_attempt":       5,
		"consultation_submit": 3,
		"password_reset":      2,
		"api_call":            100,
		"admin_action":        20,
		"default":             10,
	})

	v.SetDefault("eventlog.max_payload_bytes", 10240)
	v.SetDefault("eventlog.client_log_per_minute", 2)
	v.SetDefault("eventlog.low_priority_per_minute", 60)
	v.SetDefault("eventlog.aggregation_threshold", 10)
	v.SetDefault("eventlog.aggregation_window", "5m")
	v.SetDefault("eventlog.critical_audit_enabled", true)

	v.SetDefault("trust.capacity", 10000)
	v.SetDefault("trust.idle_ttl", "30m")
	v.SetDefault("trust.throttle", "1s")

	v.SetDefault("zerotrust.timezone", "UTC")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Postgres.Host == "" {
			errs = append(errs, errors.New("database.postgres.host is required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres or memory", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Audit.SigningKey == "" {
		errs = append(errs, errors.New("audit.signing_key is required"))
	}

	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}
	if c.RateLimit.WarningThreshold <= 0 || c.RateLimit.WarningThreshold > 1 {
		errs = append(errs, errors.New("ratelimit.warning_threshold must be in (0,1]"))
	}
	for action, limit := range c.RateLimit.Defaults {
		if limit < 1 {
			errs = append(errs, fmt.Errorf("ratelimit.defaults.%s must be at least 1", action))
		}
	}

	if c.EventLog.MaxPayloadBytes <= 0 {
		errs = append(errs, errors.New("eventlog.max_payload_bytes must be positive"))
	}
	if c.EventLog.AggregationThreshold < 1 {
		errs = append(errs, errors.New("eventlog.aggregation_threshold must be at least 1"))
	}

	if c.Trust.Capacity < 1 {
		errs = append(errs, errors.New("trust.capacity must be at least 1"))
	}

	if c.ZeroTrust.Timezone == "Local" {
		errs = append(errs, errors.New("zerotrust.timezone must be an IANA zone name, not Local"))
	} else if _, err := time.LoadLocation(c.ZeroTrust.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("zerotrust.timezone: %w", err))
	}

	if c.OpenSearch.Enabled && c.OpenSearch.URL == "" {
		errs = append(errs, errors.New("opensearch.url is required when enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when enabled"))
	}

	return errors.Join(errs...)
}

// Location returns the configured zero-trust timezone, falling back to UTC.
func (z ZeroTrustConfig) Location() *time.Location {
	loc, err := time.LoadLocation(z.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
