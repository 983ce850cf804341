package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/storage"
)

// EnvConfigFile names an optional YAML file applied before the environment.
const EnvConfigFile = "WHISKEY_CONFIG_FILE"

const minSecretLen = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	Security      SecurityConfig      `yaml:"security"`
	Auth          AuthConfig          `yaml:"auth"`
	Email         EmailConfig         `yaml:"email"`
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML overlay that was applied, if any.
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	HealthPort      string        `yaml:"health_port"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the SQL backend.
type DatabaseConfig struct {
	Driver   string        `yaml:"driver"`
	DSN      string        `yaml:"dsn"`
	MaxConns int           `yaml:"max_conns"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig is only needed when a Redis-backed component is selected.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// SessionConfig configures cookie sessions.
type SessionConfig struct {
	Backend    string        `yaml:"backend"`
	Secret     string        `yaml:"secret"`
	Lifetime   time.Duration `yaml:"lifetime"`
	CookieName string        `yaml:"cookie_name"`
	Secure     bool          `yaml:"cookie_secure"`
	SameSite   string        `yaml:"cookie_samesite"`
	MemorySize int           `yaml:"memory_size"`
}

// SecurityConfig holds CSRF and rate limiting settings.
type SecurityConfig struct {
	CSRFSecret       string `yaml:"csrf_secret"`
	RateLimitBackend string `yaml:"ratelimit_backend"`
}

// AuthConfig tunes the password policy and verification flow.
type AuthConfig struct {
	BreachCheckEnabled bool          `yaml:"breach_check_enabled"`
	BreachAPIURL       string        `yaml:"breach_api_url"`
	BreachTimeout      time.Duration `yaml:"breach_timeout"`
	ResendCooldown     time.Duration `yaml:"resend_cooldown"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

// EmailConfig selects the outbound mail provider.
type EmailConfig struct {
	Provider      string `yaml:"provider"`
	ResendAPIKey  string `yaml:"resend_api_key"`
	ResendBaseURL string `yaml:"resend_base_url"`
	From          string `yaml:"from"`
	AppBaseURL    string `yaml:"app_base_url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	AuditRetention time.Duration `yaml:"audit_retention"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the built-in configuration for a single-node install.
func Default() *Config {
	db := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			HealthPort:      "9090",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   string(db.Dialect),
			DSN:      db.DSN,
			MaxConns: db.MaxConns,
			Timeout:  db.Timeout,
		},
		Session: SessionConfig{
			Backend:    "memory",
			Lifetime:   7 * 24 * time.Hour,
			CookieName: "whiskey_sid",
			SameSite:   "lax",
			MemorySize: 100000,
		},
		Security: SecurityConfig{
			RateLimitBackend: "memory",
		},
		Auth: AuthConfig{
			BreachCheckEnabled: true,
			BreachAPIURL:       "https://api.pwnedpasswords.com",
			BreachTimeout:      5 * time.Second,
			ResendCooldown:     60 * time.Second,
		},
		Email: EmailConfig{
			Provider:   "log",
			From:       "Whiskey Canon <noreply@localhost>",
			AppBaseURL: "http://localhost:5173",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			AuditRetention:     90 * 24 * time.Hour,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "whiskey-canon",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by WHISKEY_CONFIG_FILE, and WHISKEY_* environment variables, in that
// order of precedence (environment wins).
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("WHISKEY_HOST", s.Host)
	s.Port = getEnv("WHISKEY_PORT", s.Port)
	s.HealthPort = getEnv("WHISKEY_HEALTH_PORT", s.HealthPort)
	s.TrustProxy = getEnvBool("WHISKEY_TRUST_PROXY", s.TrustProxy)
	s.AllowedOrigins = getEnvList("WHISKEY_CORS_ORIGINS", s.AllowedOrigins)
	s.MaxBodyBytes = getEnvInt64("WHISKEY_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.ReadTimeout = getEnvDuration("WHISKEY_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WHISKEY_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("WHISKEY_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("WHISKEY_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	d := &c.Database
	d.Driver = getEnv("WHISKEY_DB_DRIVER", d.Driver)
	d.DSN = getEnv("WHISKEY_DB_DSN", d.DSN)
	d.MaxConns = getEnvInt("WHISKEY_DB_MAX_CONNS", d.MaxConns)
	d.Timeout = getEnvDuration("WHISKEY_DB_TIMEOUT", d.Timeout)

	r := &c.Redis
	r.URL = getEnv("WHISKEY_REDIS_URL", r.URL)
	r.Password = getEnv("WHISKEY_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("WHISKEY_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("WHISKEY_REDIS_POOL_SIZE", r.PoolSize)
	r.MaxRetries = getEnvInt("WHISKEY_REDIS_MAX_RETRIES", r.MaxRetries)

	ss := &c.Session
	ss.Backend = strings.ToLower(getEnv("WHISKEY_SESSION_BACKEND", ss.Backend))
	ss.Secret = getEnv("WHISKEY_SESSION_SECRET", ss.Secret)
	ss.Lifetime = getEnvDuration("WHISKEY_SESSION_LIFETIME", ss.Lifetime)
	ss.CookieName = getEnv("WHISKEY_COOKIE_NAME", ss.CookieName)
	ss.Secure = getEnvBool("WHISKEY_COOKIE_SECURE", ss.Secure)
	ss.SameSite = strings.ToLower(getEnv("WHISKEY_COOKIE_SAMESITE", ss.SameSite))
	ss.MemorySize = getEnvInt("WHISKEY_SESSION_MEMORY_SIZE", ss.MemorySize)

	sec := &c.Security
	sec.CSRFSecret = getEnv("WHISKEY_CSRF_SECRET", sec.CSRFSecret)
	sec.RateLimitBackend = strings.ToLower(getEnv("WHISKEY_RATELIMIT_BACKEND", sec.RateLimitBackend))

	a := &c.Auth
	a.BreachCheckEnabled = getEnvBool("WHISKEY_BREACH_CHECK_ENABLED", a.BreachCheckEnabled)
	a.BreachAPIURL = getEnv("WHISKEY_BREACH_API_URL", a.BreachAPIURL)
	a.BreachTimeout = getEnvDuration("WHISKEY_BREACH_TIMEOUT", a.BreachTimeout)
	a.ResendCooldown = getEnvDuration("WHISKEY_RESEND_COOLDOWN", a.ResendCooldown)
	a.BcryptCost = getEnvInt("WHISKEY_BCRYPT_COST", a.BcryptCost)

	e := &c.Email
	e.Provider = strings.ToLower(getEnv("WHISKEY_EMAIL_PROVIDER", e.Provider))
	e.ResendAPIKey = getEnv("WHISKEY_RESEND_API_KEY", e.ResendAPIKey)
	e.ResendBaseURL = getEnv("WHISKEY_RESEND_BASE_URL", e.ResendBaseURL)
	e.From = getEnv("WHISKEY_EMAIL_FROM", e.From)
	e.AppBaseURL = getEnv("WHISKEY_APP_BASE_URL", e.AppBaseURL)

	o := &c.Observability
	o.LogLevel = strings.ToLower(getEnv("WHISKEY_LOG_LEVEL", o.LogLevel))
	o.LogFormat = strings.ToLower(getEnv("WHISKEY_LOG_FORMAT", o.LogFormat))
	o.MetricsEnabled = getEnvBool("WHISKEY_METRICS_ENABLED", o.MetricsEnabled)
	o.AuditRetention = getEnvDuration("WHISKEY_AUDIT_RETENTION", o.AuditRetention)
	o.OTelEnabled = getEnvBool("WHISKEY_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WHISKEY_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WHISKEY_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WHISKEY_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WHISKEY_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("WHISKEY_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if _, err := storage.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid session backend: %s (must be memory or redis)", c.Session.Backend)
	}
	if len(c.Session.Secret) < minSecretLen {
		return fmt.Errorf("session secret must be at least %d bytes", minSecretLen)
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive")
	}
	switch c.Session.SameSite {
	case "lax", "strict":
	case "none":
		if !c.Session.Secure {
			return fmt.Errorf("SameSite=None requires secure cookies")
		}
	default:
		return fmt.Errorf("invalid cookie SameSite mode: %s", c.Session.SameSite)
	}

	if len(c.Security.CSRFSecret) < minSecretLen {
		return fmt.Errorf("CSRF secret must be at least %d bytes", minSecretLen)
	}
	switch c.Security.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.Security.RateLimitBackend)
	}

	if c.UsesRedis() && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when a redis backend is selected")
	}

	if c.Auth.BreachCheckEnabled && c.Auth.BreachAPIURL == "" {
		return fmt.Errorf("breach API URL is required when breach checking is enabled")
	}

	switch c.Email.Provider {
	case "log":
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("resend API key is required for the resend email provider")
		}
		if c.Email.From == "" {
			return fmt.Errorf("sender address is required for the resend email provider")
		}
	default:
		return fmt.Errorf("invalid email provider: %s (must be log or resend)", c.Email.Provider)
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// UsesRedis reports whether any component is configured to use Redis.
func (c *Config) UsesRedis() bool {
	return c.Session.Backend == "redis" || c.Security.RateLimitBackend == "redis"
}

// StorageConfig converts the database section for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Dialect, _ = storage.ParseDialect(c.Database.Driver)
	cfg.DSN = c.Database.DSN
	if c.Database.MaxConns > 0 {
		cfg.MaxConns = c.Database.MaxConns
	}
	if c.Database.Timeout > 0 {
		cfg.Timeout = c.Database.Timeout
	}
	return cfg
}

// RedisClientConfig converts the redis section for storage.NewRedisClient.
func (c *Config) RedisClientConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        c.Redis.URL,
		Password:   c.Redis.Password,
		DB:         c.Redis.DB,
		MaxRetries: c.Redis.MaxRetries,
		PoolSize:   c.Redis.PoolSize,
	}
}

// SameSiteMode maps the configured name onto http.SameSite.
func (s SessionConfig) SameSiteMode() http.SameSite {
	switch s.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
