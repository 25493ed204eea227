package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// API contains HTTP server configuration
	API APIConfig `yaml:"api"`
	// Auth contains token and lockout configuration
	Auth AuthConfig `yaml:"auth"`
	// Database contains database configuration
	Database DatabaseConfig `yaml:"database"`
	// Email contains email service configuration
	Email EmailConfig `yaml:"email"`
	// Audit contains audit pipeline configuration
	Audit AuditConfig `yaml:"audit"`
	// RateLimit contains request throttling configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// Jobs contains maintenance scheduler configuration
	Jobs JobsConfig `yaml:"jobs"`
	// Log contains logger configuration
	Log LogConfig `yaml:"log"`
}

// APIConfig contains API server settings
type APIConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers
	// set the client IP. Empty means the socket address is used.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret signs access tokens
	JWTSecret string `yaml:"jwt_secret"`
	// JWTExpiresIn is the access token lifetime
	JWTExpiresIn time.Duration `yaml:"jwt_expires_in"`
	// RefreshTokenSecret signs refresh tokens and must differ from JWTSecret
	RefreshTokenSecret string `yaml:"refresh_token_secret"`
	// RefreshTokenExpiresIn is the refresh token (and session) lifetime
	RefreshTokenExpiresIn time.Duration `yaml:"refresh_token_expires_in"`
	VerificationTokenTTL  time.Duration `yaml:"verification_token_ttl"`
	PasswordResetTTL      time.Duration `yaml:"password_reset_ttl"`
	MaxLoginAttempts      int           `yaml:"max_login_attempts"`
	LockTime              time.Duration `yaml:"lock_time"`
	// EnforceSessions rejects access tokens whose session is no longer active
	EnforceSessions bool   `yaml:"enforce_sessions"`
	TOTPIssuer      string `yaml:"totp_issuer"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"name"`
	SSLMode        string `yaml:"ssl_mode"`
	MigrationsPath string `yaml:"migrations_path"`
}

// EmailConfig contains email service settings
type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	FromAddress  string `yaml:"from"`
	// FrontendURL is the base URL used in email links
	FrontendURL string `yaml:"frontend_url"`
}

// AuditConfig contains audit recorder settings
type AuditConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	Workers      int           `yaml:"workers"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// AMQPURL enables the RabbitMQ sink when set
	AMQPURL       string `yaml:"amqp_url"`
	AMQPQueue     string `yaml:"amqp_queue"`
	SecurityQueue string `yaml:"security_queue"`
	// GeoIPDBPath points to a MaxMind City database; empty disables lookups
	GeoIPDBPath string `yaml:"geoip_db_path"`
}

// RateLimitConfig contains the global limiter and the auth route limiter
type RateLimitConfig struct {
	Requests int `yaml:"requests"` // requests allowed per window
	Window   int `yaml:"window"`   // window in seconds
	Burst    int `yaml:"burst"`
	// AuthWindow and AuthMax throttle credential endpoints
	AuthWindow    time.Duration `yaml:"auth_window"`
	AuthMax       int           `yaml:"auth_max"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// JobsConfig contains maintenance job schedules
type JobsConfig struct {
	Enabled                bool          `yaml:"enabled"`
	SessionExpirySchedule  string        `yaml:"session_expiry_schedule"`
	TokenSweepSchedule     string        `yaml:"token_sweep_schedule"`
	TokenSweepGrace        time.Duration `yaml:"token_sweep_grace"`
	RateLimitPruneSchedule string        `yaml:"rate_limit_prune_schedule"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration populated with default values
func Default() *Config {
	return &Config{
		API: APIConfig{
			Port:            "5000",
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			JWTExpiresIn:          15 * time.Minute,
			RefreshTokenExpiresIn: 7 * 24 * time.Hour,
			VerificationTokenTTL:  24 * time.Hour,
			PasswordResetTTL:      10 * time.Minute,
			MaxLoginAttempts:      5,
			LockTime:              time.Hour,
			EnforceSessions:       true,
			TOTPIssuer:            "authguard",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			DBName:         "authguard",
			SSLMode:        "disable",
			MigrationsPath: "migrations",
		},
		Email: EmailConfig{
			SMTPPort:    587,
			FromAddress: "noreply@authguard.local",
			FrontendURL: "http://localhost:3000",
		},
		Audit: AuditConfig{
			QueueSize:     1024,
			Workers:       1,
			WriteTimeout:  5 * time.Second,
			AMQPQueue:     "authguard.audit",
			SecurityQueue: "authguard.security",
		},
		RateLimit: RateLimitConfig{
			Requests:   1000,
			Window:     60,
			Burst:      50,
			AuthWindow: 15 * time.Minute,
			AuthMax:    100,
		},
		Jobs: JobsConfig{
			Enabled:                true,
			SessionExpirySchedule:  "*/5 * * * *",
			TokenSweepSchedule:     "0 * * * *",
			TokenSweepGrace:        7 * 24 * time.Hour,
			RateLimitPruneSchedule: "*/10 * * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays values from a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays values from environment variables and validates the result
func (c *Config) LoadFromEnv() error {
	c.API.Port = getEnvOrDefault("PORT", c.API.Port)
	c.API.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.API.ShutdownTimeout)
	c.API.TrustedProxies = getEnvAsList("TRUSTED_PROXIES", c.API.TrustedProxies)

	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MigrationsPath = getEnvOrDefault("DB_MIGRATIONS_PATH", c.Database.MigrationsPath)

	c.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTExpiresIn = getEnvAsDuration("JWT_EXPIRES_IN", c.Auth.JWTExpiresIn)
	c.Auth.RefreshTokenSecret = getEnvOrDefault("REFRESH_TOKEN_SECRET", c.Auth.RefreshTokenSecret)
	c.Auth.RefreshTokenExpiresIn = getEnvAsDuration("REFRESH_TOKEN_EXPIRES_IN", c.Auth.RefreshTokenExpiresIn)
	c.Auth.VerificationTokenTTL = getEnvAsDuration("VERIFICATION_TOKEN_TTL", c.Auth.VerificationTokenTTL)
	c.Auth.PasswordResetTTL = getEnvAsDuration("PASSWORD_RESET_TTL", c.Auth.PasswordResetTTL)
	c.Auth.MaxLoginAttempts = getEnvAsInt("MAX_LOGIN_ATTEMPTS", c.Auth.MaxLoginAttempts)
	c.Auth.LockTime = getEnvAsDuration("LOCK_TIME", c.Auth.LockTime)
	c.Auth.EnforceSessions = getEnvAsBool("AUTH_ENFORCE_SESSIONS", c.Auth.EnforceSessions)
	c.Auth.TOTPIssuer = getEnvOrDefault("TOTP_ISSUER", c.Auth.TOTPIssuer)

	c.Email.SMTPHost = getEnvOrDefault("SMTP_HOST", c.Email.SMTPHost)
	c.Email.SMTPPort = getEnvAsInt("SMTP_PORT", c.Email.SMTPPort)
	c.Email.SMTPUsername = getEnvOrDefault("SMTP_USERNAME", c.Email.SMTPUsername)
	c.Email.SMTPPassword = getEnvOrDefault("SMTP_PASSWORD", c.Email.SMTPPassword)
	c.Email.FromAddress = getEnvOrDefault("EMAIL_FROM", c.Email.FromAddress)
	c.Email.FrontendURL = getEnvOrDefault("FRONTEND_URL", c.Email.FrontendURL)

	c.Audit.QueueSize = getEnvAsInt("AUDIT_QUEUE_SIZE", c.Audit.QueueSize)
	c.Audit.Workers = getEnvAsInt("AUDIT_WORKERS", c.Audit.Workers)
	c.Audit.WriteTimeout = getEnvAsDuration("AUDIT_WRITE_TIMEOUT", c.Audit.WriteTimeout)
	c.Audit.AMQPURL = getEnvOrDefault("AUDIT_AMQP_URL", c.Audit.AMQPURL)
	c.Audit.AMQPQueue = getEnvOrDefault("AUDIT_AMQP_QUEUE", c.Audit.AMQPQueue)
	c.Audit.SecurityQueue = getEnvOrDefault("AUDIT_SECURITY_QUEUE", c.Audit.SecurityQueue)
	c.Audit.GeoIPDBPath = getEnvOrDefault("GEOIP_DB_PATH", c.Audit.GeoIPDBPath)

	c.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvAsInt("RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.AuthWindow = getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", c.RateLimit.AuthWindow)
	c.RateLimit.AuthMax = getEnvAsInt("RATE_LIMIT_AUTH_MAX", c.RateLimit.AuthMax)
	c.RateLimit.RedisAddr = getEnvOrDefault("RATE_LIMIT_REDIS_ADDR", c.RateLimit.RedisAddr)
	c.RateLimit.RedisPassword = getEnvOrDefault("RATE_LIMIT_REDIS_PASSWORD", c.RateLimit.RedisPassword)
	c.RateLimit.RedisDB = getEnvAsInt("RATE_LIMIT_REDIS_DB", c.RateLimit.RedisDB)

	c.Jobs.Enabled = getEnvAsBool("JOBS_ENABLED", c.Jobs.Enabled)
	c.Jobs.SessionExpirySchedule = getEnvOrDefault("JOBS_SESSION_EXPIRY_SCHEDULE", c.Jobs.SessionExpirySchedule)
	c.Jobs.TokenSweepSchedule = getEnvOrDefault("JOBS_TOKEN_SWEEP_SCHEDULE", c.Jobs.TokenSweepSchedule)
	c.Jobs.TokenSweepGrace = getEnvAsDuration("JOBS_TOKEN_SWEEP_GRACE", c.Jobs.TokenSweepGrace)
	c.Jobs.RateLimitPruneSchedule = getEnvOrDefault("JOBS_RATE_LIMIT_PRUNE_SCHEDULE", c.Jobs.RateLimitPruneSchedule)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)

	return c.Validate()
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.RefreshTokenSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.Auth.JWTSecret == c.Auth.RefreshTokenSecret {
		return errors.New("REFRESH_TOKEN_SECRET must differ from JWT_SECRET")
	}
	if _, err := strconv.Atoi(c.API.Port); err != nil {
		return fmt.Errorf("invalid port number %q: %w", c.API.Port, err)
	}
	for _, proxy := range c.API.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid trusted proxy %q", proxy)
		}
	}
	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsBool retrieves an environment variable and converts it to a boolean
func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go duration strings ("15m", "168h") or plain
// milliseconds ("3600000").
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
