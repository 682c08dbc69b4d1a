// Package config loads process configuration for the auth server.
//
// Load order, later sources winning:
//  1. built-in defaults
//  2. a .env file (secrets and APP_ENV), searched upward from the working dir
//  3. the YAML file given to Load, if any
//  4. environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	loginregister "github.com/Anonymus123-11/login-register"
)

// Environment names the deployment tier.
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// Store drivers.
const (
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreBolt     = "bolt"
)

// Mail drivers.
const (
	MailLog    = "log"
	MailSMTP   = "smtp"
	MailStream = "stream"
)

// Config is the full process configuration.
type Config struct {
	Env Environment `yaml:"env" env:"APP_ENV"`

	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Mail    MailConfig    `yaml:"mail"`
	Auth    AuthConfig    `yaml:"auth"`
	Metrics MetricsConfig `yaml:"metrics"`
	Admin   AdminConfig   `yaml:"admin"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// StoreConfig selects the account store. DSN is the SQLite file, the
// PostgreSQL URL or the bbolt path depending on Driver.
type StoreConfig struct {
	Driver   string `yaml:"driver" env:"STORE_DRIVER"`
	DSN      string `yaml:"dsn" env:"STORE_DSN"`
	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDB  string `yaml:"mongo_db" env:"MONGO_DB"`
	Prefix   string `yaml:"prefix" env:"STORE_PREFIX"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type MailConfig struct {
	Driver   string `yaml:"driver" env:"MAIL_DRIVER"`
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"EMAIL_USER"`
	Password string `yaml:"-" env:"EMAIL_PASS"`
	From     string `yaml:"from" env:"MAIL_FROM"`
	Stream   string `yaml:"stream" env:"MAIL_STREAM"`
}

// AuthConfig carries the engine settings worth exposing to operators. The
// secrets are never read from YAML.
type AuthConfig struct {
	AccessSecret  string `yaml:"-" env:"JWT_SECRET"`
	RefreshSecret string `yaml:"-" env:"JWT_REFRESH_SECRET"`

	AccessTTL           time.Duration `yaml:"access_ttl" env:"AUTH_ACCESS_TTL"`
	RefreshTTL          time.Duration `yaml:"refresh_ttl" env:"AUTH_REFRESH_TTL"`
	VerificationTTL     time.Duration `yaml:"verification_ttl" env:"AUTH_VERIFICATION_TTL"`
	ResetTTL            time.Duration `yaml:"reset_ttl" env:"AUTH_RESET_TTL"`
	RotateRefreshTokens bool          `yaml:"rotate_refresh_tokens" env:"AUTH_ROTATE_REFRESH"`
	StrictValidation    bool          `yaml:"strict_validation" env:"AUTH_STRICT_VALIDATION"`
	LoginThrottle       bool          `yaml:"login_throttle" env:"AUTH_LOGIN_THROTTLE"`
	AuditLog            bool          `yaml:"audit_log" env:"AUTH_AUDIT_LOG"`
}

type MetricsConfig struct {
	Enabled    bool `yaml:"enabled" env:"METRICS_ENABLED"`
	Histograms bool `yaml:"histograms" env:"METRICS_HISTOGRAMS"`
}

// AdminConfig seeds an elevated account at startup when Username is set.
// An existing account with the same handle or address is left alone.
type AdminConfig struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"-" env:"ADMIN_PASSWORD"`
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
}

// Default returns the development configuration without secrets.
func Default() Config {
	eng := loginregister.DefaultConfig()
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Port:            "5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Driver:  StoreRedis,
			MongoDB: "login_register",
			Prefix:  "acct",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Mail: MailConfig{
			Driver: MailLog,
			Port:   587,
		},
		Auth: AuthConfig{
			AccessTTL:       eng.JWT.AccessTTL,
			RefreshTTL:      eng.JWT.RefreshTTL,
			VerificationTTL: eng.Verification.TTL,
			ResetTTL:        eng.Reset.TTL,
			LoginThrottle:   eng.Security.EnableLoginThrottle,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (Config, error) {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg := Default()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Env = parseEnv(string(cfg.Env))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func parseEnv(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return EnvProduction
	case "test":
		return EnvTest
	default:
		return EnvDevelopment
	}
}

// IsProduction reports whether production hardening applies.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks driver names and required settings. Engine settings are
// validated again by the engine builder.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Port) == "" {
		return errors.New("HTTP Port is required")
	}

	switch c.Store.Driver {
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("Redis Addr is required for the redis store")
		}
	case StoreSQLite, StorePostgres, StoreBolt:
		if c.Store.DSN == "" {
			return fmt.Errorf("Store DSN is required for the %s store", c.Store.Driver)
		}
	case StoreMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDB == "" {
			return errors.New("Store MongoURI and MongoDB are required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Mail.Driver {
	case MailLog:
		if c.IsProduction() {
			return errors.New("Mail Driver log prints codes and is not allowed in production")
		}
	case MailSMTP:
		if c.Mail.Host == "" || c.Mail.From == "" {
			return errors.New("Mail Host and From are required for smtp")
		}
	case MailStream:
		if c.Redis.Addr == "" {
			return errors.New("Redis Addr is required for the stream mail driver")
		}
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}

	if c.Admin.Username != "" && (c.Admin.Email == "" || c.Admin.Password == "") {
		return errors.New("Admin Email and Password are required when Admin Username is set")
	}

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	return nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Store.Driver == StoreRedis || c.Mail.Driver == MailStream || c.Auth.LoginThrottle
}

// Engine converts the operator settings into an engine configuration.
func (c Config) Engine() loginregister.Config {
	eng := loginregister.DefaultConfig()
	eng.JWT.AccessKey = []byte(c.Auth.AccessSecret)
	eng.JWT.RefreshKey = []byte(c.Auth.RefreshSecret)
	eng.JWT.AccessTTL = c.Auth.AccessTTL
	eng.JWT.RefreshTTL = c.Auth.RefreshTTL
	eng.Verification.TTL = c.Auth.VerificationTTL
	eng.Reset.TTL = c.Auth.ResetTTL
	eng.Session.RotateRefreshTokens = c.Auth.RotateRefreshTokens
	eng.Security.ProductionMode = c.IsProduction()
	eng.Security.EnableLoginThrottle = c.Auth.LoginThrottle
	eng.Audit.Enabled = c.Auth.AuditLog
	eng.Metrics.Enabled = c.Metrics.Enabled
	eng.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	if c.Auth.StrictValidation {
		eng.ValidationMode = loginregister.ModeStrict
	}
	return eng
}
