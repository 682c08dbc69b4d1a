package loginregister

import (
	"bytes"
	"errors"
	"time"
)

// Config holds every engine setting. Obtain one from [DefaultConfig], adjust
// it, and pass it to [Builder.WithConfig]; the engine keeps its own copy.
type Config struct {
	JWT            JWTConfig
	Password       PasswordConfig
	Verification   CodeConfig
	Reset          CodeConfig
	Session        SessionConfig
	Security       SecurityConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures both token classes. Each class has its own key so a
// leaked access key cannot mint refresh tokens and vice versa.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"

	// AccessKey and RefreshKey are HMAC secrets for hs256 or Ed25519
	// private keys (raw or PEM) for ed25519.
	AccessKey        []byte
	AccessPublicKey  []byte
	RefreshKey       []byte
	RefreshPublicKey []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength      int
	MaxBytes       int
	UpgradeOnLogin bool
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig configures one family of one-time codes.
type CodeConfig struct {
	TTL         time.Duration
	Digits      int
	MaxAttempts int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the single stored refresh token.
type SessionConfig struct {
	// RotateRefreshTokens issues a new refresh token on every refresh and
	// treats a superseded one as reuse.
	RotateRefreshTokens bool
	// RevokeOnPasswordReset clears the stored refresh token when the
	// password is reset.
	RevokeOnPasswordReset bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the optional Redis-backed throttles. They are only
// active when a Redis client is supplied through [Builder.WithRedis].
type SecurityConfig struct {
	ProductionMode bool

	RedisPrefix         string
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	MaxCodeIssues       int
	CodeIssueWindow     time.Duration
}

// AuditConfig controls the asynchronous audit queue.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Signing keys are left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "login-register",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxBytes:       1024,
			UpgradeOnLogin: true,
		},
		Verification: CodeConfig{
			TTL:         10 * time.Minute,
			Digits:      6,
			MaxAttempts: 5,
		},
		Reset: CodeConfig{
			TTL:         10 * time.Minute,
			Digits:      6,
			MaxAttempts: 5,
		},
		Session: SessionConfig{
			RotateRefreshTokens:   false,
			RevokeOnPasswordReset: true,
		},
		Security: SecurityConfig{
			ProductionMode:      false,
			RedisPrefix:         "lr",
			EnableLoginThrottle: true,
			EnableIPThrottle:    true,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
			MaxCodeIssues:       5,
			CodeIssueWindow:     15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "", "hs256", "ed25519":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.AccessKey) == 0 {
		return errors.New("JWT AccessKey is required")
	}
	if len(c.JWT.RefreshKey) == 0 {
		return errors.New("JWT RefreshKey is required")
	}
	if bytes.Equal(c.JWT.AccessKey, c.JWT.RefreshKey) {
		return errors.New("JWT AccessKey and RefreshKey must differ")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxBytes < c.Password.MinLength {
		return errors.New("Password MaxBytes must be >= MinLength")
	}

	// Codes
	if err := validateCodeConfig("Verification", c.Verification, time.Hour); err != nil {
		return err
	}
	if c.Reset.TTL < time.Minute {
		return errors.New("Reset TTL must be >= 1m")
	}
	if err := validateCodeConfig("Reset", c.Reset, 15*time.Minute); err != nil {
		return err
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when the login throttle is enabled")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0 when the login throttle is enabled")
		}
	}
	if c.Security.MaxCodeIssues < 0 {
		return errors.New("Security MaxCodeIssues must be >= 0")
	}
	if c.Security.MaxCodeIssues > 0 && c.Security.CodeIssueWindow <= 0 {
		return errors.New("Security CodeIssueWindow must be > 0 when MaxCodeIssues is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.JWT.SigningMethod != "ed25519" && (len(c.JWT.AccessKey) < 32 || len(c.JWT.RefreshKey) < 32) {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 65536 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
	}

	return nil
}

func validateCodeConfig(section string, c CodeConfig, maxTTL time.Duration) error {
	if c.TTL <= 0 {
		return errors.New(section + " TTL must be > 0")
	}
	if c.TTL > maxTTL {
		return errors.New(section + " TTL must be <= " + maxTTL.String())
	}
	if c.Digits < 6 || c.Digits > 10 {
		return errors.New(section + " Digits must be between 6 and 10")
	}
	if c.MaxAttempts <= 0 {
		return errors.New(section + " MaxAttempts must be > 0")
	}
	if c.MaxAttempts > 10 {
		return errors.New(section + " MaxAttempts must be <= 10")
	}
	return nil
}
