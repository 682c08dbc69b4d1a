package loginregister

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal"
	"github.com/Anonymus123-11/login-register/internal/rate"
	"github.com/Anonymus123-11/login-register/jwt"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/password"
	"github.com/redis/go-redis/v9"
)

// dummySecret is hashed once at Build so unknown-handle logins can pay the
// same verification cost as real ones.
const dummySecret = "login-register-timing-equalizer"

// Builder assembles an [Engine]. Configure it during initialization and
// call Build exactly once.
type Builder struct {
	config    Config
	store     account.Store
	notifier  notify.Notifier
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. Required.
func (b *Builder) WithStore(store account.Store) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the channel used to deliver one-time codes. Required.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRedis enables the login and code-issue throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for code expiry and token timestamps.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		notifier: b.notifier,
		logger:   logger,
		now:      clock,
		codeGen:  internal.NewOTP,
	}

	if b.redis != nil && (cfg.Security.EnableLoginThrottle || cfg.Security.MaxCodeIssues > 0) {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Security.RedisPrefix,
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginCooldown:    cfg.Security.LoginCooldown,
			MaxCodeIssues:    cfg.Security.MaxCodeIssues,
			CodeIssueWindow:  cfg.Security.CodeIssueWindow,
		})
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	dummy, err := ph.Hash(dummySecret)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	engine.access, err = jwt.NewManager(jwt.Config{
		Type:          jwt.TypeAccess,
		TTL:           cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.AccessKey),
		PublicKey:     cloneBytes(cfg.JWT.AccessPublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Clock:         clock,
	})
	if err != nil {
		return nil, err
	}

	engine.refresh, err = jwt.NewManager(jwt.Config{
		Type:          jwt.TypeRefresh,
		TTL:           cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.RefreshKey),
		PublicKey:     cloneBytes(cfg.JWT.RefreshPublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Clock:         clock,
	})
	if err != nil {
		return nil, err
	}

	engine.audit = newAuditQueue(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
