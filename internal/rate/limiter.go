package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix           string
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	MaxCodeIssues    int
	CodeIssueWindow  time.Duration
}

// Limiter enforces per-handle, per-IP and per-address budgets using Redis
// counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "lr"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin reports ErrRateLimited when the handle, or the IP when IP
// throttling is on, has exhausted its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, handle, ip string) error {
	if err := l.checkCounter(ctx, l.loginUserKey(handle), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login for the handle and IP.
func (l *Limiter) IncrementLogin(ctx context.Context, handle, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.loginUserKey(handle), l.config.LoginCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, handle, ip string) error {
	keys := []string{l.loginUserKey(handle)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// AllowCodeIssue counts one issuance of a purpose code to address and
// reports ErrRateLimited once the window's budget is exceeded. A zero
// MaxCodeIssues disables the check.
func (l *Limiter) AllowCodeIssue(ctx context.Context, purpose, address string) error {
	if l.config.MaxCodeIssues <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.codeKey(purpose, address), l.config.CodeIssueWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxCodeIssues) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the current failed-login counter for handle.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) LoginAttempts(ctx context.Context, handle string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginUserKey(handle)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Ping checks the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) loginUserKey(handle string) string {
	return l.config.Prefix + ":login:u:" + handle
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":login:ip:" + ip
}

func (l *Limiter) codeKey(purpose, address string) string {
	return l.config.Prefix + ":code:" + purpose + ":" + address
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
