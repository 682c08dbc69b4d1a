package loginregister

import (
	"context"
	"time"

	"github.com/Anonymus123-11/login-register/account"
)

// Pinger is implemented by account stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	StoreAvailable   bool
	StoreLatency     time.Duration
	LimiterAvailable bool
}

// Healthy reports whether every configured backend answered.
func (h HealthStatus) Healthy() bool {
	return h.StoreAvailable && h.LimiterAvailable
}

// Health pings the account store and, when throttles are on, the limiter's
// Redis. Stores without a Ping method are assumed available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	status := HealthStatus{StoreAvailable: true, LimiterAvailable: true}
	if p, ok := e.store.(Pinger); ok {
		start := time.Now()
		status.StoreAvailable = p.Ping(ctx) == nil
		status.StoreLatency = time.Since(start)
	}
	if e.limiter != nil {
		status.LimiterAvailable = e.limiter.Ping(ctx) == nil
	}
	return status
}

// LoginAttempts returns the failed-login counter for handle. It is zero
// when the throttle is off, and unknown handles are not distinguished.
func (e *Engine) LoginAttempts(ctx context.Context, handle string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	handle = account.NormalizeHandle(handle)
	if handle == "" || e.limiter == nil || !e.config.Security.EnableLoginThrottle {
		return 0, nil
	}

	n, err := e.limiter.LoginAttempts(ctx, handle)
	if err != nil {
		return 0, limiterErr(err)
	}
	return n, nil
}
