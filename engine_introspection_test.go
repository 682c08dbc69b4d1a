package loginregister

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Anonymus123-11/login-register/store/boltstore"
)

func withThrottle(c *Config) {
	c.Security.EnableLoginThrottle = true
	c.Security.MaxLoginAttempts = 3
}

func TestHealthReportsBackends(t *testing.T) {
	h := newHarness(t, withThrottle)

	status := h.engine.Health(context.Background())
	if !status.Healthy() {
		t.Fatalf("expected healthy status, got %+v", status)
	}

	h.mr.Close()
	status = h.engine.Health(context.Background())
	if status.StoreAvailable || status.LimiterAvailable {
		t.Fatalf("expected both backends down, got %+v", status)
	}
	if status.Healthy() {
		t.Fatal("status must not be healthy with redis down")
	}
}

func TestHealthWithoutLimiter(t *testing.T) {
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "accounts.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine, err := New().WithConfig(testConfig()).WithStore(store).WithNotifier(newOutbox()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	status := engine.Health(context.Background())
	if !status.Healthy() || !status.StoreAvailable {
		t.Fatalf("expected healthy status, got %+v", status)
	}

	var nilEngine *Engine
	if nilEngine.Health(context.Background()).Healthy() {
		t.Fatal("nil engine must not report healthy")
	}
}

func TestLoginAttemptsTracksFailures(t *testing.T) {
	h := newHarness(t, withThrottle)
	h.registerVerified(t, "alice", "alice@example.com", "correct horse")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.engine.Login(ctx, "alice", "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	n, err := h.engine.LoginAttempts(ctx, "ALICE")
	if err != nil {
		t.Fatalf("login attempts: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}

	unknown, err := h.engine.LoginAttempts(ctx, "nobody")
	if err != nil || unknown != 0 {
		t.Fatalf("unknown handle: got %d, %v", unknown, err)
	}

	h.login(t, "alice", "correct horse")
	n, err = h.engine.LoginAttempts(ctx, "alice")
	if err != nil || n != 0 {
		t.Fatalf("expected counter reset after success, got %d, %v", n, err)
	}
}

func TestLoginAttemptsThrottleOff(t *testing.T) {
	h := newHarness(t)
	h.registerVerified(t, "alice", "alice@example.com", "correct horse")

	_, _ = h.engine.Login(context.Background(), "alice", "wrong horse")
	n, err := h.engine.LoginAttempts(context.Background(), "alice")
	if err != nil || n != 0 {
		t.Fatalf("expected zero with throttle off, got %d, %v", n, err)
	}
}

func TestLoginAttemptsRedisDown(t *testing.T) {
	h := newHarness(t, withThrottle)
	h.mr.Close()

	if _, err := h.engine.LoginAttempts(context.Background(), "alice"); KindOf(err) != KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
