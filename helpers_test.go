package loginregister

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/store/redisstore"
)

var errChannelDown = errors.New("channel down")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// outbox records the last code delivered per purpose and address.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	fail  error
}

func newOutbox() *outbox {
	return &outbox{codes: map[string]string{}}
}

func (o *outbox) DeliverCode(_ context.Context, address, code string, purpose notify.Purpose) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.codes[string(purpose)+":"+address] = code
	o.sent++
	return nil
}

func (o *outbox) setFail(err error) {
	o.mu.Lock()
	o.fail = err
	o.mu.Unlock()
}

func (o *outbox) code(t testing.TB, purpose notify.Purpose, address string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	code, ok := o.codes[string(purpose)+":"+address]
	if !ok {
		t.Fatalf("no %s code delivered to %s", purpose, address)
	}
	return code
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

type harness struct {
	engine *Engine
	store  account.Store
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	outbox *outbox
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessKey = []byte("access-secret-access-secret-0001")
	cfg.JWT.RefreshKey = []byte("refresh-secret-refresh-secret-01")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.MaxCodeIssues = 0
	return cfg
}

func newHarness(t testing.TB, tweak ...func(*Config)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}
	return newHarnessWith(t, cfg, nil)
}

func newHarnessWith(t testing.TB, cfg Config, sink AuditSink) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:  redisstore.New(rdb, "acct"),
		mr:     mr,
		rdb:    rdb,
		clock:  newTestClock(),
		outbox: newOutbox(),
	}

	engine, err := New().
		WithConfig(cfg).
		WithStore(h.store).
		WithNotifier(h.outbox).
		WithRedis(rdb).
		WithAuditSink(sink).
		WithClock(h.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

// register creates an account and returns its id and delivered code.
func (h *harness) register(t testing.TB, handle, address, pw string) (string, string) {
	t.Helper()
	res, err := h.engine.Register(context.Background(), handle, address, pw)
	if err != nil {
		t.Fatalf("register %s: %v", handle, err)
	}
	return res.AccountID, h.outbox.code(t, notify.PurposeVerify, account.NormalizeAddress(address))
}

func (h *harness) registerVerified(t testing.TB, handle, address, pw string) string {
	t.Helper()
	id, code := h.register(t, handle, address, pw)
	if err := h.engine.VerifyCode(context.Background(), address, code); err != nil {
		t.Fatalf("verify %s: %v", handle, err)
	}
	return id
}

func (h *harness) login(t testing.TB, handle, pw string) *LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), handle, pw)
	if err != nil {
		t.Fatalf("login %s: %v", handle, err)
	}
	return res
}

func (h *harness) account(t testing.TB, id string) *account.Account {
	t.Helper()
	acc, err := h.store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find %s: %v", id, err)
	}
	return acc
}

func (h *harness) fixCodes(code string) {
	h.engine.codeGen = func(int) (string, error) { return code, nil }
}

// systemCtx carries an elevated principal with no backing account, the
// way the bootstrap seeder calls the engine.
func systemCtx() context.Context {
	return WithPrincipal(context.Background(), &Principal{Role: account.RoleElevated})
}

func adminCtx(id string) context.Context {
	return WithPrincipal(context.Background(), &Principal{AccountID: id, Role: account.RoleElevated})
}

func userCtx(id string) context.Context {
	return WithPrincipal(context.Background(), &Principal{AccountID: id, Role: account.RoleStandard})
}

// otherCode returns a code of the same length that differs from code.
func otherCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
