// Command loadtest drives concurrent login, validate and refresh traffic
// through the engine against Redis or an in-process miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/store/redisstore"
)

type seeded struct {
	handle  string
	access  string
	refresh string
	mu      sync.Mutex
}

const seedPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per validate and refresh phase")
		logins      = flag.Int("logins", 500, "operations in the login phase")
		rotate      = flag.Bool("rotate", false, "rotate refresh tokens on use")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "account key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *logins <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, ops and logins must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix, *rotate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states, err := seed(ctx, engine, *accounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	loginStats := runPhase(*logins, *concurrency, func(r *rand.Rand, _ int) error {
		st := &states[r.Intn(len(states))]
		res, err := engine.Login(ctx, st.handle, seedPassword)
		if err != nil {
			return err
		}
		st.mu.Lock()
		st.access, st.refresh = res.AccessToken, res.RefreshToken
		st.mu.Unlock()
		return nil
	})

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		tok := st.access
		st.mu.Unlock()
		_, err := engine.Validate(ctx, tok, loginregister.ModeStrict)
		return err
	})

	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		st := &states[r.Intn(len(states))]
		// the refresh token is per account, so calls on one account serialize
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := engine.Refresh(ctx, st.refresh)
		if err != nil {
			return err
		}
		st.access = res.AccessToken
		if res.RefreshToken != "" {
			st.refresh = res.RefreshToken
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

// newEngine uses cheap argon2 parameters so login measures the engine rather
// than the hash.
func newEngine(client redis.UniversalClient, prefix string, rotate bool) (*loginregister.Engine, error) {
	cfg := loginregister.DefaultConfig()
	cfg.JWT.AccessKey = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.RefreshKey = []byte("loadtest-refresh-secret-012345678")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.RotateRefreshTokens = rotate
	cfg.Metrics.EnableLatencyHistograms = true

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return loginregister.New().
		WithConfig(cfg).
		WithStore(redisstore.New(client, prefix)).
		WithNotifier(notify.NewLog(quiet)).
		WithLogger(quiet).
		Build()
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, engine *loginregister.Engine, n int) ([]seeded, error) {
	admin := loginregister.WithPrincipal(ctx, &loginregister.Principal{Role: account.RoleElevated})
	states := make([]seeded, n)

	fmt.Printf("seeding %d accounts...\n", n)
	start := time.Now()
	for i := range states {
		handle := fmt.Sprintf("user-%d", i)
		if _, err := engine.CreateAccount(admin, loginregister.CreateAccountInput{
			Handle:   handle,
			Address:  handle + "@loadtest.invalid",
			Password: seedPassword,
		}); err != nil {
			return nil, fmt.Errorf("create %s: %w", handle, err)
		}
		res, err := engine.Login(ctx, handle, seedPassword)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", handle, err)
		}
		states[i] = seeded{handle: handle, access: res.AccessToken, refresh: res.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
