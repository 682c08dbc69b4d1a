package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/store/redisstore"
)

func newTestEngine(t *testing.T) *loginregister.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := loginregister.DefaultConfig()
	cfg.JWT.AccessKey = []byte("access-secret-access-secret-0001")
	cfg.JWT.RefreshKey = []byte("refresh-secret-refresh-secret-01")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := loginregister.New().
		WithConfig(cfg).
		WithStore(redisstore.New(rdb, "acct")).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

// seed creates a verified account and returns its id and access token.
func seed(t *testing.T, engine *loginregister.Engine, handle, role string) (string, string) {
	t.Helper()
	ctx := loginregister.WithPrincipal(context.Background(), &loginregister.Principal{Role: account.RoleElevated})
	proj, err := engine.CreateAccount(ctx, loginregister.CreateAccountInput{
		Handle:   handle,
		Address:  handle + "@example.com",
		Password: "correct horse",
		Role:     role,
	})
	require.NoError(t, err)

	res, err := engine.Login(context.Background(), handle, "correct horse")
	require.NoError(t, err)
	return proj.ID, res.AccessToken
}

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := loginregister.PrincipalFromContext(r.Context())
		if !ok {
			t.Error("principal missing from context")
			return
		}
		_, _ = io.WriteString(w, p.AccountID+"/"+string(p.Role))
	})
}

func TestGuardRejectsMissingAndMalformedTokens(t *testing.T) {
	engine := newTestEngine(t)
	h := RequireJWTOnly(engine)(principalEcho(t))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Contains(t, rec.Body.String(), "message")
	}
}

func TestGuardAttachesPrincipal(t *testing.T) {
	engine := newTestEngine(t)
	id, token := seed(t, engine, "alice", "user")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	RequireJWTOnly(engine)(principalEcho(t)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id+"/user", rec.Body.String())
}

func TestStrictGuardRejectsDeletedAccount(t *testing.T) {
	engine := newTestEngine(t)
	id, token := seed(t, engine, "alice", "user")

	admin := loginregister.WithPrincipal(context.Background(), &loginregister.Principal{Role: account.RoleElevated})
	require.NoError(t, engine.DeleteAccount(admin, id))

	serve := func(mw func(http.Handler) http.Handler) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		mw(principalEcho(t)).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(RequireJWTOnly(engine)), "jwt-only cannot see the deletion")
	assert.Equal(t, http.StatusUnauthorized, serve(RequireStrict(engine)))
}

func TestRequireElevated(t *testing.T) {
	engine := newTestEngine(t)
	_, userToken := seed(t, engine, "alice", "user")
	_, adminToken := seed(t, engine, "root", "admin")

	h := RequireStrict(engine)(RequireElevated(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"standard role", userToken, http.StatusForbidden},
		{"elevated role", adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireElevatedWithoutGuard(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireElevated(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNilEngineGuard(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	Guard(nil, loginregister.ModeJWTOnly)(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		trust  bool
		remote string
		fwd    string
		want   string
	}{
		{"remote addr", false, "203.0.113.7:5123", "", "203.0.113.7"},
		{"forwarded ignored without trust", false, "10.0.0.1:80", "198.51.100.2", "10.0.0.1"},
		{"forwarded first hop", true, "10.0.0.1:80", "198.51.100.2, 10.0.0.1", "198.51.100.2"},
		{"garbage forwarded", true, "10.0.0.1:80", "not-an-ip", "10.0.0.1"},
		{"remote without port", false, "192.0.2.1", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(tt.trust)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = loginregister.ClientIPFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = tt.remote
			if tt.fwd != "" {
				req.Header.Set("X-Forwarded-For", tt.fwd)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}
