package httpapi

import (
	"log/slog"
	"net/http"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/middleware"
)

// Options configures [NewHandler].
type Options struct {
	Logger *slog.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
}

type server struct {
	engine *loginregister.Engine
	logger *slog.Logger
}

// NewHandler returns the routed handler wrapped in access logging and
// client IP extraction.
func NewHandler(engine *loginregister.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{engine: engine, logger: logger}

	guard := middleware.Guard(engine, loginregister.ModeInherit)
	authed := func(h http.HandlerFunc) http.Handler { return guard(h) }
	admin := func(h http.HandlerFunc) http.Handler { return guard(middleware.RequireElevated(h)) }

	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/verify-email", s.verifyEmail)
	mux.HandleFunc("POST /auth/resend-otp", s.resendCode)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/refresh", s.refresh)
	mux.HandleFunc("POST /auth/forgot-password", s.forgotPassword)
	mux.HandleFunc("POST /auth/reset-password", s.resetPassword)
	mux.Handle("POST /auth/logout", authed(s.logout))
	mux.Handle("GET /auth/me", authed(s.me))

	mux.Handle("GET /users", admin(s.listUsers))
	mux.Handle("POST /users", admin(s.createUser))
	mux.Handle("GET /users/{id}", authed(s.getUser))
	mux.Handle("PATCH /users/{id}", authed(s.updateUser))
	mux.Handle("PUT /users/{id}", authed(s.updateUser))
	mux.Handle("DELETE /users/{id}", admin(s.deleteUser))

	mux.HandleFunc("GET /healthz", s.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return accessLog(logger, middleware.ClientIP(opts.TrustProxy)(mux))
}
