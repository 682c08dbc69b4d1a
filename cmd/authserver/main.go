// Command authserver runs the credential lifecycle service over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal/config"
	"github.com/Anonymus123-11/login-register/internal/httpapi"
	"github.com/Anonymus123-11/login-register/internal/logging"
	promexport "github.com/Anonymus123-11/login-register/metrics/export/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "authserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := seedAdmin(ctx, app.engine, cfg.Admin, logger); err != nil {
		return err
	}

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		if metrics, err = promexport.Handler(app.engine); err != nil {
			return fmt.Errorf("metrics handler: %w", err)
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: httpapi.NewHandler(app.engine, httpapi.Options{
			Logger:     logger,
			Metrics:    metrics,
			TrustProxy: cfg.HTTP.TrustProxy,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			slog.String("addr", srv.Addr),
			slog.String("env", string(cfg.Env)),
			slog.String("store", cfg.Store.Driver),
			slog.String("mail", cfg.Mail.Driver),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin creates the configured elevated account if it is missing.
func seedAdmin(ctx context.Context, engine *loginregister.Engine, admin config.AdminConfig, logger *slog.Logger) error {
	if admin.Username == "" {
		return nil
	}
	system := loginregister.WithPrincipal(ctx, &loginregister.Principal{Role: account.RoleElevated})
	proj, err := engine.CreateAccount(system, loginregister.CreateAccountInput{
		Handle:   admin.Username,
		Address:  admin.Email,
		Password: admin.Password,
		Role:     string(account.RoleElevated),
	})
	switch {
	case errors.Is(err, loginregister.ErrDuplicateIdentity):
		logger.Info("admin account already present", slog.String("username", admin.Username))
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("admin account created", slog.String("account_id", proj.ID))
	return nil
}
