package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/internal/config"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/store/boltstore"
	"github.com/Anonymus123-11/login-register/store/mongostore"
	"github.com/Anonymus123-11/login-register/store/redisstore"
	"github.com/Anonymus123-11/login-register/store/sqlstore"
)

type deps struct {
	engine  *loginregister.Engine
	closers []io.Closer
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	if d.engine != nil {
		d.engine.Close()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i].Close()
	}
}

func wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	var rdb redis.UniversalClient
	if cfg.NeedsRedis() {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	store, closer, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		d.closers = append(d.closers, closer)
	}

	notifier, err := newNotifier(cfg, rdb, logger)
	if err != nil {
		return nil, err
	}

	b := loginregister.New().
		WithConfig(cfg.Engine()).
		WithStore(store).
		WithNotifier(notifier).
		WithLogger(logger)
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	if cfg.Auth.AuditLog {
		b = b.WithAuditSink(loginregister.NewSlogSink(logger.With(slog.String("stream", "audit"))))
	}

	if d.engine, err = b.Build(); err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	ok = true
	return d, nil
}

// openStore returns the configured account store and, for stores that own
// a connection, its closer.
func openStore(ctx context.Context, cfg config.Config, rdb redis.UniversalClient) (account.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis store needs a redis client")
		}
		return redisstore.New(rdb, cfg.Store.Prefix), nil, nil
	case config.StoreSQLite:
		s, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StorePostgres:
		s, err := sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreMongo:
		s, err := mongostore.Open(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreBolt:
		s, err := boltstore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newNotifier(cfg config.Config, rdb redis.UniversalClient, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Mail.Driver {
	case config.MailLog:
		logger.Warn("verification and reset codes are written to the log; do not use in production")
		return notify.NewLog(logger), nil
	case config.MailSMTP:
		return notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	case config.MailStream:
		return notify.NewStream(rdb, cfg.Mail.Stream, 0)
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}
