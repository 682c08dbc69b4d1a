package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loginregister "github.com/Anonymus123-11/login-register"
	"github.com/Anonymus123-11/login-register/internal/config"
	"github.com/Anonymus123-11/login-register/notify"
	"github.com/Anonymus123-11/login-register/store/boltstore"
	"github.com/Anonymus123-11/login-register/store/sqlstore"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Auth.AccessSecret = "access-secret-access-secret-0001"
	cfg.Auth.RefreshSecret = "refresh-secret-refresh-secret-01"
	return cfg
}

func TestWireRedisStack(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Redis.Addr = mr.Addr()
	cfg.Mail.Driver = config.MailStream

	d, err := wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer d.Close()

	res, err := d.engine.Register(context.Background(), "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccountID)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	entries, err := rdb.XRange(context.Background(), notify.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWireFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := wire(context.Background(), cfg, discard())
	require.Error(t, err)
}

func TestOpenStoreDrivers(t *testing.T) {
	dir := t.TempDir()

	cfg := baseConfig()
	cfg.Store.Driver = config.StoreSQLite
	cfg.Store.DSN = filepath.Join(dir, "accounts.sqlite")
	store, closer, err := openStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, store)
	require.NoError(t, closer.Close())

	cfg.Store.Driver = config.StoreBolt
	cfg.Store.DSN = filepath.Join(dir, "accounts.bolt")
	store, closer, err = openStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &boltstore.Store{}, store)
	require.NoError(t, closer.Close())

	cfg.Store.Driver = config.StoreRedis
	_, _, err = openStore(context.Background(), cfg, nil)
	require.Error(t, err)

	cfg.Store.Driver = "dynamo"
	_, _, err = openStore(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	cfg := baseConfig()

	n, err := newNotifier(cfg, nil, discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)

	cfg.Mail.Driver = config.MailSMTP
	_, err = newNotifier(cfg, nil, discard())
	require.Error(t, err, "smtp without host")

	cfg.Mail.Host = "smtp.example.com"
	cfg.Mail.From = "no-reply@example.com"
	n, err = newNotifier(cfg, nil, discard())
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPNotifier{}, n)

	cfg.Mail.Driver = config.MailStream
	_, err = newNotifier(cfg, nil, discard())
	require.Error(t, err, "stream without redis")
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Driver = config.StoreBolt
	cfg.Store.DSN = filepath.Join(t.TempDir(), "accounts.bolt")
	cfg.Auth.LoginThrottle = false
	cfg.Admin = config.AdminConfig{Username: "root", Email: "root@example.com", Password: "correct horse"}

	d, err := wire(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, seedAdmin(context.Background(), d.engine, cfg.Admin, discard()))
	require.NoError(t, seedAdmin(context.Background(), d.engine, cfg.Admin, discard()))

	res, err := d.engine.Login(context.Background(), "root", "correct horse")
	require.NoError(t, err)
	assert.True(t, res.Account.Role.Elevated())
	assert.True(t, res.Account.Verified)

	_, err = d.engine.Validate(context.Background(), res.AccessToken, loginregister.ModeStrict)
	require.NoError(t, err)
}
