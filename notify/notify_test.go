package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPNotifierBuildsMessage(t *testing.T) {
	n, err := NewSMTP(SMTPConfig{Host: "mail.example.com", Port: 2525, Username: "u", Password: "p", From: "noreply@example.com"})
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	require.NoError(t, n.DeliverCode(context.Background(), "bob@example.com", "123456", PurposeReset))
	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)
	body := string(gotMsg)
	assert.Contains(t, body, "Subject: Your password reset code\r\n")
	assert.Contains(t, body, "Your code is: 123456")
}

func TestSMTPNotifierErrors(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{From: "x@example.com"})
	assert.Error(t, err)
	_, err = NewSMTP(SMTPConfig{Host: "h"})
	assert.Error(t, err)

	n, err := NewSMTP(SMTPConfig{Host: "h", From: "x@example.com"})
	require.NoError(t, err)
	assert.Nil(t, n.auth)

	relayDown := errors.New("connection refused")
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return relayDown }
	err = n.DeliverCode(context.Background(), "a@example.com", "1", PurposeVerify)
	assert.ErrorIs(t, err, relayDown)

	assert.Error(t, n.DeliverCode(context.Background(), "a@example.com\r\nBcc: x@y", "1", PurposeVerify))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.DeliverCode(ctx, "a@example.com", "1", PurposeVerify), context.Canceled)
}

func TestStreamNotifierAppendsEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	n, err := NewStream(rdb, "", 0)
	require.NoError(t, err)
	require.NoError(t, n.DeliverCode(context.Background(), "alice@example.com", "654321", PurposeVerify))

	entries, err := rdb.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice@example.com", entries[0].Values["address"])
	assert.Equal(t, "verify", entries[0].Values["purpose"])
	assert.Equal(t, "654321", entries[0].Values["code"])
}

func TestStreamNotifierRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	n, err := NewStream(rdb, "codes", 10)
	require.NoError(t, err)
	mr.Close()

	assert.Error(t, n.DeliverCode(context.Background(), "a@example.com", "1", PurposeVerify))

	_, err = NewStream(nil, "codes", 10)
	assert.Error(t, err)
}

func TestLogNotifierWritesCode(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, NewLog(logger).DeliverCode(context.Background(), "a@example.com", "111222", PurposeVerify))
	assert.Contains(t, buf.String(), "code=111222")
	assert.Contains(t, buf.String(), "purpose=verify")
}

func TestFuncAdapter(t *testing.T) {
	var called bool
	var n Notifier = Func(func(_ context.Context, address, code string, p Purpose) error {
		called = address == "a" && code == "1" && p == PurposeReset
		return nil
	})
	require.NoError(t, n.DeliverCode(context.Background(), "a", "1", PurposeReset))
	assert.True(t, called)
}
