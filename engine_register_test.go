package loginregister

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Anonymus123-11/login-register/account"
	"github.com/Anonymus123-11/login-register/notify"
)

func TestRegisterVerifyLoginScenario(t *testing.T) {
	h := newHarness(t)
	h.fixCodes("123456")
	ctx := context.Background()

	res, err := h.engine.Register(ctx, "alice", "alice@x.com", "pw123456")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.AccountID == "" {
		t.Fatal("expected account id")
	}

	if err := h.engine.VerifyCode(ctx, "alice@x.com", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := h.engine.VerifyCode(ctx, "alice@x.com", "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	login, err := h.engine.Login(ctx, "alice", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if login.Account.ID != res.AccountID || !login.Account.Verified {
		t.Fatalf("unexpected projection: %+v", login.Account)
	}

	if _, err := h.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if KindOf(ErrInvalidCredentials) != KindAuth {
		t.Fatal("invalid credentials must be an auth error")
	}
}

func TestRegisterStoresOnlyDigests(t *testing.T) {
	h := newHarness(t)
	id, code := h.register(t, "alice", "Alice@X.com ", "pw123456")

	acc := h.account(t, id)
	if acc.Address != "alice@x.com" {
		t.Fatalf("address not normalized: %q", acc.Address)
	}
	if acc.Role != account.RoleStandard || acc.Verified {
		t.Fatalf("new account must be unverified standard, got %s verified=%v", acc.Role, acc.Verified)
	}
	if acc.SecretHash == "" || strings.Contains(acc.SecretHash, "pw123456") {
		t.Fatal("password must be stored hashed")
	}
	if acc.Verification == nil {
		t.Fatal("expected pending verification code")
	}
	if acc.Verification.Hash == code || strings.Contains(acc.Verification.Hash, code) {
		t.Fatal("code must be stored as a digest")
	}
	if got := acc.Verification.ExpiresAt.Sub(h.clock.Now()); got != h.engine.config.Verification.TTL {
		t.Fatalf("unexpected code lifetime %s", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name                    string
		handle, address, secret string
		want                    error
	}{
		{"missing handle", " ", "a@x.com", "pw123456", ErrMissingField},
		{"missing address", "a", "", "pw123456", ErrMissingField},
		{"missing password", "a", "a@x.com", "", ErrMissingField},
		{"bad address", "a", "not-an-address", "pw123456", ErrInvalidAddress},
		{"display name", "a", "Bob <b@x.com>", "pw123456", ErrInvalidAddress},
		{"short password", "a", "a@x.com", "short", ErrPasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.Register(ctx, tc.handle, tc.address, tc.secret)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("expected validation kind, got %s", KindOf(err))
			}
		})
	}
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice", "alice@x.com", "pw123456")

	if _, err := h.engine.Register(ctx, "alice", "other@x.com", "pw123456"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate handle, got %v", err)
	}
	if _, err := h.engine.Register(ctx, "bob", "ALICE@x.com", "pw123456"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate address, got %v", err)
	}
	if KindOf(ErrDuplicateIdentity) != KindConflict {
		t.Fatal("duplicate must be a conflict")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 2 {
		t.Fatalf("expected 2 duplicate registrations counted, got %d", got)
	}
}

func TestRegisterConcurrentSameHandleSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.engine.Register(ctx, "alice", "alice"+string(rune('a'+i))+"@x.com", "pw123456")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins, dups := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicateIdentity):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || dups != n-1 {
		t.Fatalf("expected one winner, got wins=%d dups=%d", wins, dups)
	}
}

func TestRegisterDeliveryFailureKeepsAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.outbox.setFail(errChannelDown)

	res, err := h.engine.Register(ctx, "alice", "alice@x.com", "pw123456")
	if res == nil || res.AccountID == "" {
		t.Fatal("expected a result despite the delivery failure")
	}
	if !IsDeliveryError(err) || !errors.Is(err, ErrDeliveryFailed) || !errors.Is(err, errChannelDown) {
		t.Fatalf("expected delivery error wrapping the channel error, got %v", err)
	}
	if KindOf(err) != KindDependency {
		t.Fatalf("expected dependency kind, got %s", KindOf(err))
	}
	h.account(t, res.AccountID)

	// recover through resend
	h.outbox.setFail(nil)
	if err := h.engine.ResendCode(ctx, "alice@x.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	code := h.outbox.code(t, notify.PurposeVerify, "alice@x.com")
	if err := h.engine.VerifyCode(ctx, "alice@x.com", code); err != nil {
		t.Fatalf("verify after resend: %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricCodeDeliveryFailed]; got != 1 {
		t.Fatalf("expected one delivery failure counted, got %d", got)
	}
}

func TestRegisterStoreDown(t *testing.T) {
	h := newHarness(t)
	h.mr.Close()

	_, err := h.engine.Register(context.Background(), "alice", "alice@x.com", "pw123456")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if KindOf(err) != KindDependency {
		t.Fatalf("expected dependency kind, got %s", KindOf(err))
	}
}
