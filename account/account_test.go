package account

import (
	"errors"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"":        RoleStandard,
		"user":    RoleStandard,
		" Admin ": RoleElevated,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRole("root"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestPendingCodeExpiryBoundary(t *testing.T) {
	now := time.Now()
	code := &PendingCode{ExpiresAt: now}
	if !code.Expired(now) {
		t.Fatal("code must be expired at its expiry instant")
	}
	if code.Expired(now.Add(-time.Nanosecond)) {
		t.Fatal("code must be valid before its expiry instant")
	}
	var missing *PendingCode
	if !missing.Expired(now) {
		t.Fatal("absent code must report expired")
	}
}

func TestCloneDoesNotAliasCodes(t *testing.T) {
	orig := &Account{
		ID:           "a1",
		Verification: &PendingCode{Hash: "h1", Attempts: 1},
		Reset:        &PendingCode{Hash: "h2"},
	}
	cp := orig.Clone()
	cp.Verification.Attempts = 4
	cp.Reset.Hash = "changed"

	if orig.Verification.Attempts != 1 || orig.Reset.Hash != "h2" {
		t.Fatal("clone shares pending code pointers with original")
	}
}

func TestProjectionOmitsSecrets(t *testing.T) {
	acc := &Account{
		ID:            "a1",
		Handle:        "alice",
		Address:       "alice@x.com",
		SecretHash:    "secret",
		RefreshDigest: "digest",
		Verification:  &PendingCode{Hash: "h"},
		Role:          RoleElevated,
		Verified:      true,
	}
	p := acc.Project()
	if p.ID != "a1" || p.Handle != "alice" || p.Address != "alice@x.com" || p.Role != RoleElevated || !p.Verified {
		t.Fatalf("unexpected projection: %+v", p)
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeAddress("  Alice@X.COM "); got != "alice@x.com" {
		t.Fatalf("NormalizeAddress = %q", got)
	}
	if got := NormalizeHandle(" Alice "); got != "Alice" {
		t.Fatalf("NormalizeHandle = %q", got)
	}
}
