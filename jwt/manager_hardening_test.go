package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-access-secret-0001")
	testRefreshSecret = []byte("refresh-secret-refresh-secret-01")
)

func newHSManager(t *testing.T, typ TokenType, secret []byte, clock func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Type:       typ,
		TTL:        time.Hour,
		PrivateKey: secret,
		Issuer:     "login-register",
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := newHSManager(t, TypeAccess, testAccessSecret, nil)

	tok, err := m.Issue("acct-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "acct-1" || claims.Role != "user" || claims.Type != TypeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti")
	}

	again, _ := m.Issue("acct-1", "user")
	if again == tok {
		t.Fatal("two tokens for the same account must differ")
	}
}

func TestIssueFamilyCarriesLineage(t *testing.T) {
	m := newHSManager(t, TypeRefresh, testRefreshSecret, nil)

	first, family, err := m.IssueFamily("acct-1", "user", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if family == "" {
		t.Fatal("an empty family must start a new one")
	}
	next, same, err := m.IssueFamily("acct-1", "user", family)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if same != family {
		t.Fatalf("family changed on rotation: %q != %q", same, family)
	}
	for _, tok := range []string{first, next} {
		claims, err := m.Parse(tok)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if claims.Family != family {
			t.Fatalf("claims family = %q, want %q", claims.Family, family)
		}
	}

	_, other, _ := m.IssueFamily("acct-1", "user", "")
	if other == family {
		t.Fatal("each new family must be distinct")
	}

	plain, _ := m.Issue("acct-1", "user")
	claims, err := m.Parse(plain)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Family != "" {
		t.Fatal("Issue must not attach a family")
	}
}

func TestParseExpired(t *testing.T) {
	now := time.Now()
	issuer := newHSManager(t, TypeAccess, testAccessSecret, func() time.Time { return now.Add(-2 * time.Hour) })
	verifier := newHSManager(t, TypeAccess, testAccessSecret, func() time.Time { return now })

	tok, err := issuer.Issue("acct-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestSeparateSecretsPerClass(t *testing.T) {
	access := newHSManager(t, TypeAccess, testAccessSecret, nil)
	refresh := newHSManager(t, TypeRefresh, testRefreshSecret, nil)

	at, _ := access.Issue("acct-1", "user")
	rt, _ := refresh.Issue("acct-1", "user")

	if _, err := refresh.Parse(at); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("access token must not verify as refresh, got %v", err)
	}
	if _, err := access.Parse(rt); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("refresh token must not verify as access, got %v", err)
	}
}

func TestTypeClaimEnforcedWithSharedSecret(t *testing.T) {
	access := newHSManager(t, TypeAccess, testAccessSecret, nil)
	refresh := newHSManager(t, TypeRefresh, testAccessSecret, nil)

	rt, _ := refresh.Issue("acct-1", "user")
	if _, err := access.Parse(rt); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected type mismatch rejection, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	m, err := NewManager(Config{Type: TypeAccess, TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{UID: "u", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}

	good, err := m.Issue("u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("ed25519 roundtrip failed: %v", err)
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	m, err := NewManager(Config{
		Type:       TypeAccess,
		TTL:        time.Minute,
		PrivateKey: testAccessSecret,
		Issuer:     "login-register",
		Audience:   "api",
		Leeway:     30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	sign := func(iss, aud string) string {
		c := Claims{UID: "u", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}}
		s, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, c).SignedString(testAccessSecret)
		return s
	}

	if _, err := m.Parse(sign("login-register", "api")); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if _, err := m.Parse(sign("other", "api")); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign("login-register", "other")); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestNewManagerRejectsWeakConfig(t *testing.T) {
	cases := []Config{
		{Type: TypeAccess, TTL: time.Minute, PrivateKey: []byte("short")},
		{Type: TypeAccess, TTL: 0, PrivateKey: testAccessSecret},
		{Type: "other", TTL: time.Minute, PrivateKey: testAccessSecret},
		{Type: TypeAccess, TTL: time.Minute, PrivateKey: testAccessSecret, Leeway: time.Hour},
		{Type: TypeAccess, TTL: time.Minute, PrivateKey: testAccessSecret, SigningMethod: "rs256"},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config rejection", i)
		}
	}
}
