package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		PrivateKey: priv,
		Issuer:     "estate-auth",
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

var tenant = Subject{PrincipalID: "p-1", Role: "TENANT", SessionID: "s-1"}

func TestIssueDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		var (
			token string
			exp   time.Time
			err   error
		)
		if kind == KindAccess {
			token, exp, err = m.IssueAccess(tenant)
		} else {
			token, exp, err = m.IssueRefresh(tenant)
		}
		if err != nil {
			t.Fatalf("issue %s: %v", kind, err)
		}

		claims, err := m.Decode(token)
		if err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
		if claims.PrincipalID != tenant.PrincipalID || claims.Role != tenant.Role || claims.SessionID != tenant.SessionID {
			t.Fatalf("claims mismatch: %+v", claims)
		}
		if claims.Kind != kind {
			t.Fatalf("expected kind %s, got %s", kind, claims.Kind)
		}
		if !claims.ExpiresAt.Equal(exp) {
			t.Fatalf("expiry mismatch: %v vs %v", claims.ExpiresAt, exp)
		}
		if claims.ID == "" {
			t.Fatal("expected jti")
		}
	}
}

func TestRefreshHorizonExceedsAccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	_, accessExp, err := m.IssueAccess(tenant)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	_, refreshExp, err := m.IssueRefresh(tenant)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if !refreshExp.After(accessExp) {
		t.Fatalf("refresh expiry %v must exceed access expiry %v", refreshExp, accessExp)
	}
	if got := accessExp.Sub(clock.now); got != time.Hour {
		t.Fatalf("expected 1h access lifetime, got %v", got)
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, _, err := m.IssueAccess(tenant)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatal("expected distinct tokens for the same subject and instant")
		}
		seen[token] = struct{}{}
	}
}

func TestDecodeAsRejectsWrongKind(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	access, _, _ := m.IssueAccess(tenant)
	refresh, _, _ := m.IssueRefresh(tenant)

	if _, err := m.DecodeAs(access, KindRefresh); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for access-as-refresh, got %v", err)
	}
	if _, err := m.DecodeAs(refresh, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for refresh-as-access, got %v", err)
	}
	if _, err := m.DecodeAs(access, kindUnknown); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if !m.IsRefresh(refresh) || m.IsRefresh(access) {
		t.Fatal("IsRefresh misclassified tokens")
	}
}

func TestDecodeExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	access, _, _ := m.IssueAccess(tenant)
	refresh, _, _ := m.IssueRefresh(tenant)

	clock.Advance(time.Hour + time.Second)

	if _, err := m.Decode(access); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if m.Validate(access) {
		t.Fatal("expired access token must not validate")
	}
	if !m.Validate(refresh) {
		t.Fatal("refresh token should still be valid after access expiry")
	}

	clock.Advance(7 * 24 * time.Hour)
	if m.Validate(refresh) {
		t.Fatal("refresh token must not validate after its horizon")
	}
}

func TestDecodeForeignSignature(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)
	other := newTestManager(t, clock)

	token, _, err := other.IssueAccess(tenant)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Decode(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestValidateIsTotal(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)
	valid, _, _ := m.IssueAccess(tenant)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"two segments":   "a.b",
		"truncated":      valid[:len(valid)-5],
		"bad signature":  tampered,
		"header only":    parts[0],
		"unicode":        "ü.ö.ä",
		"trailing space": valid + " ",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if m.Validate(input) {
				t.Fatalf("expected %q to be rejected", name)
			}
			if _, err := m.Decode(input); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}

	var nilManager *Manager
	if nilManager.Validate(valid) {
		t.Fatal("nil manager must reject")
	}
}

func TestDecodeMalformed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	if _, err := m.Decode("a.b"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := m.Decode(""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty token, got %v", err)
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := m.IssueRefresh(tenant)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !m.IsRefresh(token) {
		t.Fatal("expected refresh token to verify")
	}
	if m.Algorithm() != "HS256" {
		t.Fatalf("unexpected alg %s", m.Algorithm())
	}
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	_, priv := newEdKeys(t)

	cases := map[string]Config{
		"short hmac":      {SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"access>=refresh": {PrivateKey: priv, AccessTTL: time.Hour, RefreshTTL: time.Hour},
		"no keys":         {SigningMethod: MethodEd25519},
		"bad method":      {SigningMethod: "rs512", PrivateKey: priv},
		"huge leeway":     {PrivateKey: priv, Leeway: time.Hour},
		"bad kid":         {PrivateKey: priv, KeyID: "k2", VerifyKeys: map[string][]byte{"k1": priv.Public().(ed25519.PublicKey)}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.IssueAccess(tenant); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestIssueRejectsIncompleteSubject(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestManager(t, clock)

	if _, _, err := m.IssueAccess(Subject{Role: "TENANT"}); err == nil {
		t.Fatal("expected missing principal id to fail")
	}
	if _, _, err := m.IssueAccess(Subject{PrincipalID: "p"}); err == nil {
		t.Fatal("expected missing role to fail")
	}
}
