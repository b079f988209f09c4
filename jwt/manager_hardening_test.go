package jwt

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func signRaw(t *testing.T, method gjwt.SigningMethod, key interface{}, kid string, claims wireClaims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func rawClaims(now time.Time, typ string, iss string, aud string, exp time.Time) wireClaims {
	c := wireClaims{
		Role:      "TENANT",
		SessionID: "s1",
		Type:      typ,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "p1",
			Issuer:    iss,
			IssuedAt:  gjwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: gjwt.NewNumericDate(exp),
		},
	}
	if aud != "" {
		c.Audience = gjwt.ClaimStrings{aud}
	}
	return c
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	token := signRaw(t, gjwt.SigningMethodHS256, []byte("secret-secret-secret-secret-secret"), "", rawClaims(now, "access", "", "", now.Add(time.Minute)))
	if _, err := m.Decode(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected as signature invalid, got %v", err)
	}
}

func TestDecodeIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	now := time.Unix(1_700_000_000, 0)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "estate-auth",
		Audience:      "api",
		Leeway:        30 * time.Second,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.IssueAccess(tenant)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.Decode(access); err != nil {
		t.Fatalf("expected valid token to decode: %v", err)
	}

	badIssuer := signRaw(t, gjwt.SigningMethodEdDSA, priv, "", rawClaims(now, "access", "other", "api", now.Add(time.Minute)))
	if m.Validate(badIssuer) {
		t.Fatal("expected wrong issuer to fail")
	}

	badAudience := signRaw(t, gjwt.SigningMethodEdDSA, priv, "", rawClaims(now, "access", "estate-auth", "other-api", now.Add(time.Minute)))
	if m.Validate(badAudience) {
		t.Fatal("expected wrong audience to fail")
	}

	within := signRaw(t, gjwt.SigningMethodEdDSA, priv, "", rawClaims(now, "access", "estate-auth", "api", now.Add(-15*time.Second)))
	if _, err := m.Decode(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := signRaw(t, gjwt.SigningMethodEdDSA, priv, "", rawClaims(now, "access", "estate-auth", "api", now.Add(-2*time.Minute)))
	if _, err := m.Decode(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDecodeRejectsUnknownKindClaim(t *testing.T) {
	_, priv := newEdKeys(t)
	now := time.Now()
	m, err := NewManager(Config{PrivateKey: priv})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	for _, typ := range []string{"", "id", "ACCESS"} {
		token := signRaw(t, gjwt.SigningMethodEdDSA, priv, "", rawClaims(now, typ, "", "", now.Add(time.Minute)))
		if _, err := m.Decode(token); !errors.Is(err, ErrUnknownKind) {
			t.Fatalf("typ %q: expected ErrUnknownKind, got %v", typ, err)
		}
		if m.Validate(token) {
			t.Fatalf("typ %q: expected Validate to reject", typ)
		}
	}
}

func TestDecodeRequiresSubjectAndRole(t *testing.T) {
	_, priv := newEdKeys(t)
	now := time.Now()
	m, err := NewManager(Config{PrivateKey: priv})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	noSubject := rawClaims(now, "access", "", "", now.Add(time.Minute))
	noSubject.Subject = ""
	if _, err := m.Decode(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", noSubject)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without sub, got %v", err)
	}

	noRole := rawClaims(now, "access", "", "", now.Add(time.Minute))
	noRole.Role = ""
	if _, err := m.Decode(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", noRole)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without role, got %v", err)
	}

	noExpiry := rawClaims(now, "access", "", "", now)
	noExpiry.ExpiresAt = nil
	if m.Validate(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", noExpiry)) {
		t.Fatal("expected token without exp to fail")
	}
}

func TestDecodeUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	claims := rawClaims(now, "access", "", "", now.Add(time.Minute))

	unknown := signRaw(t, gjwt.SigningMethodEdDSA, priv1, "k2", claims)
	if _, err := m.Decode(unknown); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	good := signRaw(t, gjwt.SigningMethodEdDSA, priv1, "k1", claims)
	if _, err := m.Decode(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	issued, _, err := m.IssueRefresh(tenant)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !m.IsRefresh(issued) {
		t.Fatal("expected issued token to carry kid and verify")
	}

	m2, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m2.Validate(good) {
		t.Fatal("expected failure with mismatched key set")
	}
}
