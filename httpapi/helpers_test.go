package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/internal/principals"
	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
)

const testPassword = "correct-horse-42"

type capturedReset struct {
	mu     sync.Mutex
	tokens []string
}

func (c *capturedReset) SendPasswordReset(_ context.Context, _ estateAuth.Principal, token string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, token)
	return nil
}

func (c *capturedReset) last(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tokens) == 0 {
		t.Fatal("expected a delivered reset token")
	}
	return c.tokens[len(c.tokens)-1]
}

type apiHarness struct {
	engine     *estateAuth.Engine
	router     http.Handler
	mr         *miniredis.Miniredis
	principals *principals.Memory
	resets     *capturedReset
}

func newAPIHarness(t *testing.T, opts Options) *apiHarness {
	t.Helper()
	return newAPIHarnessWithClock(t, opts, nil)
}

func newAPIHarnessWithClock(t *testing.T, opts Options, now func() time.Time) *apiHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := estateAuth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	dir := principals.NewMemory()
	dir.Put(estateAuth.Principal{ID: "tenant-1", Email: "tenant@example.com", CredentialHash: hash, Role: permission.RoleTenant, Active: true})
	dir.Put(estateAuth.Principal{ID: "pm-1", Email: "pm@example.com", CredentialHash: hash, Role: permission.RolePropertyManager, Active: true})
	dir.Put(estateAuth.Principal{ID: "admin-1", Email: "admin@example.com", CredentialHash: hash, Role: permission.RoleSuperAdmin, Active: true})

	resets := &capturedReset{}
	engine, err := estateAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(dir).
		WithResetDelivery(resets).
		WithClock(now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &apiHarness{
		engine:     engine,
		router:     NewRouter(engine, opts),
		mr:         mr,
		principals: dir,
		resets:     resets,
	}
}

func (h *apiHarness) do(t *testing.T, method, path, bearer string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) login(t *testing.T, email string) (loginResponse, *http.Cookie) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var out loginResponse
	decodeBody(t, rec, &out)

	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return out, c
		}
	}
	t.Fatal("expected refresh_token cookie")
	return out, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rec.Code, rec.Body.String())
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &body)
	if body.Code != code {
		t.Fatalf("expected code %s, got %s", code, body.Code)
	}
}
