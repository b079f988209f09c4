package estateAuth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/permission"
)

const testPassword = "correct-horse-42"

type mockPrincipalStore struct {
	mu        sync.Mutex
	byID      map[string]Principal
	updateErr error
	lookupErr error

	updateCalls int
}

func newMockPrincipalStore() *mockPrincipalStore {
	return &mockPrincipalStore{byID: map[string]Principal{}}
}

func (m *mockPrincipalStore) add(p Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = p
}

func (m *mockPrincipalStore) get(id string) Principal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *mockPrincipalStore) setActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	p.Active = active
	m.byID[id] = p
}

func (m *mockPrincipalStore) GetPrincipalByEmail(_ context.Context, email string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return Principal{}, m.lookupErr
	}
	for _, p := range m.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (m *mockPrincipalStore) GetPrincipalByID(_ context.Context, id string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return Principal{}, m.lookupErr
	}
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (m *mockPrincipalStore) UpdateCredentialHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.CredentialHash = hash
	m.byID[id] = p
	return nil
}

type sentReset struct {
	principalID string
	token       string
	expiresAt   time.Time
}

type recordingDelivery struct {
	mu    sync.Mutex
	sent  []sentReset
	err   error
	delay time.Duration
}

func (d *recordingDelivery) SendPasswordReset(ctx context.Context, p Principal, token string, expiresAt time.Time) error {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentReset{principalID: p.ID, token: token, expiresAt: expiresAt})
	return d.err
}

func (d *recordingDelivery) last(t *testing.T) sentReset {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		t.Fatal("expected a delivered reset token")
	}
	return d.sent[len(d.sent)-1]
}

func (d *recordingDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engineHarness struct {
	engine     *Engine
	mr         *miniredis.Miniredis
	rdb        *redis.Client
	principals *mockPrincipalStore
	delivery   *recordingDelivery
	clock      *testClock
	hasher     *password.Argon2
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// engineTestConfig uses the cheapest argon2 parameters Validate accepts.
func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newEngineHarness(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *engineHarness {
	t.Helper()

	cfg := engineTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	h := &engineHarness{
		mr:         mr,
		rdb:        rdb,
		principals: newMockPrincipalStore(),
		delivery:   &recordingDelivery{},
		clock:      newTestClock(),
	}

	// Seeded credentials always use the base parameters so tests can raise
	// the engine's cost and observe an upgrade.
	base := engineTestConfig().Password
	hasher, err := password.NewArgon2(password.Config{
		Memory:      base.Memory,
		Time:        base.Time,
		Parallelism: base.Parallelism,
		SaltLength:  base.SaltLength,
		KeyLength:   base.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	h.hasher = hasher

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalStore(h.principals).
		WithResetDelivery(h.delivery).
		WithClock(h.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *engineHarness) addPrincipal(t *testing.T, id, email string, role permission.Role) Principal {
	t.Helper()

	hash, err := h.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	p := Principal{ID: id, Email: email, CredentialHash: hash, Role: role, Active: true}
	h.principals.add(p)
	return p
}

func (h *engineHarness) login(t *testing.T, email string) *LoginResult {
	t.Helper()

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"),
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	res, err := h.engine.Login(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}

func (h *engineHarness) authenticate(t *testing.T, access string) *AuthResult {
	t.Helper()

	auth, err := h.engine.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return auth
}
