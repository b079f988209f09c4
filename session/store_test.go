package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/estateAuth/internal"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *testClock, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	store := NewStore(rdb, WithClock(clock.Now))
	return store, mr, clock, func() {
		rdb.Close()
		mr.Close()
	}
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func newTestSession(clock *testClock, principal, refresh string) NewSession {
	return NewSession{
		PrincipalID:        principal,
		Role:               "TENANT",
		RefreshFingerprint: internal.Fingerprint(refresh),
		RefreshExpiresAt:   clock.now.Add(7 * 24 * time.Hour),
		UserAgent:          chromeUA,
		Origin:             "203.0.113.7",
	}
}

func TestCreateGet(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Browser != BrowserChrome || created.DeviceType != DeviceDesktop {
		t.Fatalf("unexpected classification %s/%s", created.Browser, created.DeviceType)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PrincipalID != "p-1" || got.RefreshFingerprint != internal.Fingerprint("r-1") || got.Origin != "203.0.113.7" {
		t.Fatalf("unexpected session %+v", got)
	}
	if !got.CreatedAt.Equal(clock.now) || !got.LastActivity.Equal(clock.now) {
		t.Fatalf("unexpected timestamps %v %v", got.CreatedAt, got.LastActivity)
	}

	if ttl := mr.TTL(defaultPrefix + ":" + created.ID); ttl != 7*24*time.Hour {
		t.Fatalf("expected TTL equal to refresh lifetime, got %v", ttl)
	}
	if !got.IsCurrent(created.ID) || got.IsCurrent("other") || got.IsCurrent("") {
		t.Fatal("IsCurrent misreported")
	}
}

func TestCreateWithExplicitID(t *testing.T) {
	store, _, clock, done := newSessionStoreTest(t)
	defer done()

	in := newTestSession(clock, "p-1", "r-1")
	in.ID = "fixed-id"
	created, err := store.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "fixed-id" {
		t.Fatalf("expected explicit id, got %s", created.ID)
	}
}

func TestCreateBoundsOriginAndUserAgent(t *testing.T) {
	store, _, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	in := newTestSession(clock, "p-1", "r-1")
	in.Origin = strings.Repeat("a", 300)
	in.UserAgent = chromeUA + strings.Repeat("x", MaxUserAgentBytes)

	created, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("create with long origin: %v", err)
	}
	if len(created.Origin) != MaxOriginBytes {
		t.Fatalf("expected origin cut to %d bytes, got %d", MaxOriginBytes, len(created.Origin))
	}
	if len(created.UserAgent) != MaxUserAgentBytes {
		t.Fatalf("expected user agent cut to %d bytes, got %d", MaxUserAgentBytes, len(created.UserAgent))
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Origin != created.Origin {
		t.Fatal("stored origin differs from returned origin")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	store, _, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	noPrincipal := newTestSession(clock, "", "r")
	if _, err := store.Create(ctx, noPrincipal); err == nil {
		t.Fatal("expected missing principal to fail")
	}
	expired := newTestSession(clock, "p", "r")
	expired.RefreshExpiresAt = clock.now
	if _, err := store.Create(ctx, expired); err == nil {
		t.Fatal("expected expired refresh horizon to fail")
	}
	badFP := newTestSession(clock, "p", "r")
	badFP.RefreshFingerprint = "not-hex"
	if _, err := store.Create(ctx, badFP); err == nil {
		t.Fatal("expected malformed fingerprint to fail")
	}
}

func TestGetMissing(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestGetCorrupt(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()

	if err := mr.Set(defaultPrefix+":bad", "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Get(context.Background(), "bad"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestTouchUpdatesActivityAndKeepsTTL(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	created, err := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	key := defaultPrefix + ":" + created.ID

	mr.FastForward(time.Hour)
	clock.Advance(time.Hour)
	if err := store.Touch(ctx, created.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActivity.Equal(clock.now) {
		t.Fatalf("expected last activity %v, got %v", clock.now, got.LastActivity)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("touch must not change creation time")
	}
	if ttl := mr.TTL(key); ttl != 7*24*time.Hour-time.Hour {
		t.Fatalf("touch must keep the TTL, got %v", ttl)
	}

	if err := store.Touch(ctx, "missing"); err != nil {
		t.Fatalf("touch on missing session should be a no-op, got %v", err)
	}
	if mr.Exists(defaultPrefix + ":missing") {
		t.Fatal("touch must not create records")
	}
}

func TestTouchInterval(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	store := NewStore(rdb, WithClock(clock.Now), WithTouchInterval(time.Minute))
	ctx := context.Background()

	created, err := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(10 * time.Second)
	_ = store.Touch(ctx, created.ID)
	got, _ := store.Get(ctx, created.ID)
	if !got.LastActivity.Equal(created.LastActivity) {
		t.Fatal("touch inside interval must not write")
	}

	clock.Advance(time.Minute)
	_ = store.Touch(ctx, created.ID)
	got, _ = store.Get(ctx, created.ID)
	if !got.LastActivity.Equal(clock.now) {
		t.Fatal("touch after interval must write")
	}
}

func TestListOrdersByActivityAndPrunes(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	first, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	clock.Advance(time.Second)
	second, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-2"))
	clock.Advance(time.Second)
	third, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-3"))
	other, _ := store.Create(ctx, newTestSession(clock, "p-2", "r-4"))

	clock.Advance(time.Second)
	if err := store.Touch(ctx, first.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	list, err := store.List(ctx, "p-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{first.ID, third.ID, second.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
	for _, s := range list {
		if s.ID == other.ID {
			t.Fatal("list leaked another principal's session")
		}
	}

	// Expire one record behind the index.
	mr.Del(defaultPrefix + ":" + second.ID)
	list, err = store.List(ctx, "p-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions after expiry, got %d", len(list))
	}
	members, _ := mr.Members(defaultIndexPrefix + ":p-1")
	if len(members) != 2 {
		t.Fatalf("expected stale index entry pruned, got %v", members)
	}

	empty, err := store.List(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v err=%v", empty, err)
	}
}

func TestListAfterNaturalExpiry(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	in := newTestSession(clock, "p-1", "r-1")
	in.RefreshExpiresAt = clock.now.Add(time.Hour)
	if _, err := store.Create(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(time.Hour + time.Second)

	list, err := store.List(ctx, "p-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected expired session to vanish, got %d", len(list))
	}
}

func TestDeleteReturnsRecordOnce(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	created, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))

	deleted, err := store.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != created.ID || deleted.RefreshFingerprint != created.RefreshFingerprint {
		t.Fatalf("unexpected deleted record %+v", deleted)
	}
	if _, err := store.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if members, _ := mr.Members(defaultIndexPrefix + ":p-1"); len(members) != 0 {
		t.Fatalf("expected index entry removed, got %v", members)
	}
}

func TestDeleteAllExcept(t *testing.T) {
	store, _, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	keep, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	store.Create(ctx, newTestSession(clock, "p-1", "r-2"))
	store.Create(ctx, newTestSession(clock, "p-1", "r-3"))
	foreign, _ := store.Create(ctx, newTestSession(clock, "p-2", "r-4"))

	removed, err := store.DeleteAllExcept(ctx, "p-1", keep.ID)
	if err != nil {
		t.Fatalf("delete all except: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed sessions, got %d", len(removed))
	}

	list, _ := store.List(ctx, "p-1")
	if len(list) != 1 || list[0].ID != keep.ID {
		t.Fatalf("expected only kept session, got %+v", list)
	}
	if _, err := store.Get(ctx, foreign.ID); err != nil {
		t.Fatalf("other principal's session must survive: %v", err)
	}

	removed, err = store.DeleteAllForPrincipal(ctx, "p-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("expected 1 removed session, got %d", len(removed))
	}
	if list, _ := store.List(ctx, "p-1"); len(list) != 0 {
		t.Fatalf("expected no sessions, got %d", len(list))
	}
}

func TestRefreshFingerprints(t *testing.T) {
	store, _, clock, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	a, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-1"))
	b, _ := store.Create(ctx, newTestSession(clock, "p-1", "r-2"))

	targets, err := store.RefreshFingerprints(ctx, "p-1")
	if err != nil {
		t.Fatalf("fingerprints: %v", err)
	}
	seen := map[string]bool{}
	for _, tg := range targets {
		seen[tg.Fingerprint] = true
		if !tg.ExpiresAt.Equal(a.RefreshExpiresAt) {
			t.Fatalf("unexpected expiry %v", tg.ExpiresAt)
		}
	}
	if !seen[a.RefreshFingerprint] || !seen[b.RefreshFingerprint] || len(seen) != 2 {
		t.Fatalf("unexpected targets %+v", targets)
	}
}

func TestStoreBackendFailure(t *testing.T) {
	store, mr, clock, done := newSessionStoreTest(t)
	defer done()
	mr.Close()
	ctx := context.Background()

	if _, err := store.Create(ctx, newTestSession(clock, "p", "r")); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Get(ctx, "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.List(ctx, "p"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
