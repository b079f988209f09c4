package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/estateAuth/internal"
)

// ErrRedisUnavailable wraps every backend failure returned by the [Registry].
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix namespaces revocation keys.
const DefaultPrefix = "arv"

// Reason records why a credential was revoked.
type Reason string

const (
	ReasonLogout         Reason = "logout"
	ReasonSessionRevoked Reason = "session_revoked"
	ReasonPasswordReset  Reason = "password_reset"
	ReasonForceLogout    Reason = "force_logout"
	ReasonPrincipalGone  Reason = "principal_inactive"
)

// Target is one credential to revoke, identified by fingerprint, with the
// natural expiry of the credential it stands for.
type Target struct {
	Fingerprint string
	ExpiresAt   time.Time
}

// FingerprintSource reports the live refresh credentials of a principal.
// The session store implements it.
type FingerprintSource interface {
	RefreshFingerprints(ctx context.Context, principalID string) ([]Target, error)
}

// Registry is a Redis-backed deny list of token fingerprints. An entry lives
// as long as the token it denies would have stayed valid, plus the grace
// set by [WithGrace].
//
// Lookups always hit Redis so a revocation written by one request is
// observed by every later request.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
	source FingerprintSource
	now    func() time.Time
	grace  time.Duration
}

// Option customizes a [Registry].
type Option func(*Registry)

// WithPrefix overrides [DefaultPrefix].
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithClock overrides the clock used to derive entry TTLs.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithGrace extends every entry past the credential's expiry by d. Set it to
// the token parser's leeway so an entry outlives every token it denies.
func WithGrace(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithSource sets the [FingerprintSource] used by [Registry.RevokeAllForPrincipal].
func WithSource(src FingerprintSource) Option {
	return func(r *Registry) { r.source = src }
}

// NewRegistry returns a [Registry] writing to rdb.
func NewRegistry(rdb redis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{
		redis:  rdb,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) key(fp string) string {
	return r.prefix + ":" + fp
}

// Revoke denies token until expiresAt plus the configured grace. It is a
// no-op when that moment has already passed.
func (r *Registry) Revoke(ctx context.Context, token string, expiresAt time.Time, reason Reason) error {
	return r.RevokeFingerprint(ctx, internal.Fingerprint(token), expiresAt, reason)
}

// RevokeFingerprint is [Registry.Revoke] for a precomputed fingerprint.
func (r *Registry) RevokeFingerprint(ctx context.Context, fp string, expiresAt time.Time, reason Reason) error {
	if fp == "" {
		return errors.New("empty fingerprint")
	}
	_, err := r.write(ctx, []Target{{Fingerprint: fp, ExpiresAt: expiresAt}}, reason)
	return err
}

// RevokeAllForPrincipal denies every refresh credential the configured
// [FingerprintSource] reports for principalID and returns how many entries
// were written.
func (r *Registry) RevokeAllForPrincipal(ctx context.Context, principalID string, reason Reason) (int, error) {
	if r.source == nil {
		return 0, errors.New("revocation registry has no fingerprint source")
	}
	targets, err := r.source.RefreshFingerprints(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return r.write(ctx, targets, reason)
}

// RevokeTargets writes entries for an explicit set of credentials.
func (r *Registry) RevokeTargets(ctx context.Context, targets []Target, reason Reason) (int, error) {
	return r.write(ctx, targets, reason)
}

func (r *Registry) write(ctx context.Context, targets []Target, reason Reason) (int, error) {
	if reason == "" {
		reason = ReasonLogout
	}
	now := r.now()

	type entry struct {
		key string
		ttl time.Duration
	}
	entries := make([]entry, 0, len(targets))
	for _, t := range targets {
		if t.Fingerprint == "" {
			continue
		}
		ttl := t.ExpiresAt.Add(r.grace).Sub(now)
		if ttl <= 0 {
			continue
		}
		entries = append(entries, entry{key: r.key(t.Fingerprint), ttl: ttl})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.key, string(reason), e.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return len(entries), nil
}

// IsRevoked reports whether token has a live revocation entry.
func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	return r.IsFingerprintRevoked(ctx, internal.Fingerprint(token))
}

// IsFingerprintRevoked is [Registry.IsRevoked] for a precomputed fingerprint.
func (r *Registry) IsFingerprintRevoked(ctx context.Context, fp string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(fp)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Reason returns the stored reason for fp. The boolean is false when fp is
// not revoked.
func (r *Registry) Reason(ctx context.Context, fp string) (Reason, bool, error) {
	v, err := r.redis.Get(ctx, r.key(fp)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Reason(v), true, nil
}
