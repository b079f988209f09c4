package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/estateAuth/revocation"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session id has no live record.
var ErrNotFound = errors.New("session not found")

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

const (
	defaultPrefix      = "as"
	defaultIndexPrefix = "au"
	maxTouchRetries    = 3
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session registry. Each session is one key whose
// TTL equals the remaining refresh-token lifetime; a per-principal set
// indexes session ids and is pruned lazily as records expire.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	indexPrefix   string
	touchInterval time.Duration
	now           func() time.Time
}

// Option customizes a [Store].
type Option func(*Store)

// WithPrefix sets the key namespaces for session records and the
// per-principal index.
func WithPrefix(prefix, indexPrefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
		if indexPrefix != "" {
			s.indexPrefix = indexPrefix
		}
	}
}

// WithClock overrides the clock used for timestamps and TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTouchInterval skips the write in [Store.Touch] when the previous
// activity is more recent than d.
func WithTouchInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.touchInterval = d
		}
	}
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:       rdb,
		prefix:      defaultPrefix,
		indexPrefix: defaultIndexPrefix,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) indexKey(principalID string) string {
	return s.indexPrefix + ":" + principalID
}

// Create persists a new session and indexes it under its principal.
//
//	Performance: 1 MULTI/EXEC (SET + SADD).
func (s *Store) Create(ctx context.Context, in NewSession) (*Session, error) {
	if in.PrincipalID == "" {
		return nil, errors.New("session principal id required")
	}
	if in.RefreshFingerprint == "" {
		return nil, errors.New("session refresh fingerprint required")
	}

	now := s.now()
	ttl := in.RefreshExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil, errors.New("session refresh expiry must be in the future")
	}

	id := in.ID
	if id == "" {
		id = NewID()
	}

	ua := in.UserAgent
	if len(ua) > MaxUserAgentBytes {
		ua = ua[:MaxUserAgentBytes]
	}
	origin := in.Origin
	if len(origin) > MaxOriginBytes {
		origin = origin[:MaxOriginBytes]
	}

	sess := &Session{
		ID:                 id,
		PrincipalID:        in.PrincipalID,
		Role:               in.Role,
		RefreshFingerprint: in.RefreshFingerprint,
		RefreshExpiresAt:   in.RefreshExpiresAt,
		Browser:            ClassifyBrowser(ua),
		DeviceType:         ClassifyDevice(ua),
		UserAgent:          ua,
		Origin:             origin,
		CreatedAt:          now,
		LastActivity:       now,
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), data, ttl)
		pipe.SAdd(ctx, s.indexKey(in.PrincipalID), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Round-trip through the codec so callers see the stored precision.
	return Decode(data)
}

// Get returns the live session with the given id.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return sess, nil
}

// Touch records activity on a session without changing its expiry. A
// missing session is not an error.
//
//	Security: WATCH guards against resurrecting a concurrently deleted record.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)

	for attempt := 0; attempt < maxTouchRetries; attempt++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}
			sess, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}

			now := s.now()
			if s.touchInterval > 0 && now.Sub(sess.LastActivity) < s.touchInterval {
				return nil
			}
			sess.LastActivity = now

			updated, err := Encode(sess)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrCorrupt):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	// Lost every race to a concurrent writer; the record was updated anyway.
	return nil
}

// List returns the live sessions of a principal, most recently active
// first. Index entries whose record has expired are pruned.
func (s *Store) List(ctx context.Context, principalID string) ([]*Session, error) {
	idxKey := s.indexKey(principalID)

	ids, err := s.redis.SMembers(ctx, idxKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		sess, err := Decode(data)
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, idxKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return sessions, nil
}

// Delete removes a session and its index entry and returns the removed
// record. A second Delete of the same id yields [ErrNotFound].
//
//	Performance: 1 GET + 1 Lua script (EXISTS + SREM + DEL).
func (s *Store) Delete(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	existed, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.indexKey(sess.PrincipalID)},
		sessionID,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if existed == 0 {
		return nil, ErrNotFound
	}
	return sess, nil
}

// DeleteAllExcept removes every session of principalID other than keepID and
// returns the removed records.
//
// ATOMICITY NOTE: the session set is read before the delete transaction. A
// session created between the two phases survives; callers that must cover
// it revoke by principal afterwards.
func (s *Store) DeleteAllExcept(ctx context.Context, principalID, keepID string) ([]*Session, error) {
	sessions, err := s.List(ctx, principalID)
	if err != nil {
		return nil, err
	}

	victims := make([]*Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.ID != keepID {
			victims = append(victims, sess)
		}
	}
	if len(victims) == 0 {
		return victims, nil
	}

	keys := make([]string, len(victims))
	members := make([]interface{}, len(victims))
	for i, sess := range victims {
		keys[i] = s.key(sess.ID)
		members[i] = sess.ID
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, s.indexKey(principalID), members...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return victims, nil
}

// DeleteAllForPrincipal removes every session of principalID.
func (s *Store) DeleteAllForPrincipal(ctx context.Context, principalID string) ([]*Session, error) {
	return s.DeleteAllExcept(ctx, principalID, "")
}

// RefreshFingerprints implements [revocation.FingerprintSource].
func (s *Store) RefreshFingerprints(ctx context.Context, principalID string) ([]revocation.Target, error) {
	sessions, err := s.List(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return Targets(sessions), nil
}

// Targets converts sessions into revocation targets for their refresh tokens.
func Targets(sessions []*Session) []revocation.Target {
	out := make([]revocation.Target, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, revocation.Target{
			Fingerprint: sess.RefreshFingerprint,
			ExpiresAt:   sess.RefreshExpiresAt,
		})
	}
	return out
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
