package estateAuth

import (
	"context"

	"github.com/MrEthical07/estateAuth/session"
)

// ActiveSessionCount returns the number of live sessions of principalID.
// Intended for administrative tooling; it performs no permission check.
func (e *Engine) ActiveSessionCount(ctx context.Context, principalID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if principalID == "" {
		return 0, nil
	}

	sessions, err := e.sessions.List(ctx, principalID)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	return len(sessions), nil
}

// LoginAttempts returns the failed-login count recorded for email in the
// current throttle window.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if email == "" || !e.loginEmailPolicy.Enabled() {
		return 0, nil
	}

	n, err := e.limiter.Attempts(ctx, e.loginEmailPolicy, email)
	if err != nil {
		return 0, wrap(ErrStoreUnavailable, err)
	}
	return n, nil
}

// Health is an on-demand Redis ping.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}

	latency, err := e.sessions.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

func toSessionInfo(sess *session.Session, currentID string) SessionInfo {
	return SessionInfo{
		ID:           sess.ID,
		Browser:      sess.Browser,
		DeviceType:   sess.DeviceType,
		Origin:       sess.Origin,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastActivity,
		IsCurrent:    sess.IsCurrent(currentID),
	}
}
