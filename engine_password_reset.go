package estateAuth

import (
	"context"
	"errors"
	"strconv"
	"time"

	internalflows "github.com/MrEthical07/estateAuth/internal/flows"
	"github.com/MrEthical07/estateAuth/internal/rate"
	"github.com/MrEthical07/estateAuth/internal/stores"
	"github.com/MrEthical07/estateAuth/revocation"
)

// RequestPasswordReset issues a single-use reset token for email and hands
// it to the configured [ResetDelivery].
//
// The result does not reveal whether email is known: unknown and inactive
// principals and throttled requests all return nil. Only backend outages
// surface, as [ErrStoreUnavailable].
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() || !e.config.PasswordReset.Enabled {
		return ErrEngineNotReady
	}

	var found Principal
	deps := e.passwordResetFlowDeps()
	deps.FindByEmail = func(ctx context.Context, email string) (internalflows.ResetPrincipal, bool, error) {
		p, err := e.principals.GetPrincipalByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrPrincipalNotFound) {
				return internalflows.ResetPrincipal{}, false, nil
			}
			return internalflows.ResetPrincipal{}, false, err
		}
		found = p
		return internalflows.ResetPrincipal{ID: p.ID, Email: p.Email, Active: p.Active}, true, nil
	}
	deps.Deliver = func(ctx context.Context, _ internalflows.ResetPrincipal, token string, expiresAt time.Time) {
		e.deliverReset(ctx, found, token, expiresAt)
	}

	e.metrics.Inc(MetricPasswordResetRequest)
	res := internalflows.RunRequestPasswordReset(ctx, email, deps)

	switch res.Outcome {
	case internalflows.RequestResetThrottled:
		if !errors.Is(res.Err, rate.ErrRateLimited) {
			return wrap(ErrStoreUnavailable, res.Err)
		}
		e.metrics.Inc(MetricPasswordResetThrottled)
	case internalflows.RequestResetFailed:
		e.emitAudit(ctx, auditEventPasswordResetRequest, res.PrincipalID, "", false, auditErrStoreUnavailable, nil)
		return wrap(ErrStoreUnavailable, res.Err)
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, res.PrincipalID, "", res.Outcome == internalflows.RequestResetIssued, "", map[string]string{
		"outcome": requestOutcomeName(res.Outcome),
	})
	return nil
}

// ValidateResetToken reports whether token can still complete a reset and
// how many whole minutes remain, rounded up. Unknown, expired and used
// tokens are reported as invalid rather than as errors.
func (e *Engine) ValidateResetToken(ctx context.Context, token string) (ResetTokenStatus, error) {
	if !e.ready() || !e.config.PasswordReset.Enabled {
		return ResetTokenStatus{}, ErrEngineNotReady
	}
	status, err := internalflows.RunValidateResetToken(ctx, token, e.passwordResetFlowDeps())
	if err != nil {
		return ResetTokenStatus{}, wrap(ErrStoreUnavailable, err)
	}
	return ResetTokenStatus{Valid: status.Valid, RemainingMinutes: status.RemainingMinutes}, nil
}

// CompletePasswordReset consumes token, replaces the principal's credential
// hash and ends every session of the principal.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() || !e.config.PasswordReset.Enabled {
		return ErrEngineNotReady
	}

	res := internalflows.RunCompletePasswordReset(ctx, token, newPassword, e.passwordResetFlowDeps())

	var err error
	switch res.Failure {
	case internalflows.CompleteResetFailureNone:
		e.metrics.Inc(MetricPasswordResetSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, res.PrincipalID, "", true, "", map[string]string{
			"sessions_revoked": strconv.Itoa(res.Revoked),
		})
		return nil
	case internalflows.CompleteResetFailureInvalid:
		err = ErrResetTokenInvalidOrExpired
	case internalflows.CompleteResetFailureAlreadyUsed:
		err = ErrResetTokenAlreadyUsed
		e.emitAudit(ctx, auditEventPasswordResetReplay, res.PrincipalID, "", false, auditErrResetTokenInvalid, nil)
	case internalflows.CompleteResetFailurePolicy:
		err = wrap(ErrPasswordPolicy, res.Err)
	case internalflows.CompleteResetFailureRevocation:
		// The credential has already changed; sessions may still be live.
		e.logger.Error("password reset session revocation failed",
			"component", "password_reset", "principal_id", res.PrincipalID, "error", res.Err)
		err = wrap(ErrStoreUnavailable, res.Err)
	default:
		err = wrap(ErrStoreUnavailable, res.Err)
	}

	e.metrics.Inc(MetricPasswordResetFailure)
	if res.Failure != internalflows.CompleteResetFailureAlreadyUsed {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, res.PrincipalID, "", false, auditCodeFor(err), nil)
	}
	return err
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	return internalflows.PasswordResetDeps{
		TTL:   e.config.PasswordReset.ResetTTL,
		Now:   e.clock,
		Store: e.resetStore,
		FindByEmail: func(context.Context, string) (internalflows.ResetPrincipal, bool, error) {
			return internalflows.ResetPrincipal{}, false, nil
		},
		Throttle:             e.throttleResetRequest,
		CheckPolicy:          e.hasher.Policy().Check,
		HashPassword:         e.hasher.Hash,
		UpdateCredentialHash: e.principals.UpdateCredentialHash,
		RevokeAll: func(ctx context.Context, principalID string) (int, error) {
			return e.revokeAllForPrincipal(ctx, principalID, revocation.ReasonPasswordReset)
		},
		Warn: e.warn("password_reset"),
	}
}

func (e *Engine) throttleResetRequest(ctx context.Context, email string) error {
	if err := e.limiter.Hit(ctx, e.resetEmailPolicy, email); err != nil {
		return err
	}
	return e.limiter.Hit(ctx, e.resetIPPolicy, clientIPFromContext(ctx))
}

// deliverReset hands the raw token to the delivery transport, inline or on
// an engine-owned goroutine. Failures are logged and never returned.
func (e *Engine) deliverReset(ctx context.Context, p Principal, token string, expiresAt time.Time) {
	if !e.config.PasswordReset.AsyncDelivery {
		e.sendReset(ctx, p, token, expiresAt)
		return
	}

	e.deliveryMu.Lock()
	if e.closed {
		e.deliveryMu.Unlock()
		e.sendReset(ctx, p, token, expiresAt)
		return
	}
	e.deliveries.Add(1)
	e.deliveryMu.Unlock()

	go func() {
		defer e.deliveries.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.PasswordReset.DeliveryTimeout)
		defer cancel()
		e.sendReset(dctx, p, token, expiresAt)
	}()
}

func (e *Engine) sendReset(ctx context.Context, p Principal, token string, expiresAt time.Time) {
	p.CredentialHash = ""
	if err := e.delivery.SendPasswordReset(ctx, p, token, expiresAt); err != nil {
		e.metrics.Inc(MetricResetDeliveryFailure)
		e.warn("password_reset")("reset delivery failed", "principal_id", p.ID, "error", err)
	}
}

func requestOutcomeName(o internalflows.RequestResetOutcome) string {
	switch o {
	case internalflows.RequestResetIssued:
		return "issued"
	case internalflows.RequestResetUnknownPrincipal:
		return "unknown_principal"
	case internalflows.RequestResetInactivePrincipal:
		return "inactive_principal"
	case internalflows.RequestResetThrottled:
		return "throttled"
	case internalflows.RequestResetInvalidInput:
		return "invalid_input"
	default:
		return "failed"
	}
}

var _ internalflows.ResetRecordStore = (*stores.PasswordResetStore)(nil)
