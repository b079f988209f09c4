package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/estateAuth/internal"
	"github.com/MrEthical07/estateAuth/internal/stores"
)

// ResetRecordStore persists reset records keyed by token fingerprint.
type ResetRecordStore interface {
	Save(ctx context.Context, fingerprint string, record *stores.PasswordResetRecord) error
	Get(ctx context.Context, fingerprint string) (*stores.PasswordResetRecord, error)
	Consume(ctx context.Context, fingerprint string) (*stores.PasswordResetRecord, error)
	Release(ctx context.Context, fingerprint string) error
}

// ResetPrincipal is the directory view of a principal needed by the reset flow.
type ResetPrincipal struct {
	ID     string
	Email  string
	Active bool
}

// RequestResetOutcome says what a reset request did. Callers must not
// expose it to the requester.
type RequestResetOutcome int

const (
	RequestResetIssued RequestResetOutcome = iota
	RequestResetUnknownPrincipal
	RequestResetInactivePrincipal
	RequestResetThrottled
	RequestResetInvalidInput
	RequestResetFailed
)

// RequestResetResult reports the outcome of a reset request.
type RequestResetResult struct {
	Outcome     RequestResetOutcome
	PrincipalID string
	ExpiresAt   time.Time
	Err         error
}

// ResetStatus is the answer to a reset token validity check.
type ResetStatus struct {
	Valid            bool
	RemainingMinutes int
}

// CompleteResetFailureKind classifies reset completion failures.
type CompleteResetFailureKind int

const (
	CompleteResetFailureNone CompleteResetFailureKind = iota
	CompleteResetFailureInvalid
	CompleteResetFailureAlreadyUsed
	CompleteResetFailurePolicy
	CompleteResetFailureCredential
	CompleteResetFailureRevocation
	CompleteResetFailureBackend
)

// CompleteResetResult reports the outcome of a reset completion.
type CompleteResetResult struct {
	Failure     CompleteResetFailureKind
	PrincipalID string
	Revoked     int
	Err         error
}

// PasswordResetDeps captures password reset flow dependencies.
type PasswordResetDeps struct {
	TTL   time.Duration
	Now   func() time.Time
	Store ResetRecordStore

	FindByEmail func(ctx context.Context, email string) (ResetPrincipal, bool, error)
	// Throttle returns a non-nil error when the request must be dropped.
	Throttle func(ctx context.Context, email string) error
	// Deliver hands the raw token to the delivery collaborator.
	Deliver func(ctx context.Context, principal ResetPrincipal, token string, expiresAt time.Time)

	CheckPolicy          func(string) error
	HashPassword         func(string) (string, error)
	UpdateCredentialHash func(ctx context.Context, principalID, hash string) error
	// RevokeAll retires every session of the principal and returns how many
	// refresh credentials were revoked.
	RevokeAll func(ctx context.Context, principalID string) (int, error)

	Warn func(string, ...any)
}

func (d *PasswordResetDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RunRequestPasswordReset issues a reset token for email when it names an
// active principal and the request is not throttled.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) RequestResetResult {
	email = strings.TrimSpace(email)
	if email == "" {
		return RequestResetResult{Outcome: RequestResetInvalidInput}
	}

	if deps.Throttle != nil {
		if err := deps.Throttle(ctx, email); err != nil {
			return RequestResetResult{Outcome: RequestResetThrottled, Err: err}
		}
	}

	principal, found, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return RequestResetResult{Outcome: RequestResetFailed, Err: err}
	}
	if !found {
		return RequestResetResult{Outcome: RequestResetUnknownPrincipal}
	}
	if !principal.Active {
		return RequestResetResult{Outcome: RequestResetInactivePrincipal, PrincipalID: principal.ID}
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return RequestResetResult{Outcome: RequestResetFailed, PrincipalID: principal.ID, Err: err}
	}

	now := deps.now()
	record := &stores.PasswordResetRecord{
		PrincipalID: principal.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(deps.TTL),
	}
	if err := deps.Store.Save(ctx, internal.Fingerprint(token), record); err != nil {
		return RequestResetResult{Outcome: RequestResetFailed, PrincipalID: principal.ID, Err: err}
	}

	if deps.Deliver != nil {
		deps.Deliver(ctx, principal, token, record.ExpiresAt)
	}

	return RequestResetResult{
		Outcome:     RequestResetIssued,
		PrincipalID: principal.ID,
		ExpiresAt:   record.ExpiresAt,
	}
}

// RunValidateResetToken reports whether token is unused and unexpired and
// how many whole minutes remain, rounded up.
func RunValidateResetToken(ctx context.Context, token string, deps PasswordResetDeps) (ResetStatus, error) {
	if !internal.IsResetTokenShape(token) {
		return ResetStatus{}, nil
	}

	record, err := deps.Store.Get(ctx, internal.Fingerprint(token))
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return ResetStatus{}, nil
		}
		return ResetStatus{}, err
	}
	if record.Used {
		return ResetStatus{}, nil
	}

	remaining := record.ExpiresAt.Sub(deps.now())
	if remaining <= 0 {
		return ResetStatus{}, nil
	}
	return ResetStatus{Valid: true, RemainingMinutes: ceilMinutes(remaining)}, nil
}

func ceilMinutes(d time.Duration) int {
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// RunCompletePasswordReset consumes token, replaces the credential and
// revokes every session of the principal.
//
// The record is consumed before the credential write and released again
// if that write fails, so a failed completion leaves the token usable.
func RunCompletePasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) CompleteResetResult {
	warn := warnOrDiscard(deps.Warn)

	if !internal.IsResetTokenShape(token) {
		return CompleteResetResult{Failure: CompleteResetFailureInvalid}
	}
	fp := internal.Fingerprint(token)

	record, err := deps.Store.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return CompleteResetResult{Failure: CompleteResetFailureInvalid}
		}
		return CompleteResetResult{Failure: CompleteResetFailureBackend, Err: err}
	}
	if record.Used {
		return CompleteResetResult{Failure: CompleteResetFailureAlreadyUsed, PrincipalID: record.PrincipalID}
	}

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(newPassword); err != nil {
			return CompleteResetResult{Failure: CompleteResetFailurePolicy, PrincipalID: record.PrincipalID, Err: err}
		}
	}
	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return CompleteResetResult{Failure: CompleteResetFailureBackend, PrincipalID: record.PrincipalID, Err: err}
	}

	record, err = deps.Store.Consume(ctx, fp)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrResetAlreadyUsed):
			return CompleteResetResult{Failure: CompleteResetFailureAlreadyUsed}
		case errors.Is(err, stores.ErrResetNotFound):
			return CompleteResetResult{Failure: CompleteResetFailureInvalid}
		default:
			return CompleteResetResult{Failure: CompleteResetFailureBackend, Err: err}
		}
	}

	if err := deps.UpdateCredentialHash(ctx, record.PrincipalID, hash); err != nil {
		if relErr := deps.Store.Release(ctx, fp); relErr != nil {
			warn("reset record release failed", "principal_id", record.PrincipalID, "error", relErr)
		}
		return CompleteResetResult{Failure: CompleteResetFailureCredential, PrincipalID: record.PrincipalID, Err: err}
	}

	revoked, err := deps.RevokeAll(ctx, record.PrincipalID)
	if err != nil {
		return CompleteResetResult{Failure: CompleteResetFailureRevocation, PrincipalID: record.PrincipalID, Revoked: revoked, Err: err}
	}

	return CompleteResetResult{PrincipalID: record.PrincipalID, Revoked: revoked}
}
