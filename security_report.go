package estateAuth

import (
	"time"

	"github.com/MrEthical07/estateAuth/permission"
)

// SecurityReport summarizes the effective security posture of an engine.
// It carries no key material.
type SecurityReport struct {
	ProductionMode       bool
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	Argon2               PasswordConfigReport
	LoginThrottleActive  bool
	IPThrottleActive     bool
	PasswordResetActive  bool
	ResetThrottleActive  bool
	AsyncResetDelivery   bool
	AuditEnabled         bool
	MetricsEnabled       bool
	PermissionRolesKnown int
}

type PasswordConfigReport struct {
	Memory       uint32
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	MinLength    int
	RequireMixed bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	roles := 0
	if e.evaluator != nil {
		for _, r := range permission.Roles() {
			if e.evaluator.Known(r) {
				roles++
			}
		}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.tokens.Algorithm(),
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:       e.config.Password.Memory,
			Time:         e.config.Password.Time,
			Parallelism:  e.config.Password.Parallelism,
			SaltLength:   e.config.Password.SaltLength,
			KeyLength:    e.config.Password.KeyLength,
			MinLength:    e.hasher.Policy().MinBytes,
			RequireMixed: e.hasher.Policy().RequireMixed,
		},
		LoginThrottleActive:  e.loginEmailPolicy.Enabled(),
		IPThrottleActive:     e.loginIPPolicy.Enabled(),
		PasswordResetActive:  e.config.PasswordReset.Enabled,
		ResetThrottleActive:  e.config.PasswordReset.Enabled && e.resetEmailPolicy.Enabled(),
		AsyncResetDelivery:   e.config.PasswordReset.Enabled && e.config.PasswordReset.AsyncDelivery,
		AuditEnabled:         e.audit != nil,
		MetricsEnabled:       e.metrics.Enabled(),
		PermissionRolesKnown: roles,
	}
}
