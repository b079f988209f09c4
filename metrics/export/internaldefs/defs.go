package internaldefs

import (
	estateAuth "github.com/MrEthical07/estateAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   estateAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   estateAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: estateAuth.MetricLoginSuccess, Name: "estate_auth_login_success_total", Help: "Successful login attempts."},
	{ID: estateAuth.MetricLoginFailure, Name: "estate_auth_login_failure_total", Help: "Failed login attempts."},
	{ID: estateAuth.MetricLoginRateLimited, Name: "estate_auth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: estateAuth.MetricRefreshSuccess, Name: "estate_auth_refresh_success_total", Help: "Access tokens issued from a refresh token."},
	{ID: estateAuth.MetricRefreshFailure, Name: "estate_auth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: estateAuth.MetricAuthenticateSuccess, Name: "estate_auth_authenticate_success_total", Help: "Authenticated requests."},
	{ID: estateAuth.MetricAuthenticateFailure, Name: "estate_auth_authenticate_failure_total", Help: "Requests rejected during authentication."},
	{ID: estateAuth.MetricPermissionDenied, Name: "estate_auth_permission_denied_total", Help: "Requests rejected by the permission evaluator."},
	{ID: estateAuth.MetricSessionCreated, Name: "estate_auth_session_created_total", Help: "Created sessions."},
	{ID: estateAuth.MetricSessionRevoked, Name: "estate_auth_session_revoked_total", Help: "Sessions removed by revocation."},
	{ID: estateAuth.MetricLogout, Name: "estate_auth_logout_total", Help: "Logout operations."},
	{ID: estateAuth.MetricForceLogout, Name: "estate_auth_force_logout_total", Help: "Administrative force-logout operations."},
	{ID: estateAuth.MetricRevocationWritten, Name: "estate_auth_revocation_written_total", Help: "Revocation entries written."},
	{ID: estateAuth.MetricPasswordResetRequest, Name: "estate_auth_password_reset_request_total", Help: "Password reset requests."},
	{ID: estateAuth.MetricPasswordResetThrottled, Name: "estate_auth_password_reset_throttled_total", Help: "Password reset requests dropped by throttling."},
	{ID: estateAuth.MetricPasswordResetSuccess, Name: "estate_auth_password_reset_success_total", Help: "Completed password resets."},
	{ID: estateAuth.MetricPasswordResetFailure, Name: "estate_auth_password_reset_failure_total", Help: "Rejected password reset completions."},
	{ID: estateAuth.MetricResetDeliveryFailure, Name: "estate_auth_reset_delivery_failure_total", Help: "Reset tokens the delivery collaborator failed to send."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: estateAuth.MetricAuthenticateLatency, Name: "estate_auth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "estate_auth_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the bucket upper bounds in seconds. The last
// bucket is +Inf and is not listed.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histogram support.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
