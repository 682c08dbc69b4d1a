package internaldefs

import (
	loginregister "github.com/Anonymus123-11/login-register"
)

type CounterDef struct {
	ID   loginregister.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   loginregister.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "credential_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: loginregister.MetricRegisterSuccess, Name: "credential_register_success_total", Help: "Successful registrations."},
	{ID: loginregister.MetricRegisterDuplicate, Name: "credential_register_duplicate_total", Help: "Registrations rejected because the handle or address was taken."},
	{ID: loginregister.MetricVerificationSuccess, Name: "credential_verification_success_total", Help: "Accounts moved to verified by a code."},
	{ID: loginregister.MetricVerificationFailure, Name: "credential_verification_failure_total", Help: "Failed verification code checks."},
	{ID: loginregister.MetricVerificationAttemptsExceeded, Name: "credential_verification_attempts_exceeded_total", Help: "Codes discarded after too many wrong guesses."},
	{ID: loginregister.MetricCodeIssued, Name: "credential_code_issued_total", Help: "One-time codes issued."},
	{ID: loginregister.MetricCodeDeliveryFailed, Name: "credential_code_delivery_failed_total", Help: "Codes the notification channel failed to accept."},
	{ID: loginregister.MetricLoginSuccess, Name: "credential_login_success_total", Help: "Successful logins."},
	{ID: loginregister.MetricLoginFailure, Name: "credential_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: loginregister.MetricLoginUnverified, Name: "credential_login_unverified_total", Help: "Logins rejected because the account is unverified."},
	{ID: loginregister.MetricLoginRateLimited, Name: "credential_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: loginregister.MetricRefreshSuccess, Name: "credential_refresh_success_total", Help: "Successful refreshes."},
	{ID: loginregister.MetricRefreshFailure, Name: "credential_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: loginregister.MetricRefreshReuseDetected, Name: "credential_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented while rotation is on."},
	{ID: loginregister.MetricLogout, Name: "credential_logout_total", Help: "Logouts."},
	{ID: loginregister.MetricPasswordResetRequest, Name: "credential_password_reset_request_total", Help: "Password reset codes requested."},
	{ID: loginregister.MetricPasswordResetSuccess, Name: "credential_password_reset_success_total", Help: "Completed password resets."},
	{ID: loginregister.MetricPasswordResetFailure, Name: "credential_password_reset_failure_total", Help: "Failed password reset attempts."},
	{ID: loginregister.MetricPasswordRehash, Name: "credential_password_rehash_total", Help: "Stored hashes upgraded on login."},
	{ID: loginregister.MetricAdminCreate, Name: "credential_admin_create_total", Help: "Accounts created by an administrator."},
	{ID: loginregister.MetricAdminUpdate, Name: "credential_admin_update_total", Help: "Account updates."},
	{ID: loginregister.MetricAdminDelete, Name: "credential_admin_delete_total", Help: "Account deletions."},
	{ID: loginregister.MetricAuthorizationDenied, Name: "credential_authorization_denied_total", Help: "Operations denied for lack of role."},
	{ID: loginregister.MetricRateLimitHit, Name: "credential_rate_limit_hit_total", Help: "Throttle checks that denied a request."},
	{ID: loginregister.MetricStoreConflictRetry, Name: "credential_store_conflict_retry_total", Help: "Account updates retried after a version conflict."},
}

var HistogramDefs = []HistogramDef{
	{ID: loginregister.MetricLoginLatency, Name: "credential_login_latency_seconds", Help: "Login latency."},
	{ID: loginregister.MetricValidateLatency, Name: "credential_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, matching the
// engine's fixed buckets. The last engine bucket is +Inf and has no entry.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histograms.
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

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
