package internaldefs

import (
	"github.com/MrEthical07/resumeauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   resumeauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   resumeauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: resumeauth.MetricRegisterSuccess, Name: "resumeauth_register_success_total", Help: "Completed registrations."},
	{ID: resumeauth.MetricRegisterFailure, Name: "resumeauth_register_failure_total", Help: "Failed registrations."},
	{ID: resumeauth.MetricRegisterRateLimited, Name: "resumeauth_register_rate_limited_total", Help: "Registrations refused by the per-IP limit."},
	{ID: resumeauth.MetricRegisterDuplicate, Name: "resumeauth_register_duplicate_total", Help: "Registrations refused because the email exists."},
	{ID: resumeauth.MetricCompensationApplied, Name: "resumeauth_compensation_applied_total", Help: "Identity records removed after a failed registration."},
	{ID: resumeauth.MetricCompensationFailed, Name: "resumeauth_compensation_failed_total", Help: "Registration cleanups that gave up."},
	{ID: resumeauth.MetricSignInSuccess, Name: "resumeauth_signin_success_total", Help: "Successful sign-ins."},
	{ID: resumeauth.MetricSignInFailure, Name: "resumeauth_signin_failure_total", Help: "Failed sign-ins."},
	{ID: resumeauth.MetricSignInRateLimited, Name: "resumeauth_signin_rate_limited_total", Help: "Sign-ins refused by the throttle."},
	{ID: resumeauth.MetricRefreshSuccess, Name: "resumeauth_refresh_success_total", Help: "Successful token rotations."},
	{ID: resumeauth.MetricRefreshFailure, Name: "resumeauth_refresh_failure_total", Help: "Failed token rotations."},
	{ID: resumeauth.MetricRefreshReuseRejected, Name: "resumeauth_refresh_reuse_rejected_total", Help: "Rotations refused because the refresh token was already used."},
	{ID: resumeauth.MetricTokenRevoked, Name: "resumeauth_token_revoked_total", Help: "Tokens added to the blacklist by sign-out."},
	{ID: resumeauth.MetricVerifyFailure, Name: "resumeauth_verify_failure_total", Help: "Rejected access tokens."},
	{ID: resumeauth.MetricSessionCreated, Name: "resumeauth_session_created_total", Help: "Created sessions."},
	{ID: resumeauth.MetricSessionEvicted, Name: "resumeauth_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: resumeauth.MetricSignOut, Name: "resumeauth_signout_total", Help: "Single-session sign-outs."},
	{ID: resumeauth.MetricSignOutAll, Name: "resumeauth_signout_all_total", Help: "Sign-outs of every session."},
	{ID: resumeauth.MetricEmailConfirmed, Name: "resumeauth_email_confirmed_total", Help: "Confirmed email addresses."},
	{ID: resumeauth.MetricEmailConfirmFailure, Name: "resumeauth_email_confirm_failure_total", Help: "Rejected email confirmations."},
	{ID: resumeauth.MetricPasswordResetRequest, Name: "resumeauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: resumeauth.MetricPasswordResetComplete, Name: "resumeauth_password_reset_complete_total", Help: "Completed password resets."},
	{ID: resumeauth.MetricPasswordResetThrottled, Name: "resumeauth_password_reset_throttled_total", Help: "Reset requests or completions refused by the throttle."},
	{ID: resumeauth.MetricPasswordResetFailure, Name: "resumeauth_password_reset_failure_total", Help: "Failed password resets."},
	{ID: resumeauth.MetricAccountSuspended, Name: "resumeauth_account_suspended_total", Help: "Account suspensions."},
	{ID: resumeauth.MetricAccountDeleted, Name: "resumeauth_account_deleted_total", Help: "Deleted accounts."},
}

var HistogramDefs = []HistogramDef{
	{ID: resumeauth.MetricVerifyLatency, Name: "resumeauth_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds in seconds of the first seven engine
// buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
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
