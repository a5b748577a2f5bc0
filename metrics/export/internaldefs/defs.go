package internaldefs

import (
	dashauth "github.com/dashauth/dashauth"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   dashauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter. Both exporters iterate
// this slice so the two surfaces always agree.
var CounterDefs = []CounterDef{
	{ID: dashauth.MetricLoginSuccess, Name: "dashauth_login_success_total", Help: "Successful password sign-ins."},
	{ID: dashauth.MetricLoginFailure, Name: "dashauth_login_failure_total", Help: "Sign-ins rejected as invalid credentials."},
	{ID: dashauth.MetricLoginUnknownEmail, Name: "dashauth_login_unknown_email_total", Help: "Sign-in attempts for unregistered addresses."},
	{ID: dashauth.MetricLoginLockedOut, Name: "dashauth_login_locked_out_total", Help: "Sign-ins refused due to lockout."},
	{ID: dashauth.MetricLoginNotAllowed, Name: "dashauth_login_not_allowed_total", Help: "Sign-ins refused by store policy."},
	{ID: dashauth.MetricLoginTwoFactorRequired, Name: "dashauth_login_two_factor_required_total", Help: "Sign-ins paused for a second factor."},
	{ID: dashauth.MetricLogout, Name: "dashauth_logout_total", Help: "Sign-outs."},
	{ID: dashauth.MetricPasswordChangeSuccess, Name: "dashauth_password_change_success_total", Help: "Accepted password changes."},
	{ID: dashauth.MetricPasswordChangeFailure, Name: "dashauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: dashauth.MetricPasswordRecoveryRequest, Name: "dashauth_password_recovery_request_total", Help: "Password recovery mails handed to the sender."},
	{ID: dashauth.MetricPasswordResetSuccess, Name: "dashauth_password_reset_success_total", Help: "Accepted password resets."},
	{ID: dashauth.MetricPasswordResetFailure, Name: "dashauth_password_reset_failure_total", Help: "Rejected password resets."},
	{ID: dashauth.MetricTwoFactorSetupConfirmed, Name: "dashauth_two_factor_setup_confirmed_total", Help: "Activated authenticators."},
	{ID: dashauth.MetricTwoFactorSetupFailed, Name: "dashauth_two_factor_setup_failed_total", Help: "Rejected setup confirmations."},
	{ID: dashauth.MetricTwoFactorLoginSuccess, Name: "dashauth_two_factor_login_success_total", Help: "Completed two-factor logins."},
	{ID: dashauth.MetricTwoFactorLoginFailure, Name: "dashauth_two_factor_login_failure_total", Help: "Failed two-factor login attempts."},
	{ID: dashauth.MetricRecoveryCodeUsed, Name: "dashauth_recovery_code_used_total", Help: "Recovery codes consumed at login."},
	{ID: dashauth.MetricRecoveryCodeFailed, Name: "dashauth_recovery_code_failed_total", Help: "Rejected recovery-code logins."},
	{ID: dashauth.MetricRecoveryCodesRegenerated, Name: "dashauth_recovery_codes_regenerated_total", Help: "Recovery-code regenerations."},
	{ID: dashauth.MetricTwoFactorReset, Name: "dashauth_two_factor_reset_total", Help: "Authenticator resets."},
	{ID: dashauth.MetricTwoFactorDisabled, Name: "dashauth_two_factor_disabled_total", Help: "Two-factor disables."},
	{ID: dashauth.MetricRegistrationSuccess, Name: "dashauth_registration_success_total", Help: "Completed registrations."},
	{ID: dashauth.MetricRegistrationDuplicate, Name: "dashauth_registration_duplicate_total", Help: "Registrations for taken addresses."},
	{ID: dashauth.MetricRegistrationRollback, Name: "dashauth_registration_rollback_total", Help: "Registrations undone after a password failure."},
	{ID: dashauth.MetricEmailConfirmationSuccess, Name: "dashauth_email_confirmation_success_total", Help: "Confirmed email addresses."},
	{ID: dashauth.MetricEmailConfirmationFailure, Name: "dashauth_email_confirmation_failure_total", Help: "Rejected email confirmations."},
	{ID: dashauth.MetricTokenIssued, Name: "dashauth_token_issued_total", Help: "Scoped tokens signed."},
	{ID: dashauth.MetricChallengeExpired, Name: "dashauth_challenge_expired_total", Help: "Two-factor logins against a missing or expired challenge."},
}
