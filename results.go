package dashauth

import (
	"time"

	"github.com/dashauth/dashauth/validation"
)

// LoginStatus is the outcome of a password sign-in. Inspect the flags to
// decide the next step: a locked-out or not-allowed login must not proceed,
// and RequiresTwoFactor carries the challenge id for the second step.
type LoginStatus struct {
	succeeded bool
	findings  *validation.Set

	LockedOut         bool
	RequiresTwoFactor bool
	NotAllowed        bool
	EmailNotConfirmed bool

	// ChallengeID references the pending login when RequiresTwoFactor is
	// set. Hand it back to ConfirmLoginToken or ConfirmLoginRecoveryToken.
	ChallengeID string
}

func newLoginStatus(result SignInResult, emailConfirmed bool) *LoginStatus {
	return &LoginStatus{
		succeeded:         result.Succeeded,
		findings:          validation.NewSet(),
		LockedOut:         result.LockedOut,
		RequiresTwoFactor: result.RequiresTwoFactor,
		NotAllowed:        result.NotAllowed,
		EmailNotConfirmed: !emailConfirmed,
	}
}

func failedLoginStatus() *LoginStatus {
	return &LoginStatus{findings: validation.NewSet()}
}

// Findings returns the validation findings recorded during login.
func (s *LoginStatus) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether the sign-in fully succeeded with no findings.
func (s *LoginStatus) Valid() bool {
	return s.succeeded && s.findings.Valid()
}

// InvalidCredentials reports whether the failure was a plain credential
// mismatch rather than lockout, policy refusal, or a pending second factor.
func (s *LoginStatus) InvalidCredentials() bool {
	return !s.succeeded && !s.LockedOut && !s.RequiresTwoFactor && !s.NotAllowed
}

// RecoveryLoginStatus is the outcome of completing a two-factor login with a
// recovery code.
type RecoveryLoginStatus struct {
	succeeded bool
	findings  *validation.Set

	// LowRecoveryCodes is set when the remaining code count dropped to the
	// configured warning threshold or below.
	LowRecoveryCodes bool
	// RemainingCodes is the count left after consumption.
	RemainingCodes int
}

// Findings returns the validation findings recorded during the recovery
// login.
func (s *RecoveryLoginStatus) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether the recovery login succeeded with no findings.
func (s *RecoveryLoginStatus) Valid() bool {
	return s.succeeded && s.findings.Valid()
}

// AuthenticatorSetup carries what a user needs to enroll an authenticator
// app: their email for labeling and the shared key to enter.
type AuthenticatorSetup struct {
	findings *validation.Set

	Email string
	Key   string
}

// Findings returns the validation findings recorded while preparing setup.
func (s *AuthenticatorSetup) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether setup information was produced without findings.
func (s *AuthenticatorSetup) Valid() bool {
	return s.findings.Valid()
}

// TwoFactorConfiguration is a snapshot of a user's two-factor state.
type TwoFactorConfiguration struct {
	HasAuthenticator       bool
	IsEnabled              bool
	IsMachineRemembered    bool
	RemainingRecoveryCodes int

	// RecoveryCodes holds the stored codes when the snapshot was requested
	// with them included and the store exposes the side channel. Empty
	// otherwise.
	RecoveryCodes []string
}

// RecoveryCodesStatus is the outcome of regenerating recovery codes.
type RecoveryCodesStatus struct {
	findings *validation.Set

	// Codes holds the fresh plaintext codes. Empty when regeneration was
	// skipped because two-factor is not enabled.
	Codes []string
}

// Findings returns the validation findings recorded during regeneration.
func (s *RecoveryCodesStatus) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether regeneration completed without findings.
func (s *RecoveryCodesStatus) Valid() bool {
	return s.findings.Valid()
}

// RegistrationStatus is the outcome of registering a new account.
type RegistrationStatus struct {
	succeeded bool
	findings  *validation.Set

	// ExistingUser is set when the email address is already taken.
	ExistingUser bool
	// PendingConfirmation is set when the account was created and a
	// confirmation token was handed to the sender.
	PendingConfirmation bool

	// ID and Email identify the created account.
	ID    string
	Email string
}

// Findings returns the validation findings recorded during registration.
func (s *RegistrationStatus) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether the account was created with no findings.
func (s *RegistrationStatus) Valid() bool {
	return s.succeeded && s.findings.Valid()
}

// ConfirmEmailStatus is the outcome of confirming an email address.
type ConfirmEmailStatus struct {
	findings *validation.Set

	// Confirmed is set when the address transitioned to confirmed during
	// this call.
	Confirmed bool
}

// Findings returns the validation findings recorded during confirmation.
func (s *ConfirmEmailStatus) Findings() *validation.Set {
	return s.findings
}

// Valid reports whether confirmation completed without findings.
func (s *ConfirmEmailStatus) Valid() bool {
	return s.findings.Valid()
}

// TokenStatus carries a signed scoped token.
type TokenStatus struct {
	Token     string
	ExpiresAt time.Time
}
