package dashauth

import (
	"fmt"
	"strings"

	"github.com/dashauth/dashauth/validation"
)

// Request factories validate their inputs before constructing the value.
// A factory returns either the request or the findings that rejected it,
// never both.

const (
	msgEmailRequired        = "Email address required."
	msgPasswordRequired     = "Password required."
	msgTokenRequired        = "Confirmation token required."
	msgVerificationRequired = "Verification code required."
	msgPasswordsDontMatch   = "Passwords do not match."
)

// ConfirmedPassword pairs a chosen password with its re-typed confirmation.
type ConfirmedPassword struct {
	chosen string
}

// NewConfirmedPassword requires both entries to be present and equal.
func NewConfirmedPassword(chosen, verified string) (*ConfirmedPassword, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(chosen == "", validation.Error, msgPasswordRequired)
	if chosen != "" {
		findings.ValidateTrue(chosen == verified, validation.Error, msgPasswordsDontMatch)
	}
	if !findings.Valid() {
		return nil, findings
	}
	return &ConfirmedPassword{chosen: chosen}, nil
}

// Value returns the confirmed password.
func (p *ConfirmedPassword) Value() string {
	return p.chosen
}

// LoginRequest is a validated password sign-in request.
type LoginRequest struct {
	Email          string
	Password       string
	RememberClient bool
}

// NewLoginRequest requires an email address and password.
func NewLoginRequest(email, password string, rememberClient bool) (*LoginRequest, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(email == "", validation.Error, msgEmailRequired)
	findings.ValidateFalse(password == "", validation.Error, msgPasswordRequired)
	if !findings.Valid() {
		return nil, findings
	}
	return &LoginRequest{Email: email, Password: password, RememberClient: rememberClient}, nil
}

// RegistrationRequest is a validated new-account request.
type RegistrationRequest struct {
	Email    string
	Password *ConfirmedPassword
}

// NewRegistrationRequest requires an email address and a confirmed password.
func NewRegistrationRequest(email, chosen, verified string) (*RegistrationRequest, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(email == "", validation.Error, msgEmailRequired)

	password, passwordFindings := NewConfirmedPassword(chosen, verified)
	findings.AppendSet(passwordFindings)
	if !findings.Valid() {
		return nil, findings
	}
	return &RegistrationRequest{Email: email, Password: password}, nil
}

// AccountConfirmationRequest is a validated email-confirmation request.
type AccountConfirmationRequest struct {
	Email string
	Token string
}

// NewAccountConfirmationRequest requires the address and its confirmation
// token.
func NewAccountConfirmationRequest(email, token string) (*AccountConfirmationRequest, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(email == "", validation.Error, msgEmailRequired)
	findings.ValidateFalse(token == "", validation.Error, msgTokenRequired)
	if !findings.Valid() {
		return nil, findings
	}
	return &AccountConfirmationRequest{Email: email, Token: token}, nil
}

// ChangePasswordRequest is a validated password change for a signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     *ConfirmedPassword
}

// NewChangePasswordRequest requires the current password and a confirmed
// replacement.
func NewChangePasswordRequest(current, chosen, verified string) (*ChangePasswordRequest, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(current == "", validation.Error, msgPasswordRequired)

	password, passwordFindings := NewConfirmedPassword(chosen, verified)
	findings.AppendSet(passwordFindings)
	if !findings.Valid() {
		return nil, findings
	}
	return &ChangePasswordRequest{CurrentPassword: current, NewPassword: password}, nil
}

// PasswordRecoveryRequest is a validated password reset carrying the token
// from the recovery mail.
type PasswordRecoveryRequest struct {
	Email    string
	Token    string
	Password *ConfirmedPassword
}

// NewPasswordRecoveryRequest requires the address, the recovery token, and a
// confirmed replacement password.
func NewPasswordRecoveryRequest(email, token, chosen, verified string) (*PasswordRecoveryRequest, *validation.Set) {
	findings := validation.NewSet()
	findings.ValidateFalse(email == "", validation.Error, msgEmailRequired)
	findings.ValidateFalse(token == "", validation.Error, msgTokenRequired)

	password, passwordFindings := NewConfirmedPassword(chosen, verified)
	findings.AppendSet(passwordFindings)
	if !findings.Valid() {
		return nil, findings
	}
	return &PasswordRecoveryRequest{Email: email, Token: token, Password: password}, nil
}

// AuthenticatorLoginRequest is a validated authenticator code entry.
// Spaces and hyphens users copy from their app are stripped from the code.
type AuthenticatorLoginRequest struct {
	Code           string
	RememberClient bool
}

// NewAuthenticatorLoginRequest requires a non-blank verification code.
func NewAuthenticatorLoginRequest(code string, rememberClient bool) (*AuthenticatorLoginRequest, *validation.Set) {
	stripped := stripCodeSeparators(code)

	findings := validation.NewSet()
	findings.ValidateFalse(stripped == "", validation.Error, msgVerificationRequired)
	if !findings.Valid() {
		return nil, findings
	}
	return &AuthenticatorLoginRequest{Code: stripped, RememberClient: rememberClient}, nil
}

func stripCodeSeparators(code string) string {
	replacer := strings.NewReplacer(" ", "", "-", "")
	return replacer.Replace(strings.TrimSpace(code))
}

func notRegisteredMessage(email string) string {
	return fmt.Sprintf("Email address %s not registered.", email)
}
