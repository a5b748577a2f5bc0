package dashauth

import "errors"

// Fatal errors returned by engine operations. These mark configuration or
// caller mistakes; business outcomes such as bad credentials never surface
// here and are reported as validation findings instead.
var (
	// ErrEngineNotReady is returned when an operation runs before Build
	// completed.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrTwoFactorNotSupported is returned when a two-factor operation runs
	// against a credential store without two-factor capability.
	ErrTwoFactorNotSupported = errors.New("credential store does not support two factor")
	// ErrAuthenticatorNotSupported is returned when an authenticator-key
	// operation runs against a store without authenticator key capability.
	ErrAuthenticatorNotSupported = errors.New("credential store does not support authenticator keys")
	// ErrRecoveryCodesNotSupported is returned when a recovery-code operation
	// runs against a store without recovery-code capability.
	ErrRecoveryCodesNotSupported = errors.New("credential store does not support recovery codes")
	// ErrNotAuthenticated is returned when an authenticated-only operation is
	// invoked without a resolvable user identity.
	ErrNotAuthenticated = errors.New("caller is not authenticated")
	// ErrSigningKeyMissing is returned by token issuance when no security key
	// is configured.
	ErrSigningKeyMissing = errors.New("token security key not configured")
	// ErrEmptyScopeID is returned by token issuance when the application
	// scope id is the zero uuid.
	ErrEmptyScopeID = errors.New("application scope id is empty")
	// ErrEmptyCode is returned when an authenticated two-factor operation is
	// handed a blank verification code.
	ErrEmptyCode = errors.New("verification code is empty")
	// ErrChallengeStoreUnavailable is returned when the pending-login
	// challenge backend cannot be reached.
	ErrChallengeStoreUnavailable = errors.New("challenge backend unavailable")
)
