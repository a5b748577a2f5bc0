package dashauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/dashauth/dashauth/internal/audit"
)

// Identity is the account record surfaced by a CredentialStore. It mirrors
// what the backing user database knows about an account; the engine never
// stores identities itself.
type Identity struct {
	ID                   string
	UserName             string
	Email                string
	EmailConfirmed       bool
	PhoneNumber          string
	PhoneNumberConfirmed bool
	TwoFactorEnabled     bool
	LockoutEnabled       bool
	LockoutEnd           *time.Time
	AccessFailedCount    int
}

// SignInResult is the outcome of a password sign-in attempt against the
// credential store. At most one of the failure flags is set; all false with
// Succeeded false means the credentials did not match.
type SignInResult struct {
	Succeeded         bool
	LockedOut         bool
	RequiresTwoFactor bool
	NotAllowed        bool
}

// StoreResult is the outcome of a credential-store mutation. Errors carry
// human-readable descriptions of why the mutation was rejected.
type StoreResult struct {
	Succeeded bool
	Errors    []string
}

// OK is a successful StoreResult.
func OK() StoreResult {
	return StoreResult{Succeeded: true}
}

// Capabilities reports which optional feature groups a credential store
// implements. The engine refuses operations against missing capabilities
// with a fatal error rather than degrading silently.
type Capabilities struct {
	SupportsTwoFactor        bool
	SupportsAuthenticatorKey bool
	SupportsRecoveryCodes    bool
}

// Well-known provider and token names used with the authentication-token
// side channel, matching the layout common identity databases persist
// recovery codes under.
const (
	InternalLoginProvider  = "[AspNetUserStore]"
	RecoveryCodesTokenName = "RecoveryCodes"
)

// TwoFactorProvider names a second-factor verification method understood by
// the credential store.
type TwoFactorProvider string

const (
	// ProviderAuthenticator verifies time-based codes from an authenticator
	// app.
	ProviderAuthenticator TwoFactorProvider = "Authenticator"
)

// CredentialStore is the capability interface callers implement to integrate
// the engine with their user database. It covers credential lookup and
// sign-in, password management, confirmation and reset tokens, authenticator
// keys, recovery codes, and two-factor client persistence.
//
// Implementations own all credential policy: lockout windows, password
// hashing, token formats, and TOTP verification. The engine orchestrates and
// validates; it never sees a password hash or a TOTP secret.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, userID string) (*Identity, error)
	PasswordSignIn(ctx context.Context, userID, password string, rememberClient, lockoutOnFailure bool) (SignInResult, error)
	SignOut(ctx context.Context) error
	RefreshSignIn(ctx context.Context, userID string) error

	CreateUser(ctx context.Context, userName, email string) (*Identity, StoreResult, error)
	AddPassword(ctx context.Context, userID, password string) (StoreResult, error)
	DeleteUser(ctx context.Context, userID string) (StoreResult, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (StoreResult, error)

	GenerateEmailConfirmationToken(ctx context.Context, userID string) (string, error)
	ConfirmEmail(ctx context.Context, userID, token string) (StoreResult, error)
	GeneratePasswordResetToken(ctx context.Context, userID string) (string, error)
	ResetPassword(ctx context.Context, userID, token, newPassword string) (StoreResult, error)

	GetAuthenticatorKey(ctx context.Context, userID string) (string, error)
	ResetAuthenticatorKey(ctx context.Context, userID string) (StoreResult, error)
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) (StoreResult, error)
	VerifyTwoFactorToken(ctx context.Context, userID string, provider TwoFactorProvider, code string) (bool, error)

	CountRecoveryCodes(ctx context.Context, userID string) (int, error)
	GenerateRecoveryCodes(ctx context.Context, userID string, count int) ([]string, error)
	ConsumeRecoveryCode(ctx context.Context, userID, code string) (StoreResult, error)
	GetAuthenticationToken(ctx context.Context, userID, loginProvider, tokenName string) (string, error)

	IsTwoFactorClientRemembered(ctx context.Context, userID string) (bool, error)
	RememberTwoFactorClient(ctx context.Context, userID string) error
	ForgetTwoFactorClient(ctx context.Context) error

	Capabilities() Capabilities
}

// ConfirmationSender delivers confirmation and recovery tokens to users.
// The engine generates tokens through the credential store and hands them
// here; delivery transport is the host's concern.
type ConfirmationSender interface {
	SendEmailConfirmation(ctx context.Context, identity Identity, token string) error
	SendPasswordRecovery(ctx context.Context, identity Identity, token string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an AuditSink that writes JSON-encoded events to an
// io.Writer, one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
