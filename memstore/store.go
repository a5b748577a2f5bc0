package memstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	dashauth "github.com/dashauth/dashauth"
	"github.com/dashauth/dashauth/password"
)

// ErrUserNotFound is returned when an operation references a user id or
// email the store has never seen.
var ErrUserNotFound = errors.New("memstore: user not found")

const (
	defaultMaxFailedAttempts = 5
	defaultLockoutWindow     = 5 * time.Minute
	defaultTokenTTL          = 24 * time.Hour

	recoveryCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	recoveryCodeHalf     = 5
)

// Config tunes store behavior. The zero value gets sensible defaults from
// New.
type Config struct {
	// Issuer names the service in authenticator app enrollments.
	Issuer string

	// RequireConfirmedAccount rejects password sign-in for accounts whose
	// email has not been confirmed, reporting NotAllowed.
	RequireConfirmedAccount bool

	// MaxFailedAttempts is the consecutive failure count that triggers a
	// lockout. Defaults to 5.
	MaxFailedAttempts int

	// LockoutWindow is how long a lockout lasts. Defaults to 5 minutes.
	LockoutWindow time.Duration

	// TokenTTL bounds the validity of confirmation and reset tokens.
	// Defaults to 24 hours.
	TokenTTL time.Duration

	// Password overrides the Argon2id cost parameters. Zero value means
	// password.DefaultConfig.
	Password password.Config
}

type issuedToken struct {
	value     string
	expiresAt time.Time
}

type account struct {
	identity         dashauth.Identity
	passwordHash     string
	authenticatorKey string
	recoveryCodes    []string
	confirmToken     issuedToken
	resetToken       issuedToken
	remembered       bool
}

// Store is an in-memory CredentialStore backed by Argon2id password hashes
// and RFC 6238 authenticator codes. It is safe for concurrent use.
//
// Store exists for tests, examples, and single-process deployments; state
// does not survive a restart.
type Store struct {
	mu      sync.Mutex
	users   map[string]*account
	byEmail map[string]string

	config Config
	hasher *password.Argon2
	now    func() time.Time
}

var _ dashauth.CredentialStore = (*Store)(nil)

// New creates an empty store. cfg fields left at zero take defaults.
func New(cfg Config) (*Store, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = "dashauth"
	}
	if cfg.MaxFailedAttempts == 0 {
		cfg.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	if cfg.LockoutWindow == 0 {
		cfg.LockoutWindow = defaultLockoutWindow
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Password == (password.Config{}) {
		cfg.Password = password.DefaultConfig()
	}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}

	return &Store{
		users:   make(map[string]*account),
		byEmail: make(map[string]string),
		config:  cfg,
		hasher:  hasher,
		now:     time.Now,
	}, nil
}

// Capabilities reports full support for two-factor features.
func (s *Store) Capabilities() dashauth.Capabilities {
	return dashauth.Capabilities{
		SupportsTwoFactor:        true,
		SupportsAuthenticatorKey: true,
		SupportsRecoveryCodes:    true,
	}
}

// FindByEmail looks an account up by email, case-insensitively. A missing
// account returns (nil, nil).
func (s *Store) FindByEmail(_ context.Context, email string) (*dashauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return s.identityCopy(id), nil
}

// FindByID looks an account up by id. A missing account returns (nil, nil).
func (s *Store) FindByID(_ context.Context, userID string) (*dashauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identityCopy(userID), nil
}

// PasswordSignIn verifies the password and applies lockout accounting.
func (s *Store) PasswordSignIn(_ context.Context, userID, pwd string, _, lockoutOnFailure bool) (dashauth.SignInResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.SignInResult{}, ErrUserNotFound
	}

	now := s.now()
	if u.identity.LockoutEnabled && u.identity.LockoutEnd != nil && u.identity.LockoutEnd.After(now) {
		return dashauth.SignInResult{LockedOut: true}, nil
	}

	match := false
	if u.passwordHash != "" {
		var err error
		match, err = s.hasher.Verify(pwd, u.passwordHash)
		if err != nil {
			return dashauth.SignInResult{}, err
		}
	}
	if !match {
		if lockoutOnFailure && u.identity.LockoutEnabled {
			u.identity.AccessFailedCount++
			if u.identity.AccessFailedCount >= s.config.MaxFailedAttempts {
				end := now.Add(s.config.LockoutWindow)
				u.identity.LockoutEnd = &end
				u.identity.AccessFailedCount = 0
				return dashauth.SignInResult{LockedOut: true}, nil
			}
		}
		return dashauth.SignInResult{}, nil
	}

	if s.config.RequireConfirmedAccount && !u.identity.EmailConfirmed {
		return dashauth.SignInResult{NotAllowed: true}, nil
	}

	u.identity.AccessFailedCount = 0
	u.identity.LockoutEnd = nil

	if u.identity.TwoFactorEnabled && !u.remembered {
		return dashauth.SignInResult{RequiresTwoFactor: true}, nil
	}

	return dashauth.SignInResult{Succeeded: true}, nil
}

// SignOut is a no-op; the store keeps no session state.
func (s *Store) SignOut(context.Context) error {
	return nil
}

// RefreshSignIn verifies the account still exists. The store has no session
// claims to refresh.
func (s *Store) RefreshSignIn(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	return nil
}

// CreateUser registers a new account without a password. Duplicate emails
// are rejected as a StoreResult error.
func (s *Store) CreateUser(_ context.Context, userName, email string) (*dashauth.Identity, dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, dashauth.StoreResult{Errors: []string{"Email address required."}}, nil
	}
	if _, exists := s.byEmail[normalized]; exists {
		return nil, dashauth.StoreResult{Errors: []string{fmt.Sprintf("Email address %s is already registered.", email)}}, nil
	}

	u := &account{
		identity: dashauth.Identity{
			ID:             uuid.NewString(),
			UserName:       userName,
			Email:          email,
			LockoutEnabled: true,
		},
	}
	s.users[u.identity.ID] = u
	s.byEmail[normalized] = u.identity.ID

	copied := u.identity
	return &copied, dashauth.OK(), nil
}

// AddPassword sets the password for an account that has none.
func (s *Store) AddPassword(_ context.Context, userID, pwd string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}
	if u.passwordHash != "" {
		return dashauth.StoreResult{Errors: []string{"User already has a password set."}}, nil
	}

	hash, err := s.hashPassword(pwd)
	if err != nil {
		return dashauth.StoreResult{Errors: []string{err.Error()}}, nil
	}
	u.passwordHash = hash
	return dashauth.OK(), nil
}

// DeleteUser removes an account and all associated state.
func (s *Store) DeleteUser(_ context.Context, userID string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{Errors: []string{"User not found."}}, nil
	}
	delete(s.byEmail, normalizeEmail(u.identity.Email))
	delete(s.users, userID)
	return dashauth.OK(), nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Store) ChangePassword(_ context.Context, userID, currentPassword, newPassword string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}

	match := false
	if u.passwordHash != "" {
		var err error
		match, err = s.hasher.Verify(currentPassword, u.passwordHash)
		if err != nil {
			match = false
		}
	}
	if !match {
		return dashauth.StoreResult{Errors: []string{"Incorrect password."}}, nil
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return dashauth.StoreResult{Errors: []string{err.Error()}}, nil
	}
	u.passwordHash = hash
	return dashauth.OK(), nil
}

// GenerateEmailConfirmationToken issues a fresh confirmation token,
// replacing any outstanding one.
func (s *Store) GenerateEmailConfirmationToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	u.confirmToken = issuedToken{value: token, expiresAt: s.now().Add(s.config.TokenTTL)}
	return token, nil
}

// ConfirmEmail marks the email confirmed if token matches the outstanding
// confirmation token. Tokens are single-use.
func (s *Store) ConfirmEmail(_ context.Context, userID, token string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}
	if !s.tokenValid(u.confirmToken, token) {
		return dashauth.StoreResult{Errors: []string{"Invalid confirmation token."}}, nil
	}

	u.confirmToken = issuedToken{}
	u.identity.EmailConfirmed = true
	return dashauth.OK(), nil
}

// GeneratePasswordResetToken issues a fresh reset token, replacing any
// outstanding one.
func (s *Store) GeneratePasswordResetToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	u.resetToken = issuedToken{value: token, expiresAt: s.now().Add(s.config.TokenTTL)}
	return token, nil
}

// ResetPassword replaces the password if token matches the outstanding
// reset token. Tokens are single-use; a successful reset clears any
// lockout.
func (s *Store) ResetPassword(_ context.Context, userID, token, newPassword string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}
	if !s.tokenValid(u.resetToken, token) {
		return dashauth.StoreResult{Errors: []string{"Invalid reset token."}}, nil
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return dashauth.StoreResult{Errors: []string{err.Error()}}, nil
	}

	u.resetToken = issuedToken{}
	u.passwordHash = hash
	u.identity.AccessFailedCount = 0
	u.identity.LockoutEnd = nil
	return dashauth.OK(), nil
}

// GetAuthenticatorKey returns the account's TOTP secret, or "" when none
// has been provisioned.
func (s *Store) GetAuthenticatorKey(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return u.authenticatorKey, nil
}

// ResetAuthenticatorKey provisions a new TOTP secret, invalidating any
// previous authenticator enrollment and recovery codes.
func (s *Store) ResetAuthenticatorKey(_ context.Context, userID string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}

	accountName := u.identity.Email
	if accountName == "" {
		accountName = u.identity.ID
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
		Period:      30,
	})
	if err != nil {
		return dashauth.StoreResult{}, fmt.Errorf("generate authenticator key: %w", err)
	}

	u.authenticatorKey = key.Secret()
	u.recoveryCodes = nil
	return dashauth.OK(), nil
}

// SetTwoFactorEnabled toggles two-factor enforcement. Enabling requires a
// provisioned authenticator key.
func (s *Store) SetTwoFactorEnabled(_ context.Context, userID string, enabled bool) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}
	if enabled && u.authenticatorKey == "" {
		return dashauth.StoreResult{Errors: []string{"No authenticator key configured."}}, nil
	}

	u.identity.TwoFactorEnabled = enabled
	return dashauth.OK(), nil
}

// VerifyTwoFactorToken checks code against the account's TOTP secret. Only
// the authenticator provider is supported.
func (s *Store) VerifyTwoFactorToken(_ context.Context, userID string, provider dashauth.TwoFactorProvider, code string) (bool, error) {
	if provider != dashauth.ProviderAuthenticator {
		return false, fmt.Errorf("memstore: unsupported two-factor provider %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if u.authenticatorKey == "" {
		return false, nil
	}
	return totp.Validate(code, u.authenticatorKey), nil
}

// CountRecoveryCodes returns the number of unused recovery codes.
func (s *Store) CountRecoveryCodes(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return len(u.recoveryCodes), nil
}

// GenerateRecoveryCodes replaces the account's recovery codes with count
// fresh ones and returns them.
func (s *Store) GenerateRecoveryCodes(_ context.Context, userID string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("memstore: invalid recovery code count %d", count)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := randomRecoveryCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	u.recoveryCodes = append([]string(nil), codes...)
	return codes, nil
}

// ConsumeRecoveryCode redeems a recovery code. Each code works exactly
// once.
func (s *Store) ConsumeRecoveryCode(_ context.Context, userID, code string) (dashauth.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return dashauth.StoreResult{}, ErrUserNotFound
	}

	for i, candidate := range u.recoveryCodes {
		if candidate == code {
			u.recoveryCodes = append(u.recoveryCodes[:i], u.recoveryCodes[i+1:]...)
			return dashauth.OK(), nil
		}
	}
	return dashauth.StoreResult{Errors: []string{"Invalid recovery code."}}, nil
}

// GetAuthenticationToken serves the recovery-code side channel: the codes
// joined with ";" under the well-known provider and token names. Other
// lookups return "".
func (s *Store) GetAuthenticationToken(_ context.Context, userID, loginProvider, tokenName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	if loginProvider == dashauth.InternalLoginProvider && tokenName == dashauth.RecoveryCodesTokenName {
		return strings.Join(u.recoveryCodes, ";"), nil
	}
	return "", nil
}

// IsTwoFactorClientRemembered reports whether the account's client has been
// remembered after a successful second factor.
func (s *Store) IsTwoFactorClientRemembered(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	return u.remembered, nil
}

// RememberTwoFactorClient marks the account's client as trusted, skipping
// the second factor on subsequent sign-ins.
func (s *Store) RememberTwoFactorClient(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.remembered = true
	return nil
}

// ForgetTwoFactorClient clears remembered-client state. The store has no
// per-session context, so all accounts are forgotten.
func (s *Store) ForgetTwoFactorClient(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		u.remembered = false
	}
	return nil
}

func (s *Store) identityCopy(userID string) *dashauth.Identity {
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	copied := u.identity
	if u.identity.LockoutEnd != nil {
		end := *u.identity.LockoutEnd
		copied.LockoutEnd = &end
	}
	return &copied
}

func (s *Store) hashPassword(pwd string) (string, error) {
	hash, err := s.hasher.Hash(pwd)
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (s *Store) tokenValid(issued issuedToken, presented string) bool {
	if issued.value == "" || presented == "" {
		return false
	}
	if issued.value != presented {
		return false
	}
	return issued.expiresAt.After(s.now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func randomRecoveryCode() (string, error) {
	buf := make([]byte, recoveryCodeHalf*2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, recoveryCodeHalf*2+1)
	for i, b := range buf {
		if i == recoveryCodeHalf {
			out = append(out, '-')
		}
		out = append(out, recoveryCodeAlphabet[int(b)%len(recoveryCodeAlphabet)])
	}
	return string(out), nil
}
