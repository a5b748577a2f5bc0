package dashauth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dashauth/dashauth/claims"
	"github.com/dashauth/dashauth/validation"
)

// fakeCredentialStore is a configurable in-memory CredentialStore for engine
// tests. Mutation outcomes default to success; set the matching *StoreResult
// field to force a rejection. Call counters track store interactions.
type fakeCredentialStore struct {
	mu sync.Mutex

	identities map[string]*Identity
	byEmail    map[string]string

	caps Capabilities

	signInResult SignInResult
	signInErr    error

	verifyOK         bool
	verifiedCodes    []string
	authenticatorKey string
	freshKey         string

	recoveryCodes []string

	createResult       *StoreResult
	addPasswordResult  *StoreResult
	deleteResult       *StoreResult
	changeResult       *StoreResult
	confirmResult      *StoreResult
	resetPwResult      *StoreResult
	resetKeyResult     *StoreResult
	setTwoFactorResult *StoreResult
	consumeResult      *StoreResult

	remembered bool

	signOutCalls      int
	refreshCalls      int
	forgetCalls       int
	rememberCalls     int
	deleteUserCalls   int
	setTwoFactorCalls []bool
}

func newFakeStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		identities: make(map[string]*Identity),
		byEmail:    make(map[string]string),
		caps: Capabilities{
			SupportsTwoFactor:        true,
			SupportsAuthenticatorKey: true,
			SupportsRecoveryCodes:    true,
		},
		freshKey: "fresh-authenticator-key",
	}
}

func (f *fakeCredentialStore) addIdentity(identity Identity) {
	f.identities[identity.ID] = &identity
	f.byEmail[identity.Email] = identity.ID
}

func resultOr(r *StoreResult) StoreResult {
	if r == nil {
		return OK()
	}
	return *r
}

func (f *fakeCredentialStore) Capabilities() Capabilities {
	return f.caps
}

func (f *fakeCredentialStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	copied := *f.identities[id]
	return &copied, nil
}

func (f *fakeCredentialStore) FindByID(_ context.Context, userID string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	identity, ok := f.identities[userID]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

func (f *fakeCredentialStore) PasswordSignIn(context.Context, string, string, bool, bool) (SignInResult, error) {
	return f.signInResult, f.signInErr
}

func (f *fakeCredentialStore) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

func (f *fakeCredentialStore) RefreshSignIn(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return nil
}

func (f *fakeCredentialStore) CreateUser(_ context.Context, userName, email string) (*Identity, StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := resultOr(f.createResult)
	if !result.Succeeded {
		return nil, result, nil
	}

	identity := &Identity{
		ID:       fmt.Sprintf("u%d", len(f.identities)+1),
		UserName: userName,
		Email:    email,
	}
	f.identities[identity.ID] = identity
	f.byEmail[email] = identity.ID

	copied := *identity
	return &copied, result, nil
}

func (f *fakeCredentialStore) AddPassword(context.Context, string, string) (StoreResult, error) {
	return resultOr(f.addPasswordResult), nil
}

func (f *fakeCredentialStore) DeleteUser(_ context.Context, userID string) (StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteUserCalls++
	result := resultOr(f.deleteResult)
	if result.Succeeded {
		if identity, ok := f.identities[userID]; ok {
			delete(f.byEmail, identity.Email)
			delete(f.identities, userID)
		}
	}
	return result, nil
}

func (f *fakeCredentialStore) ChangePassword(context.Context, string, string, string) (StoreResult, error) {
	return resultOr(f.changeResult), nil
}

func (f *fakeCredentialStore) GenerateEmailConfirmationToken(_ context.Context, userID string) (string, error) {
	return "confirm-token-" + userID, nil
}

func (f *fakeCredentialStore) ConfirmEmail(_ context.Context, userID, _ string) (StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := resultOr(f.confirmResult)
	if result.Succeeded {
		if identity, ok := f.identities[userID]; ok {
			identity.EmailConfirmed = true
		}
	}
	return result, nil
}

func (f *fakeCredentialStore) GeneratePasswordResetToken(_ context.Context, userID string) (string, error) {
	return "reset-token-" + userID, nil
}

func (f *fakeCredentialStore) ResetPassword(context.Context, string, string, string) (StoreResult, error) {
	return resultOr(f.resetPwResult), nil
}

func (f *fakeCredentialStore) GetAuthenticatorKey(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticatorKey, nil
}

func (f *fakeCredentialStore) ResetAuthenticatorKey(context.Context, string) (StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := resultOr(f.resetKeyResult)
	if result.Succeeded {
		f.authenticatorKey = f.freshKey
	}
	return result, nil
}

func (f *fakeCredentialStore) SetTwoFactorEnabled(_ context.Context, userID string, enabled bool) (StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.setTwoFactorCalls = append(f.setTwoFactorCalls, enabled)
	result := resultOr(f.setTwoFactorResult)
	if result.Succeeded {
		if identity, ok := f.identities[userID]; ok {
			identity.TwoFactorEnabled = enabled
		}
	}
	return result, nil
}

func (f *fakeCredentialStore) VerifyTwoFactorToken(_ context.Context, _ string, _ TwoFactorProvider, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifiedCodes = append(f.verifiedCodes, code)
	return f.verifyOK, nil
}

func (f *fakeCredentialStore) CountRecoveryCodes(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recoveryCodes), nil
}

func (f *fakeCredentialStore) GenerateRecoveryCodes(_ context.Context, _ string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	codes := make([]string, count)
	for i := range codes {
		codes[i] = fmt.Sprintf("code-%d", i+1)
	}
	f.recoveryCodes = codes
	return append([]string(nil), codes...), nil
}

func (f *fakeCredentialStore) ConsumeRecoveryCode(_ context.Context, _, code string) (StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.consumeResult != nil {
		return *f.consumeResult, nil
	}
	for i, candidate := range f.recoveryCodes {
		if candidate == code {
			f.recoveryCodes = append(f.recoveryCodes[:i], f.recoveryCodes[i+1:]...)
			return OK(), nil
		}
	}
	return StoreResult{Errors: []string{"Invalid recovery code."}}, nil
}

func (f *fakeCredentialStore) GetAuthenticationToken(_ context.Context, _, loginProvider, tokenName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if loginProvider == InternalLoginProvider && tokenName == RecoveryCodesTokenName {
		return strings.Join(f.recoveryCodes, ";"), nil
	}
	return "", nil
}

func (f *fakeCredentialStore) IsTwoFactorClientRemembered(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remembered, nil
}

func (f *fakeCredentialStore) RememberTwoFactorClient(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rememberCalls++
	f.remembered = true
	return nil
}

func (f *fakeCredentialStore) ForgetTwoFactorClient(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgetCalls++
	f.remembered = false
	return nil
}

// fakeClaimsRepo serves stored claims keyed by scope.
type fakeClaimsRepo struct {
	mu     sync.Mutex
	claims map[string][]claims.Claim
	err    error
	reads  []string
}

func (r *fakeClaimsRepo) ReadUserClaims(_ context.Context, scope, _ string) ([]claims.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads = append(r.reads, scope)
	if r.err != nil {
		return nil, r.err
	}
	return r.claims[scope], nil
}

// fakeSender records delivered tokens.
type fakeSender struct {
	mu                 sync.Mutex
	confirmationTokens []string
	recoveryTokens     []string
	err                error
}

func (s *fakeSender) SendEmailConfirmation(_ context.Context, _ Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.confirmationTokens = append(s.confirmationTokens, token)
	return nil
}

func (s *fakeSender) SendPasswordRecovery(_ context.Context, _ Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.recoveryTokens = append(s.recoveryTokens, token)
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestEngine(t *testing.T, store CredentialStore, opts ...func(*Builder)) *Engine {
	t.Helper()

	builder := New().
		WithRedis(newTestRedis(t)).
		WithCredentialStore(store).
		WithClaimsRepository(&fakeClaimsRepo{}).
		WithMetricsEnabled(true)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func mustLoginRequest(t *testing.T, email, password string) *LoginRequest {
	t.Helper()

	req, findings := NewLoginRequest(email, password, false)
	if findings != nil {
		t.Fatalf("NewLoginRequest findings: %v", findings.Messages())
	}
	return req
}

func hasMessage(set *validation.Set, message string) bool {
	for _, m := range set.Messages() {
		if m == message {
			return true
		}
	}
	return false
}
