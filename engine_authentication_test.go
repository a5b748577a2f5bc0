package dashauth

import (
	"context"
	"errors"
	"testing"
)

func TestLoginSuccess(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	store.signInResult = SignInResult{Succeeded: true}

	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "correct-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !status.Valid() {
		t.Fatalf("expected valid login, findings: %v", status.Findings().Messages())
	}
	if status.EmailNotConfirmed {
		t.Fatal("expected confirmed email")
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected login success counter 1, got %d", got)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "nobody@example.com", "whatever-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if status.Valid() {
		t.Fatal("expected invalid login")
	}
	if !hasMessage(status.Findings(), "Email address nobody@example.com not registered.") {
		t.Fatalf("unexpected findings: %v", status.Findings().Messages())
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginUnknownEmail]; got != 1 {
		t.Fatalf("expected unknown email counter 1, got %d", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})

	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "wrong-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !status.InvalidCredentials() {
		t.Fatal("expected invalid credentials classification")
	}
	if !hasMessage(status.Findings(), "Invalid Credentials.  Please try again.") {
		t.Fatalf("unexpected findings: %v", status.Findings().Messages())
	}
}

func TestLoginLockedOutIsNotInvalidCredentials(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	store.signInResult = SignInResult{LockedOut: true}

	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "correct-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !status.LockedOut {
		t.Fatal("expected locked out flag")
	}
	if status.InvalidCredentials() {
		t.Fatal("locked out must not classify as invalid credentials")
	}
	if len(status.Findings().Messages()) != 0 {
		t.Fatalf("expected no credential finding for lockout, got %v", status.Findings().Messages())
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginLockedOut]; got != 1 {
		t.Fatalf("expected locked out counter 1, got %d", got)
	}
}

func TestLoginNotAllowedReportsUnconfirmedEmail(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: false})
	store.signInResult = SignInResult{NotAllowed: true}

	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "correct-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !status.NotAllowed || !status.EmailNotConfirmed {
		t.Fatalf("expected NotAllowed with unconfirmed email, got %+v", status)
	}
	if status.InvalidCredentials() {
		t.Fatal("not allowed must not classify as invalid credentials")
	}
}

func TestLoginTwoFactorIssuesChallenge(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true, TwoFactorEnabled: true})
	store.signInResult = SignInResult{RequiresTwoFactor: true}

	engine := newTestEngine(t, store)

	status, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "correct-password"))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !status.RequiresTwoFactor {
		t.Fatal("expected RequiresTwoFactor")
	}
	if status.ChallengeID == "" {
		t.Fatal("expected challenge id")
	}
	if status.Valid() {
		t.Fatal("pending two-factor login must not be valid yet")
	}

	// The challenge is retrievable and carries the pending user.
	challenge, err := engine.challenges.Get(context.Background(), status.ChallengeID)
	if err != nil {
		t.Fatalf("challenge lookup failed: %v", err)
	}
	if challenge.UserID != "u1" || challenge.Email != "alice@example.com" {
		t.Fatalf("unexpected challenge: %+v", challenge)
	}
}

func TestLoginStoreError(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	store.signInErr = errors.New("db down")

	engine := newTestEngine(t, store)

	if _, err := engine.Login(context.Background(), mustLoginRequest(t, "alice@example.com", "pw-whatever")); err == nil {
		t.Fatal("expected infrastructure error to surface")
	}
}

func TestLogout(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store)

	if err := engine.Logout(context.Background(), false); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.signOutCalls != 1 || store.forgetCalls != 0 {
		t.Fatalf("expected sign out without forget, got signOut=%d forget=%d", store.signOutCalls, store.forgetCalls)
	}

	if err := engine.Logout(context.Background(), true); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.forgetCalls != 1 {
		t.Fatalf("expected remembered client to be forgotten, got %d", store.forgetCalls)
	}
}

func TestChangePasswordRequiresUser(t *testing.T) {
	engine := newTestEngine(t, newFakeStore())

	req, findings := NewChangePasswordRequest("old-password", "new-password", "new-password")
	if findings != nil {
		t.Fatalf("request findings: %v", findings.Messages())
	}

	if _, err := engine.ChangePassword(context.Background(), "", req); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestChangePasswordSuccessRefreshesSignIn(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com"})
	engine := newTestEngine(t, store)

	req, _ := NewChangePasswordRequest("old-password", "new-password", "new-password")
	findings, err := engine.ChangePassword(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if !findings.Valid() {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
	if store.refreshCalls != 1 {
		t.Fatalf("expected sign-in refresh, got %d calls", store.refreshCalls)
	}
}

func TestChangePasswordRejectionSkipsRefresh(t *testing.T) {
	store := newFakeStore()
	store.changeResult = &StoreResult{Errors: []string{"Incorrect password."}}
	engine := newTestEngine(t, store)

	req, _ := NewChangePasswordRequest("wrong-password", "new-password", "new-password")
	findings, err := engine.ChangePassword(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if !hasMessage(findings, "Incorrect password.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
	if store.refreshCalls != 0 {
		t.Fatal("expected no refresh after rejection")
	}
}

func TestSendPasswordRecovery(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	sender := &fakeSender{}
	engine := newTestEngine(t, store, func(b *Builder) { b.WithConfirmationSender(sender) })

	findings, err := engine.SendPasswordRecovery(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("SendPasswordRecovery failed: %v", err)
	}
	if !findings.Valid() {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
	if len(sender.recoveryTokens) != 1 || sender.recoveryTokens[0] != "reset-token-u1" {
		t.Fatalf("unexpected recovery tokens: %v", sender.recoveryTokens)
	}
}

func TestSendPasswordRecoveryGuards(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "pending@example.com", EmailConfirmed: false})
	engine := newTestEngine(t, store)

	findings, err := engine.SendPasswordRecovery(context.Background(), "")
	if err != nil {
		t.Fatalf("SendPasswordRecovery failed: %v", err)
	}
	if !hasMessage(findings, "Email address required.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}

	findings, err = engine.SendPasswordRecovery(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("SendPasswordRecovery failed: %v", err)
	}
	if !hasMessage(findings, "Email address nobody@example.com not registered.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}

	findings, err = engine.SendPasswordRecovery(context.Background(), "pending@example.com")
	if err != nil {
		t.Fatalf("SendPasswordRecovery failed: %v", err)
	}
	if !hasMessage(findings, "Password recovery can't be resent for non-confirmed account.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
}

func TestResetPassword(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	engine := newTestEngine(t, store)

	req, reqFindings := NewPasswordRecoveryRequest("alice@example.com", "reset-token-u1", "new-password", "new-password")
	if reqFindings != nil {
		t.Fatalf("request findings: %v", reqFindings.Messages())
	}

	findings, err := engine.ResetPassword(context.Background(), req)
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if !findings.Valid() {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
	if got := engine.MetricsSnapshot().Counters[MetricPasswordResetSuccess]; got != 1 {
		t.Fatalf("expected reset success counter 1, got %d", got)
	}
}

func TestResetPasswordUnknownEmail(t *testing.T) {
	engine := newTestEngine(t, newFakeStore())

	req, _ := NewPasswordRecoveryRequest("nobody@example.com", "some-token", "new-password", "new-password")
	findings, err := engine.ResetPassword(context.Background(), req)
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if !hasMessage(findings, "Email address nobody@example.com not registered.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
}

func TestResetPasswordStoreRejection(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	store.resetPwResult = &StoreResult{Errors: []string{"Invalid reset token."}}
	engine := newTestEngine(t, store)

	req, _ := NewPasswordRecoveryRequest("alice@example.com", "stale-token", "new-password", "new-password")
	findings, err := engine.ResetPassword(context.Background(), req)
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if !hasMessage(findings, "Invalid reset token.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
	if got := engine.MetricsSnapshot().Counters[MetricPasswordResetFailure]; got != 1 {
		t.Fatalf("expected reset failure counter 1, got %d", got)
	}
}

func TestStoreRejectionWithoutMessagesGetsGenericFinding(t *testing.T) {
	store := newFakeStore()
	store.addIdentity(Identity{ID: "u1", Email: "alice@example.com", EmailConfirmed: true})
	store.resetPwResult = &StoreResult{}
	engine := newTestEngine(t, store)

	req, _ := NewPasswordRecoveryRequest("alice@example.com", "some-token", "new-password", "new-password")
	findings, err := engine.ResetPassword(context.Background(), req)
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if !hasMessage(findings, "The operation could not be completed.") {
		t.Fatalf("unexpected findings: %v", findings.Messages())
	}
}
