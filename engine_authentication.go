package dashauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dashauth/dashauth/validation"
)

const (
	msgInvalidCredentials    = "Invalid Credentials.  Please try again."
	msgRecoveryNotConfirmed  = "Password recovery can't be resent for non-confirmed account."
	msgOperationNotCompleted = "The operation could not be completed."
)

func appendStoreFindings(set *validation.Set, result StoreResult) {
	for _, msg := range result.Errors {
		set.Add(validation.Error, msg)
	}
	if !result.Succeeded && len(result.Errors) == 0 {
		set.Add(validation.Error, msgOperationNotCompleted)
	}
}

// Login attempts a password sign-in. Business failures, including unknown
// addresses and credential mismatches, come back as findings on the status;
// only infrastructure problems surface as errors.
//
// When the account requires a second factor the returned status carries a
// challenge id for ConfirmLoginToken or ConfirmLoginRecoveryToken, and the
// login is not complete until one of those succeeds.
func (e *Engine) Login(ctx context.Context, req *LoginRequest) (*LoginStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil login request")
	}

	identity, err := e.store.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		status := failedLoginStatus()
		status.findings.Add(validation.Error, notRegisteredMessage(req.Email))
		e.metricInc(MetricLoginUnknownEmail)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", req.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "unknown_email"}
		})
		return status, nil
	}

	result, err := e.store.PasswordSignIn(ctx, identity.ID, req.Password, req.RememberClient, true)
	if err != nil {
		return nil, err
	}

	status := newLoginStatus(result, identity.EmailConfirmed)
	status.findings.ValidateFalse(status.InvalidCredentials(), validation.Error, msgInvalidCredentials)

	switch {
	case result.Succeeded:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, identity.Email, nil, nil)
	case result.LockedOut:
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, identity.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "locked_out"}
		})
	case result.NotAllowed:
		e.metricInc(MetricLoginNotAllowed)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, identity.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "not_allowed"}
		})
	case result.RequiresTwoFactor:
		challengeID, err := e.challenges.Create(ctx, identity.ID, identity.Email, req.RememberClient, e.config.Challenge.TTL)
		if err != nil {
			return nil, err
		}
		status.ChallengeID = challengeID
		e.metricInc(MetricLoginTwoFactorRequired)
		e.emitAudit(ctx, auditEventLoginTwoFactorRequired, false, identity.ID, identity.Email, nil, nil)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, identity.ID, identity.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "invalid_credentials"}
		})
	}

	if !status.Valid() {
		e.logger.Debug("login rejected",
			zap.String("email", req.Email),
			zap.Strings("findings", status.findings.Messages()))
	}

	return status, nil
}

// Logout signs the current user out. With forgetTwoFactorClient set, the
// remembered-client marker is cleared first so the next login on this client
// requires a second factor again.
func (e *Engine) Logout(ctx context.Context, forgetTwoFactorClient bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	if forgetTwoFactorClient {
		if err := e.store.ForgetTwoFactorClient(ctx); err != nil {
			return err
		}
	}
	if err := e.store.SignOut(ctx); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", "", nil, nil)
	return nil
}

// ChangePassword replaces the password of a signed-in user and refreshes
// their sign-in so the new credential takes effect immediately.
func (e *Engine) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) (*validation.Set, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if req == nil {
		return nil, errors.New("nil change password request")
	}

	result, err := e.store.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword.Value())
	if err != nil {
		return nil, err
	}

	findings := validation.NewSet()
	appendStoreFindings(findings, result)

	if result.Succeeded {
		if err := e.store.RefreshSignIn(ctx, userID); err != nil {
			return nil, err
		}
		e.metricInc(MetricPasswordChangeSuccess)
	} else {
		e.metricInc(MetricPasswordChangeFailure)
	}
	e.emitAudit(ctx, auditEventPasswordChange, result.Succeeded, userID, "", findings, nil)

	return findings, nil
}

// SendPasswordRecovery generates a password reset token for a confirmed
// account and hands it to the configured sender. Unknown and unconfirmed
// addresses are reported as findings.
func (e *Engine) SendPasswordRecovery(ctx context.Context, email string) (*validation.Set, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	findings := validation.NewSet()
	if !findings.ValidateFalse(email == "", validation.Error, msgEmailRequired) {
		return findings, nil
	}

	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !findings.ValidateNotNil(identity, validation.Error, notRegisteredMessage(email)) {
		return findings, nil
	}
	if !findings.ValidateTrue(identity.EmailConfirmed, validation.Error, msgRecoveryNotConfirmed) {
		return findings, nil
	}

	token, err := e.store.GeneratePasswordResetToken(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if e.sender != nil {
		if err := e.sender.SendPasswordRecovery(ctx, *identity, token); err != nil {
			return nil, err
		}
	}

	e.metricInc(MetricPasswordRecoveryRequest)
	e.emitAudit(ctx, auditEventPasswordRecoverySent, true, identity.ID, identity.Email, nil, nil)

	return findings, nil
}

// ResetPassword completes a password recovery using the token from the
// recovery mail.
func (e *Engine) ResetPassword(ctx context.Context, req *PasswordRecoveryRequest) (*validation.Set, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil password recovery request")
	}

	findings := validation.NewSet()

	identity, err := e.store.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !findings.ValidateNotNil(identity, validation.Error, notRegisteredMessage(req.Email)) {
		return findings, nil
	}

	result, err := e.store.ResetPassword(ctx, identity.ID, req.Token, req.Password.Value())
	if err != nil {
		return nil, err
	}
	appendStoreFindings(findings, result)

	if result.Succeeded {
		e.metricInc(MetricPasswordResetSuccess)
	} else {
		e.metricInc(MetricPasswordResetFailure)
	}
	e.emitAudit(ctx, auditEventPasswordReset, result.Succeeded, identity.ID, identity.Email, findings, nil)

	return findings, nil
}
