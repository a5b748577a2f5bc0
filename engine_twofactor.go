package dashauth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/dashauth/dashauth/validation"
)

const (
	msgTwoFactorFailed        = "Two Factor Authentication failed."
	msgTwoFactorNotCompleted  = "Two Factor Authentication cannot be completed."
	msgRecoveryCodeRequired   = "Recovery code not specified."
	msgAuthenticatorNotActive = "Authenticator could not be activated."
	msgAuthenticatorKeyEmpty  = "Authenticator key could not be loaded."
)

// GetSetupInformation returns what the user needs to enroll an authenticator
// app. The first call generates a key and refreshes the sign-in; later calls
// return the same key, so the operation is safe to repeat while the user
// works through enrollment.
func (e *Engine) GetSetupInformation(ctx context.Context, userID string) (*AuthenticatorSetup, error) {
	if err := e.requireAuthenticator(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	findings := validation.NewSet()

	key, err := e.store.GetAuthenticatorKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		result, err := e.store.ResetAuthenticatorKey(ctx, userID)
		if err != nil {
			return nil, err
		}
		appendStoreFindings(findings, result)
		if !findings.Valid() {
			return &AuthenticatorSetup{findings: findings, Email: identity.Email}, nil
		}

		key, err = e.store.GetAuthenticatorKey(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := e.store.RefreshSignIn(ctx, userID); err != nil {
			return nil, err
		}
	}

	findings.ValidateFalse(key == "", validation.Error, msgAuthenticatorKeyEmpty)

	return &AuthenticatorSetup{findings: findings, Email: identity.Email, Key: key}, nil
}

// ConfirmSetupToken activates the authenticator by verifying the first code
// it produced. A blank code is a caller bug and fails fast.
func (e *Engine) ConfirmSetupToken(ctx context.Context, userID, code string) (*validation.Set, error) {
	if err := e.requireAuthenticator(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	code = stripCodeSeparators(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	findings := validation.NewSet()

	verified, err := e.store.VerifyTwoFactorToken(ctx, userID, ProviderAuthenticator, code)
	if err != nil {
		return nil, err
	}
	if !findings.ValidateTrue(verified, validation.Error, msgAuthenticatorNotActive) {
		e.metricInc(MetricTwoFactorSetupFailed)
		e.emitAudit(ctx, auditEventTwoFactorSetup, false, userID, "", findings, nil)
		return findings, nil
	}

	result, err := e.store.SetTwoFactorEnabled(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(findings, result)

	if findings.Valid() {
		if err := e.store.RefreshSignIn(ctx, userID); err != nil {
			return nil, err
		}
		e.metricInc(MetricTwoFactorSetupConfirmed)
	} else {
		e.metricInc(MetricTwoFactorSetupFailed)
	}
	e.emitAudit(ctx, auditEventTwoFactorSetup, findings.Valid(), userID, "", findings, nil)

	return findings, nil
}

// ConfirmLoginToken completes a pending two-factor login with an
// authenticator code. A wrong code is recorded as a Warning so the user can
// retry against the same challenge until it expires or runs out of attempts.
func (e *Engine) ConfirmLoginToken(ctx context.Context, challengeID string, req *AuthenticatorLoginRequest) (*validation.Set, error) {
	if err := e.requireTwoFactor(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil authenticator login request")
	}

	findings := validation.NewSet()
	if !findings.ValidateFalse(challengeID == "", validation.Error, msgTwoFactorFailed) {
		return findings, nil
	}

	challenge, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			findings.Add(validation.Error, msgTwoFactorFailed)
			e.metricInc(MetricChallengeExpired)
			return findings, nil
		}
		return nil, err
	}

	verified, err := e.store.VerifyTwoFactorToken(ctx, challenge.UserID, ProviderAuthenticator, req.Code)
	if err != nil {
		return nil, err
	}
	if !verified {
		exceeded, recErr := e.challenges.RecordFailure(ctx, challengeID, e.config.Challenge.MaxAttempts)
		if recErr != nil && !errors.Is(recErr, errChallengeNotFound) && !errors.Is(recErr, errChallengeExpired) {
			return nil, recErr
		}
		if exceeded {
			findings.Add(validation.Error, msgTwoFactorFailed)
		} else {
			findings.Add(validation.Warning, msgTwoFactorFailed)
		}
		e.metricInc(MetricTwoFactorLoginFailure)
		e.emitAudit(ctx, auditEventTwoFactorLogin, false, challenge.UserID, challenge.Email, findings, nil)
		return findings, nil
	}

	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		e.logger.Warn("challenge cleanup failed", zap.Error(err))
	}
	if req.RememberClient || challenge.RememberClient {
		if err := e.store.RememberTwoFactorClient(ctx, challenge.UserID); err != nil {
			return nil, err
		}
	}

	e.metricInc(MetricTwoFactorLoginSuccess)
	e.emitAudit(ctx, auditEventTwoFactorLogin, true, challenge.UserID, challenge.Email, nil, nil)

	return findings, nil
}

// ConfirmLoginRecoveryToken completes a pending two-factor login by burning
// a single-use recovery code. The status warns when the remaining code count
// reaches the configured threshold.
func (e *Engine) ConfirmLoginRecoveryToken(ctx context.Context, challengeID, code string) (*RecoveryLoginStatus, error) {
	if err := e.requireRecoveryCodes(); err != nil {
		return nil, err
	}

	status := &RecoveryLoginStatus{findings: validation.NewSet()}
	if !status.findings.ValidateFalse(challengeID == "", validation.Error, msgTwoFactorNotCompleted) {
		return status, nil
	}
	code = strings.TrimSpace(code)
	if !status.findings.ValidateFalse(code == "", validation.Error, msgRecoveryCodeRequired) {
		return status, nil
	}

	challenge, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			status.findings.Add(validation.Error, msgTwoFactorNotCompleted)
			e.metricInc(MetricChallengeExpired)
			return status, nil
		}
		return nil, err
	}

	result, err := e.store.ConsumeRecoveryCode(ctx, challenge.UserID, code)
	if err != nil {
		return nil, err
	}
	if !result.Succeeded {
		appendStoreFindings(status.findings, result)
		if _, recErr := e.challenges.RecordFailure(ctx, challengeID, e.config.Challenge.MaxAttempts); recErr != nil &&
			!errors.Is(recErr, errChallengeNotFound) && !errors.Is(recErr, errChallengeExpired) {
			return nil, recErr
		}
		e.metricInc(MetricRecoveryCodeFailed)
		e.emitAudit(ctx, auditEventRecoveryCodeLogin, false, challenge.UserID, challenge.Email, status.findings, nil)
		return status, nil
	}

	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		e.logger.Warn("challenge cleanup failed", zap.Error(err))
	}

	remaining, err := e.store.CountRecoveryCodes(ctx, challenge.UserID)
	if err != nil {
		return nil, err
	}
	status.succeeded = true
	status.RemainingCodes = remaining
	status.LowRecoveryCodes = remaining <= e.config.RecoveryCodes.WarningThreshold

	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditEventRecoveryCodeLogin, true, challenge.UserID, challenge.Email, nil, func() map[string]string {
		if !status.LowRecoveryCodes {
			return nil
		}
		return map[string]string{"low_recovery_codes": "true"}
	})

	return status, nil
}

// Reset tears two-factor down so the user can re-enroll from scratch. Both
// mutations are always issued; a failure of the first does not skip the
// second, and all findings are reported together.
func (e *Engine) Reset(ctx context.Context, userID string) (*validation.Set, error) {
	if err := e.requireAuthenticator(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	findings := validation.NewSet()

	disabled, err := e.store.SetTwoFactorEnabled(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(findings, disabled)

	reset, err := e.store.ResetAuthenticatorKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(findings, reset)

	e.metricInc(MetricTwoFactorReset)
	e.emitAudit(ctx, auditEventTwoFactorReset, findings.Valid(), userID, "", findings, nil)

	return findings, nil
}

// Disable turns two-factor off for the user, forgets the remembered client,
// and refreshes the sign-in, in that order. Like Reset, every step is issued
// even when the disable itself is rejected, so a stale remembered client
// never outlives a disable attempt.
func (e *Engine) Disable(ctx context.Context, userID string) (*validation.Set, error) {
	if err := e.requireTwoFactor(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	findings := validation.NewSet()

	result, err := e.store.SetTwoFactorEnabled(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(findings, result)

	if err := e.store.ForgetTwoFactorClient(ctx); err != nil {
		return nil, err
	}
	if err := e.store.RefreshSignIn(ctx, userID); err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, findings.Valid(), userID, "", findings, nil)

	return findings, nil
}

// GetConfiguration snapshots the user's two-factor state. With
// includeRecoveryCodes set, the stored codes are read through the
// authentication-token side channel when the store exposes them.
func (e *Engine) GetConfiguration(ctx context.Context, userID string, includeRecoveryCodes bool) (*TwoFactorConfiguration, error) {
	if err := e.requireTwoFactor(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	cfg := &TwoFactorConfiguration{IsEnabled: identity.TwoFactorEnabled}

	caps := e.store.Capabilities()
	if caps.SupportsAuthenticatorKey {
		key, err := e.store.GetAuthenticatorKey(ctx, userID)
		if err != nil {
			return nil, err
		}
		cfg.HasAuthenticator = key != ""
	}

	remembered, err := e.store.IsTwoFactorClientRemembered(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg.IsMachineRemembered = remembered

	if caps.SupportsRecoveryCodes {
		count, err := e.store.CountRecoveryCodes(ctx, userID)
		if err != nil {
			return nil, err
		}
		cfg.RemainingRecoveryCodes = count

		if includeRecoveryCodes {
			blob, err := e.store.GetAuthenticationToken(ctx, userID, InternalLoginProvider, RecoveryCodesTokenName)
			if err != nil {
				return nil, err
			}
			if blob != "" {
				cfg.RecoveryCodes = strings.Split(blob, ";")
			}
		}
	}

	return cfg, nil
}

// RegenerateRecoveryCodes replaces the user's recovery codes. It is a silent
// no-op when two-factor is not enabled, so hosts can offer the action
// unconditionally.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, userID string) (*RecoveryCodesStatus, error) {
	if err := e.requireRecoveryCodes(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	identity, err := e.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	status := &RecoveryCodesStatus{findings: validation.NewSet()}
	if !identity.TwoFactorEnabled {
		return status, nil
	}

	codes, err := e.store.GenerateRecoveryCodes(ctx, userID, e.config.RecoveryCodes.Count)
	if err != nil {
		return nil, err
	}
	status.Codes = codes

	e.metricInc(MetricRecoveryCodesRegenerated)
	e.emitAudit(ctx, auditEventRecoveryCodesRegen, true, userID, identity.Email, nil, nil)

	return status, nil
}
