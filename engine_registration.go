package dashauth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dashauth/dashauth/validation"
)

func alreadyRegisteredMessage(email string) string {
	return fmt.Sprintf("Email address %s is already registered.", email)
}

func userNotFoundMessage(email string) string {
	return fmt.Sprintf("User with email: %s not found.", email)
}

func alreadyConfirmedMessage(email string) string {
	return fmt.Sprintf("Email address %s has already been confirmed.", email)
}

// Register creates a new account and hands a confirmation token to the
// configured sender. When the password is rejected after the account was
// created, the account is deleted again so a retry starts clean.
func (e *Engine) Register(ctx context.Context, req *RegistrationRequest) (*RegistrationStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil registration request")
	}

	status := &RegistrationStatus{findings: validation.NewSet(), Email: req.Email}

	existing, err := e.store.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		status.ExistingUser = true
		status.findings.Add(validation.Error, alreadyRegisteredMessage(req.Email))
		e.metricInc(MetricRegistrationDuplicate)
		e.emitAudit(ctx, auditEventRegistration, false, existing.ID, req.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "existing_user"}
		})
		return status, nil
	}

	identity, created, err := e.store.CreateUser(ctx, req.Email, req.Email)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(status.findings, created)
	if !status.findings.Valid() {
		e.emitAudit(ctx, auditEventRegistration, false, "", req.Email, status.findings, nil)
		return status, nil
	}

	passwordResult, err := e.store.AddPassword(ctx, identity.ID, req.Password.Value())
	if err != nil {
		return nil, err
	}
	if !passwordResult.Succeeded {
		appendStoreFindings(status.findings, passwordResult)

		deleted, delErr := e.store.DeleteUser(ctx, identity.ID)
		if delErr != nil {
			return nil, delErr
		}
		appendStoreFindings(status.findings, deleted)

		e.metricInc(MetricRegistrationRollback)
		e.emitAudit(ctx, auditEventRegistration, false, identity.ID, req.Email, status.findings, func() map[string]string {
			return map[string]string{"reason": "password_rejected"}
		})
		return status, nil
	}

	status.succeeded = true
	status.ID = identity.ID

	token, err := e.store.GenerateEmailConfirmationToken(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if e.sender != nil {
		if err := e.sender.SendEmailConfirmation(ctx, *identity, token); err != nil {
			return nil, err
		}
		status.PendingConfirmation = true
	} else {
		e.logger.Debug("no confirmation sender configured, token discarded",
			zap.String("email", req.Email))
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistration, true, identity.ID, req.Email, nil, nil)

	return status, nil
}

// ConfirmEmail transitions an address to confirmed using the token from the
// confirmation mail. Confirming an already confirmed address is rejected.
func (e *Engine) ConfirmEmail(ctx context.Context, req *AccountConfirmationRequest) (*ConfirmEmailStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.New("nil account confirmation request")
	}

	status := &ConfirmEmailStatus{findings: validation.NewSet()}

	identity, err := e.store.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !status.findings.ValidateNotNil(identity, validation.Error, userNotFoundMessage(req.Email)) {
		e.metricInc(MetricEmailConfirmationFailure)
		return status, nil
	}
	if !status.findings.ValidateFalse(identity.EmailConfirmed, validation.Error, alreadyConfirmedMessage(req.Email)) {
		e.metricInc(MetricEmailConfirmationFailure)
		return status, nil
	}

	result, err := e.store.ConfirmEmail(ctx, identity.ID, req.Token)
	if err != nil {
		return nil, err
	}
	appendStoreFindings(status.findings, result)
	status.Confirmed = result.Succeeded

	if result.Succeeded {
		e.metricInc(MetricEmailConfirmationSuccess)
	} else {
		e.metricInc(MetricEmailConfirmationFailure)
	}
	e.emitAudit(ctx, auditEventEmailConfirmation, result.Succeeded, identity.ID, identity.Email, status.findings, nil)

	return status, nil
}

// ResendEmailConfirmation generates a fresh confirmation token for a
// not-yet-confirmed account and hands it to the sender.
func (e *Engine) ResendEmailConfirmation(ctx context.Context, email string) (*validation.Set, error) {
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
	if !findings.ValidateNotNil(identity, validation.Error, userNotFoundMessage(email)) {
		return findings, nil
	}
	if !findings.ValidateFalse(identity.EmailConfirmed, validation.Error, alreadyConfirmedMessage(email)) {
		return findings, nil
	}

	token, err := e.store.GenerateEmailConfirmationToken(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if e.sender != nil {
		if err := e.sender.SendEmailConfirmation(ctx, *identity, token); err != nil {
			return nil, err
		}
	}

	e.emitAudit(ctx, auditEventEmailConfirmation, true, identity.ID, identity.Email, nil, func() map[string]string {
		return map[string]string{"reason": "resend"}
	})

	return findings, nil
}
