package dashauth

import (
	"context"
	"time"

	internalaudit "github.com/dashauth/dashauth/internal/audit"
	"github.com/dashauth/dashauth/validation"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginTwoFactorRequired = "login_two_factor_required"
	auditEventLogout                 = "logout"
	auditEventPasswordChange         = "password_change"
	auditEventPasswordRecoverySent   = "password_recovery_sent"
	auditEventPasswordReset          = "password_reset"
	auditEventTwoFactorSetup         = "two_factor_setup_confirmed"
	auditEventTwoFactorLogin         = "two_factor_login"
	auditEventRecoveryCodeLogin      = "recovery_code_login"
	auditEventRecoveryCodesRegen     = "recovery_codes_regenerated"
	auditEventTwoFactorReset         = "two_factor_reset"
	auditEventTwoFactorDisabled      = "two_factor_disabled"
	auditEventRegistration           = "registration"
	auditEventEmailConfirmation      = "email_confirmation"
	auditEventTokenIssued            = "token_issued"
)

// emitAudit queues one event. The metadata callback is only invoked when a
// dispatcher is running, keeping disabled audit allocation-free.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, email string,
	findings *validation.Set,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		Success:   success,
	}
	if findings != nil {
		event.Findings = findings.Messages()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
