package dashauth

import (
	"go.uber.org/zap"

	"github.com/dashauth/dashauth/claims"
	internalaudit "github.com/dashauth/dashauth/internal/audit"
	"github.com/dashauth/dashauth/jwt"
)

// Engine is the identity dashboard core. It orchestrates authentication,
// the two-factor lifecycle, registration, and scoped-token issuance over a
// caller-supplied CredentialStore, never touching credentials itself.
//
// Build one with a Builder. All methods are safe for concurrent use when
// the injected dependencies are.
type Engine struct {
	config     Config
	store      CredentialStore
	sender     ConfirmationSender
	composer   *claims.Composer
	challenges *challengeStore
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	tokens     *jwt.Manager
	logger     *zap.Logger
}

// Close flushes and stops the audit pipeline.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded due to a full
// buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) requireTwoFactor() error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.store.Capabilities().SupportsTwoFactor {
		return ErrTwoFactorNotSupported
	}
	return nil
}

func (e *Engine) requireAuthenticator() error {
	if err := e.requireTwoFactor(); err != nil {
		return err
	}
	if !e.store.Capabilities().SupportsAuthenticatorKey {
		return ErrAuthenticatorNotSupported
	}
	return nil
}

func (e *Engine) requireRecoveryCodes() error {
	if err := e.requireTwoFactor(); err != nil {
		return err
	}
	if !e.store.Capabilities().SupportsRecoveryCodes {
		return ErrRecoveryCodesNotSupported
	}
	return nil
}
