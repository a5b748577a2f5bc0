package dashauth

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts password sign-ins that fully succeeded.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts sign-ins rejected as invalid credentials.
	MetricLoginFailure
	// MetricLoginUnknownEmail counts sign-ins for unregistered addresses.
	MetricLoginUnknownEmail
	// MetricLoginLockedOut counts sign-ins refused due to lockout.
	MetricLoginLockedOut
	// MetricLoginNotAllowed counts sign-ins refused by store policy.
	MetricLoginNotAllowed
	// MetricLoginTwoFactorRequired counts sign-ins paused for a second factor.
	MetricLoginTwoFactorRequired
	// MetricLogout counts sign-outs.
	MetricLogout
	// MetricPasswordChangeSuccess counts accepted password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure counts rejected password changes.
	MetricPasswordChangeFailure
	// MetricPasswordRecoveryRequest counts recovery mails handed to the sender.
	MetricPasswordRecoveryRequest
	// MetricPasswordResetSuccess counts accepted password resets.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected password resets.
	MetricPasswordResetFailure
	// MetricTwoFactorSetupConfirmed counts activated authenticators.
	MetricTwoFactorSetupConfirmed
	// MetricTwoFactorSetupFailed counts rejected setup confirmations.
	MetricTwoFactorSetupFailed
	// MetricTwoFactorLoginSuccess counts completed two-factor logins.
	MetricTwoFactorLoginSuccess
	// MetricTwoFactorLoginFailure counts failed two-factor login attempts.
	MetricTwoFactorLoginFailure
	// MetricRecoveryCodeUsed counts recovery codes consumed at login.
	MetricRecoveryCodeUsed
	// MetricRecoveryCodeFailed counts rejected recovery-code logins.
	MetricRecoveryCodeFailed
	// MetricRecoveryCodesRegenerated counts recovery-code regenerations.
	MetricRecoveryCodesRegenerated
	// MetricTwoFactorReset counts authenticator resets.
	MetricTwoFactorReset
	// MetricTwoFactorDisabled counts two-factor disables.
	MetricTwoFactorDisabled
	// MetricRegistrationSuccess counts completed registrations.
	MetricRegistrationSuccess
	// MetricRegistrationDuplicate counts registrations for taken addresses.
	MetricRegistrationDuplicate
	// MetricRegistrationRollback counts registrations undone after a
	// password failure.
	MetricRegistrationRollback
	// MetricEmailConfirmationSuccess counts confirmed email addresses.
	MetricEmailConfirmationSuccess
	// MetricEmailConfirmationFailure counts rejected email confirmations.
	MetricEmailConfirmationFailure
	// MetricTokenIssued counts scoped tokens signed.
	MetricTokenIssued
	// MetricChallengeExpired counts two-factor logins against a missing or
	// expired challenge.
	MetricChallengeExpired
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's counters. All methods are safe for concurrent
// use; a nil or disabled Metrics makes every operation a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
