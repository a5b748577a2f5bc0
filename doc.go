// Package dashauth is the core of an identity dashboard: an embeddable
// engine for authentication state, the two-factor lifecycle, registration,
// and claims-scoped JWT issuance over an external credential store.
//
// The engine never owns credentials. Hosts supply a [CredentialStore] that
// fronts their user database and retains all credential policy (hashing,
// lockout windows, TOTP math, token formats); the engine orchestrates flows,
// records validation findings, and signs scoped tokens. Business failures
// such as bad credentials or rejected codes are always reported as findings
// on result types, never as errors; Go errors are reserved for infrastructure
// faults and caller mistakes.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
package dashauth
