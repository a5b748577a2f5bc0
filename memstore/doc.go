// Package memstore provides an in-memory CredentialStore implementation.
//
// It covers the full capability surface: Argon2id password hashing with
// lockout accounting, RFC 6238 authenticator codes, single-use recovery
// codes, and expiring confirmation and reset tokens. Intended for tests
// and single-process deployments; nothing is persisted.
package memstore
