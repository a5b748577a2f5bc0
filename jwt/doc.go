// Package jwt signs application-scoped identities into HMAC-SHA256 tokens
// and verifies tokens on the way back in.
package jwt
