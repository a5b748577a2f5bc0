package dashauth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dashauth/dashauth/claims"
)

// ComposePrincipal builds the claim principal established at sign-in: the
// primary identity plus the dashboard and application-global partitions read
// from the claims repository.
func (e *Engine) ComposePrincipal(ctx context.Context, userID, email string) (*claims.Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return e.composer.ComposePrincipal(ctx, userID, email)
}

// CreateScopedToken signs a token for the application identified by
// appScopeID, carrying the principal's claims flattened per the scope rules:
// dashboard claims excluded, application-scope claims appended, duplicates
// preserved. A principal with no name identifier yields an anonymous token.
//
// A zero scope id and a missing signing key are caller and configuration
// mistakes and fail fast.
func (e *Engine) CreateScopedToken(ctx context.Context, principal *claims.Principal, appScopeID uuid.UUID) (*TokenStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if appScopeID == uuid.Nil {
		return nil, ErrEmptyScopeID
	}
	if e.tokens == nil {
		return nil, ErrSigningKeyMissing
	}
	if principal == nil {
		return nil, ErrNotAuthenticated
	}

	identity, err := e.composer.ApplicationScopedIdentity(ctx, principal, appScopeID)
	if err != nil {
		return nil, err
	}

	signed, err := e.tokens.CreateScoped(identity)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, "", "", nil, func() map[string]string {
		return map[string]string{"scope": appScopeID.String()}
	})

	return &TokenStatus{
		Token:     signed,
		ExpiresAt: time.Now().Add(e.tokens.ExpiresIn()),
	}, nil
}
