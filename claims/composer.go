package claims

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Repository reads the claims recorded for a user under one scope. The scope
// is either a well-known key (ScopeDashboard, ScopeApplicationGlobal) or the
// string form of an application scope id.
type Repository interface {
	ReadUserClaims(ctx context.Context, scope string, userID string) ([]Claim, error)
}

// AnonymousName is the name claim value of a scoped identity composed for a
// principal that carries no name identifier.
const AnonymousName = "anonymous"

// Composer builds principals from stored claims and flattens them into the
// single identity an application-scoped token is issued for.
type Composer struct {
	repo   Repository
	issuer string
}

// NewComposer returns a composer reading from repo. Claims added during
// composition are stamped with issuer.
func NewComposer(repo Repository, issuer string) *Composer {
	return &Composer{repo: repo, issuer: issuer}
}

// ComposePrincipal builds the principal established at sign-in: a primary
// identity under SchemeApplication carrying the user's id, name, and email,
// plus one partition each for the dashboard and application-global scopes.
func (c *Composer) ComposePrincipal(ctx context.Context, userID, email string) (*Principal, error) {
	primary := NewIdentity(SchemeApplication, []Claim{
		{Issuer: c.issuer, Type: TypeNameIdentifier, Value: userID},
		{Issuer: c.issuer, Type: TypeName, Value: email},
		{Issuer: c.issuer, Type: TypeEmail, Value: email},
	})
	principal := NewPrincipal(primary)

	for _, scope := range []string{ScopeDashboard, ScopeApplicationGlobal} {
		stored, err := c.repo.ReadUserClaims(ctx, scope, userID)
		if err != nil {
			return nil, fmt.Errorf("read %s claims: %w", scope, err)
		}
		principal.AddIdentity(NewIdentity(scope, stored))
	}
	return principal, nil
}

// ApplicationScopedIdentity flattens principal into the identity embedded in
// a token for the application identified by appScopeID.
//
// The dashboard partition is excluded. Every other partition's claims are
// carried over in insertion order, then the claims stored for the application
// scope are appended. Duplicate claim types are preserved. When the primary
// partition carries no name identifier the result degrades to an anonymous
// identity holding only a name claim.
func (c *Composer) ApplicationScopedIdentity(ctx context.Context, principal *Principal, appScopeID uuid.UUID) (*Identity, error) {
	scope := appScopeID.String()

	primary := principal.Identity(SchemeApplication)
	if primary == nil || primary.FindFirst(TypeNameIdentifier) == nil {
		return NewIdentity(scope, []Claim{
			{Issuer: c.issuer, Type: TypeName, Value: AnonymousName},
		}), nil
	}

	var merged []Claim
	for _, partition := range principal.Identities() {
		if partition.AuthenticationType == ScopeDashboard {
			continue
		}
		merged = append(merged, partition.Claims...)
	}

	userID := primary.FindFirst(TypeNameIdentifier).Value
	stored, err := c.repo.ReadUserClaims(ctx, scope, userID)
	if err != nil {
		return nil, fmt.Errorf("read %s claims: %w", scope, err)
	}
	merged = append(merged, stored...)

	return NewIdentity(scope, merged), nil
}
