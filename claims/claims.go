// Package claims models scope-partitioned user claims and composes the
// identities embedded in scoped tokens.
//
// A claim value is defined for a user under a scope: the dashboard itself,
// the application-global scope shared by every managed application, or one
// per-application scope identified by a UUID. A principal carries one
// identity partition per scope; the composer merges partitions into the
// single identity a scoped token is issued for.
package claims

// Well-known scope keys. Per-application scopes use the string form of the
// application's scope UUID instead.
const (
	// ScopeDashboard partitions claims that apply only inside the identity
	// dashboard. These must never leak into application-scoped tokens.
	ScopeDashboard = "dashboard"

	// ScopeApplicationGlobal partitions claims shared by all applications
	// managed by the dashboard.
	ScopeApplicationGlobal = "application-global"

	// SchemeApplication is the authentication type of the primary identity
	// established at sign-in. The composer locates the user id on this
	// partition.
	SchemeApplication = "application"
)

// Claim types placed on the primary identity at composition time.
const (
	TypeNameIdentifier = "sub"
	TypeName           = "name"
	TypeEmail          = "email"
)

// Claim is a typed, namespaced fact about a user.
type Claim struct {
	Issuer string `json:"issuer,omitempty"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

// Identity is one partition of a principal: the set of claims established
// under a single authentication type (scope key or sign-in scheme).
type Identity struct {
	AuthenticationType string
	Claims             []Claim
}

// NewIdentity returns an identity for the given authentication type holding
// the given claims.
func NewIdentity(authenticationType string, claims []Claim) *Identity {
	return &Identity{AuthenticationType: authenticationType, Claims: claims}
}

// FindFirst returns the first claim of the given type, or nil.
func (i *Identity) FindFirst(claimType string) *Claim {
	for idx := range i.Claims {
		if i.Claims[idx].Type == claimType {
			return &i.Claims[idx]
		}
	}
	return nil
}

// Principal is the set of identity partitions established for a user: the
// primary sign-in identity plus one partition per claim scope.
type Principal struct {
	identities []*Identity
}

// NewPrincipal returns a principal holding the given partitions.
func NewPrincipal(identities ...*Identity) *Principal {
	p := &Principal{}
	for _, id := range identities {
		p.AddIdentity(id)
	}
	return p
}

// AddIdentity appends a partition. Nil identities are ignored.
func (p *Principal) AddIdentity(identity *Identity) {
	if identity == nil {
		return
	}
	p.identities = append(p.identities, identity)
}

// Identities returns the partitions in the order they were added.
func (p *Principal) Identities() []*Identity {
	return p.identities
}

// Identity returns the partition with the given authentication type, or nil.
func (p *Principal) Identity(authenticationType string) *Identity {
	for _, id := range p.identities {
		if id.AuthenticationType == authenticationType {
			return id
		}
	}
	return nil
}
