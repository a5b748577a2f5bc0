package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dashauth/dashauth/claims"
)

// DefaultExpireMinutes is the token lifetime applied when Config.ExpireMinutes
// is zero. Seven days.
const DefaultExpireMinutes = 10080

// Config holds the signing parameters for scoped tokens. Configure once
// during initialization and treat as immutable afterwards.
type Config struct {
	// ExpireMinutes is the token lifetime in minutes. Zero selects
	// DefaultExpireMinutes.
	ExpireMinutes int

	// SigningKey is the HMAC-SHA256 secret. Required.
	SigningKey []byte

	// Issuer is placed in the iss claim when set.
	Issuer string
}

// Manager signs application-scoped identities into compact JWTs.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("hs256 requires signing key")
	}
	if cfg.ExpireMinutes < 0 {
		return nil, errors.New("invalid expiry configuration")
	}
	if cfg.ExpireMinutes == 0 {
		cfg.ExpireMinutes = DefaultExpireMinutes
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// reservedClaimTypes are claim names the manager writes itself. A stored
// claim must never fold into them: a forged scope or issuer hidden in an
// array would survive verification.
var reservedClaimTypes = map[string]struct{}{
	"scope": {},
	"iss":   {},
	"iat":   {},
	"exp":   {},
}

// CreateScoped signs identity into a compact token. The identity's
// authentication type becomes the scope claim. Repeated claim types are
// accumulated into JSON arrays so no claim value is lost to key collisions;
// claim types colliding with a reserved claim are rejected instead.
func (m *Manager) CreateScoped(identity *claims.Identity) (string, error) {
	if identity == nil {
		return "", errors.New("nil identity")
	}

	now := m.now()
	mapped := jwt.MapClaims{
		"scope": identity.AuthenticationType,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(time.Duration(m.config.ExpireMinutes) * time.Minute)),
	}
	if m.config.Issuer != "" {
		mapped["iss"] = m.config.Issuer
	}

	for _, c := range identity.Claims {
		if _, reserved := reservedClaimTypes[c.Type]; reserved {
			return "", fmt.Errorf("claim type %q collides with a reserved claim", c.Type)
		}
		existing, ok := mapped[c.Type]
		if !ok {
			mapped[c.Type] = c.Value
			continue
		}
		switch v := existing.(type) {
		case []string:
			mapped[c.Type] = append(v, c.Value)
		case string:
			mapped[c.Type] = []string{v, c.Value}
		default:
			return "", fmt.Errorf("claim type %q collides with a reserved claim", c.Type)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapped)
	return token.SignedString(m.config.SigningKey)
}

// Parse verifies a token issued by CreateScoped and returns its claims.
// Multi-valued claims come back as JSON arrays.
func (m *Manager) Parse(tokenStr string) (map[string]any, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return m.config.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}
	mapped, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return mapped, nil
}

// ExpiresIn returns the configured token lifetime.
func (m *Manager) ExpiresIn() time.Duration {
	return time.Duration(m.config.ExpireMinutes) * time.Minute
}

// StringValues normalizes a parsed claim value to its string values: a
// single string yields one element, a JSON array yields each element.
func StringValues(claim any) ([]string, error) {
	switch v := claim.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("claim element %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	case json.Number:
		return []string{v.String()}, nil
	default:
		return nil, fmt.Errorf("claim value %v is not a string", v)
	}
}
