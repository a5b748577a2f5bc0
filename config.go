package dashauth

import (
	"errors"
	"time"
)

// Config carries the engine's tunables. Configure once during initialization
// and treat as immutable afterwards.
type Config struct {
	Token         TokenConfig
	RecoveryCodes RecoveryCodesConfig
	Challenge     ChallengeConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// TokenConfig controls scoped-token issuance.
type TokenConfig struct {
	// ExpireMinutes is the token lifetime in minutes.
	ExpireMinutes int

	// SecurityKey is the HMAC-SHA256 signing secret. It may be left unset
	// when the host never issues tokens; CreateScopedToken fails with
	// ErrSigningKeyMissing if called without one.
	SecurityKey []byte

	// ClaimsIssuer stamps composed claims and the token iss claim.
	ClaimsIssuer string
}

// RecoveryCodesConfig controls recovery-code generation and warnings.
type RecoveryCodesConfig struct {
	// Count is how many codes a regeneration produces.
	Count int

	// WarningThreshold marks a recovery login as low-on-codes when the
	// remaining count drops to this value or below.
	WarningThreshold int
}

// ChallengeConfig controls the redis-backed pending two-factor login
// challenges issued when a password sign-in requires a second factor.
type ChallengeConfig struct {
	TTL         time.Duration
	MaxAttempts int
	RedisPrefix string
}

// AuditConfig controls the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration a fresh builder starts from.
// Token issuance is left unconfigured; set Token.SecurityKey to enable it.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			ExpireMinutes: 10080,
		},
		RecoveryCodes: RecoveryCodesConfig{
			Count:            12,
			WarningThreshold: 3,
		},
		Challenge: ChallengeConfig{
			TTL:         5 * time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "da",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SecurityKey = cloneBytes(cfg.Token.SecurityKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for values the engine cannot run with.
// The token security key is deliberately not required here: hosts that never
// issue tokens may omit it, and issuance checks for it at call time.
func (c *Config) Validate() error {
	if c.Token.ExpireMinutes <= 0 {
		return errors.New("Token ExpireMinutes must be > 0")
	}
	if c.RecoveryCodes.Count <= 0 {
		return errors.New("RecoveryCodes Count must be > 0")
	}
	if c.RecoveryCodes.WarningThreshold < 0 {
		return errors.New("RecoveryCodes WarningThreshold must be >= 0")
	}
	if c.RecoveryCodes.WarningThreshold >= c.RecoveryCodes.Count {
		return errors.New("RecoveryCodes WarningThreshold must be < Count")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return errors.New("Challenge MaxAttempts must be > 0")
	}
	if c.Challenge.RedisPrefix == "" {
		return errors.New("Challenge RedisPrefix must not be empty")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}
