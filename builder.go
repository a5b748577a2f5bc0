package dashauth

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dashauth/dashauth/claims"
	internalaudit "github.com/dashauth/dashauth/internal/audit"
	"github.com/dashauth/dashauth/jwt"
)

// Builder assembles an Engine. Configure it with the credential store, the
// claims repository, and a redis client, then call Build once.
type Builder struct {
	config Config
	redis  *redis.Client

	store      CredentialStore
	claimsRepo claims.Repository
	sender     ConfirmationSender
	auditSink  AuditSink
	logger     *zap.Logger

	built bool
}

// New returns a builder loaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the redis client backing the two-factor challenge store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the credential store adapter. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithClaimsRepository sets the scope-partitioned claims source. Required.
func (b *Builder) WithClaimsRepository(repo claims.Repository) *Builder {
	b.claimsRepo = repo
	return b
}

// WithConfirmationSender sets the delivery channel for confirmation and
// recovery tokens. Optional; without one, registration and recovery flows
// still run but generated tokens are discarded.
func (b *Builder) WithConfirmationSender(sender ConfirmationSender) *Builder {
	b.sender = sender
	return b
}

// WithAuditSink sets the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the engine. A builder can
// only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.claimsRepo == nil {
		return nil, errors.New("claims repository required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:     cfg,
		store:      b.store,
		sender:     b.sender,
		composer:   claims.NewComposer(b.claimsRepo, cfg.Token.ClaimsIssuer),
		challenges: newChallengeStore(b.redis, cfg.Challenge.RedisPrefix),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}

	// Token issuance is optional: the manager exists only when a key is
	// configured, and CreateScopedToken reports ErrSigningKeyMissing
	// otherwise.
	if len(cfg.Token.SecurityKey) > 0 {
		tm, err := jwt.NewManager(jwt.Config{
			ExpireMinutes: cfg.Token.ExpireMinutes,
			SigningKey:    cloneBytes(cfg.Token.SecurityKey),
			Issuer:        cfg.Token.ClaimsIssuer,
		})
		if err != nil {
			return nil, err
		}
		engine.tokens = tm
	}

	b.built = true

	return engine, nil
}
