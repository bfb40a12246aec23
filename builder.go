package tenantauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/luminalhq/tenantauth/cache"
	"github.com/luminalhq/tenantauth/internal/limiters"
	"github.com/luminalhq/tenantauth/internal/stores"
	"github.com/luminalhq/tenantauth/password"
	"github.com/luminalhq/tenantauth/permission"
	"github.com/luminalhq/tenantauth/token"
)

// Builder assembles an [Engine]. Collaborators are attached through the
// With methods; Build validates the whole configuration at once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     CredentialStore
	plans     SubscriptionService
	mailer    Mailer
	verifiers map[string]IdentityVerifier
	auditSink AuditSink
}

// New starts a builder with default configuration.
func New() *Builder {
	return &Builder{
		config:    defaultConfig(),
		verifiers: make(map[string]IdentityVerifier),
	}
}

// WithConfig overlays cfg on the defaults. Zero-value fields keep their
// defaults, so settings whose meaningful value is the zero value are
// expressed through inverted flags (MetricsConfig.Disabled) or cannot be
// lowered past their default (MFAConfig.Skew).
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = mergeConfig(b.config, cfg)
	return b
}

// WithRedis sets the redis client backing caches, refresh records,
// provisioning secrets, and limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the authoritative identity store.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithSubscriptionService sets the billing collaborator used for plan
// permission grants.
func (b *Builder) WithSubscriptionService(plans SubscriptionService) *Builder {
	b.plans = plans
	return b
}

// WithMailer sets the outbound mail collaborator. Optional; without it,
// verification and reset flows mint tokens but send nothing.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithIdentityVerifier registers an external IdP verifier under its
// provider name, e.g. "google".
func (b *Builder) WithIdentityVerifier(provider string, verifier IdentityVerifier) *Builder {
	b.verifiers[provider] = verifier
	return b
}

// WithAuditSink sets the audit event consumer. Optional.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, loads the permission catalog from
// the credential store, and wires the engine. The returned engine is
// ready for concurrent use; the builder must not be reused afterwards.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if err := b.config.Validate(); err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrConfiguration)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrConfiguration)
	}
	if b.plans == nil {
		return nil, fmt.Errorf("%w: subscription service required", ErrConfiguration)
	}

	cfg := cloneConfig(b.config)

	tokens, err := token.NewManager(token.Config{
		Secret:      cfg.Token.Secret,
		Environment: cfg.Environment,
		Issuer:      cfg.Token.Issuer,
		Leeway:      cfg.Token.Leeway,
	})
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	catalog := permission.NewCatalog()
	perms, err := b.store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading permission catalog: %w", err)
	}
	for _, p := range perms {
		if err := catalog.Register(p.ID, p.Name); err != nil {
			return nil, errors.Join(ErrConfiguration, err)
		}
	}
	catalog.Freeze()

	cacheStore := cache.NewStore(b.redis, cfg.Cache.TTL)

	resolver, err := permission.NewResolver(
		catalog,
		cacheStore,
		membershipSource{store: b.store},
		planSource{plans: b.plans},
		cfg.Permission.Defaults,
	)
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	e := &Engine{
		config:         cfg,
		tokens:         tokens,
		catalog:        catalog,
		resolver:       resolver,
		cacheStore:     cacheStore,
		refreshStore:   stores.NewRefreshStore(b.redis, ""),
		provisionStore: stores.NewTOTPProvisionStore(b.redis, ""),
		otpLimiter: limiters.NewOTPLimiter(b.redis, limiters.OTPConfig{
			MaxAttempts: cfg.MFA.MaxAttempts,
			Lockout:     cfg.MFA.Lockout,
		}),
		verifyResends: limiters.NewResendLimiter(b.redis, "RESEND:VERIFY", limiters.ResendConfig{
			MaxAttempts: cfg.Resend.MaxAttempts,
			Window:      cfg.Resend.Window,
		}),
		resetResends: limiters.NewResendLimiter(b.redis, "RESEND:RESET", limiters.ResendConfig{
			MaxAttempts: cfg.Resend.MaxAttempts,
			Window:      cfg.Resend.Window,
		}),
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.MFA),
		store:        b.store,
		plans:        b.plans,
		mailer:       b.mailer,
		verifiers:    b.verifiers,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
	}
	return e, nil
}

// membershipSource adapts the credential store to the resolver's view of
// membership rows.
type membershipSource struct {
	store CredentialStore
}

func (s membershipSource) GetMembership(ctx context.Context, membershipID string) (permission.Membership, error) {
	m, err := s.store.GetMembership(ctx, membershipID)
	if err != nil {
		return permission.Membership{}, err
	}
	return permission.Membership{
		ID:             m.ID,
		UserID:         m.UserID,
		OrganisationID: m.OrganisationID,
		Active:         m.Valid(),
	}, nil
}

func (s membershipSource) GetGroupIDs(ctx context.Context, membershipID string) ([]string, error) {
	return s.store.GetGroupIDs(ctx, membershipID)
}

func (s membershipSource) GetGroupPermissionIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.store.GetGroupPermissionIDs(ctx, groupID)
}

// planSource adapts the subscription collaborator to the resolver.
type planSource struct {
	plans SubscriptionService
}

func (s planSource) GetActivePlanItems(ctx context.Context, organisationID string) ([]string, error) {
	return s.plans.GetActivePlanItems(ctx, organisationID)
}

func (s planSource) GetPlanPermissionIDs(ctx context.Context, planItemID string) ([]string, error) {
	return s.plans.GetPlanPermissions(ctx, planItemID)
}
