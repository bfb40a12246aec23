package tenantauth

import (
	"errors"
	"strings"
	"time"
)

// Config defines every tunable of the engine. Configure it once, hand it
// to [Builder.WithConfig], and treat it as immutable afterwards.
type Config struct {
	// Environment tags every issued token and is checked on every
	// verification; a develop token never verifies in production.
	Environment string

	Token      TokenConfig
	MFA        MFAConfig
	Cache      CacheConfig
	Password   PasswordConfig
	Resend     ResendConfig
	Permission PermissionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// TokenConfig holds the shared HMAC secret and per-type lifetimes.
type TokenConfig struct {
	Secret       []byte
	Issuer       string
	Leeway       time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SingleUseTTL time.Duration // email verification, password reset, invites
	DownloadTTL  time.Duration
}

// MFAConfig holds TOTP parameters and the lockout thresholds.
type MFAConfig struct {
	Issuer    string // otpauth issuer label
	Digits    int
	Period    int
	Skew      int // accepted time-step tolerance each side; 0 is valid but unreachable through the Builder overlay
	Algorithm string

	// GatePermission names the permission whose presence in an
	// organisation's effective set makes MFA mandatory there.
	GatePermission string

	ProvisionTTL time.Duration // lifetime of a cached, unconfirmed secret
	ChallengeTTL time.Duration // lifetime of an mfa-challenge token
	MaxAttempts  int
	Lockout      time.Duration
}

// CacheConfig bounds derived-data cache entries.
type CacheConfig struct {
	TTL time.Duration
}

// PasswordConfig holds argon2id cost parameters; zero values fall back to
// library defaults.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// ResendConfig caps outbound verification and reset mail resends.
type ResendConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// PermissionConfig names the fixed default permission set granted when
// group and plan permissions do not intersect.
type PermissionConfig struct {
	Defaults []string
}

// AuditConfig controls the best-effort audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the in-process metric counters. Counters are
// on by default; the zero value enables them.
type MetricsConfig struct {
	Disabled bool
}

func defaultConfig() Config {
	return Config{
		Environment: "develop",
		Token: TokenConfig{
			Issuer:       "tenantauth",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			SingleUseTTL: 24 * time.Hour,
			DownloadTTL:  10 * time.Minute,
		},
		MFA: MFAConfig{
			Issuer:       "tenantauth",
			Digits:       6,
			Period:       30,
			Skew:         1,
			Algorithm:    "SHA1",
			ProvisionTTL: 10 * time.Minute,
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
			Lockout:      10 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Resend: ResendConfig{
			MaxAttempts: 3,
			Window:      time.Hour,
		},
		Permission: PermissionConfig{
			Defaults: []string{"profile.view.own"},
		},
		Audit: AuditConfig{
			BufferSize: 256,
		},
	}
}

// mergeConfig overlays the non-zero fields of over on base so partial
// configurations keep the defaults for everything else.
func mergeConfig(base, over Config) Config {
	out := base
	if over.Environment != "" {
		out.Environment = over.Environment
	}
	if over.Token.Secret != nil {
		out.Token.Secret = over.Token.Secret
	}
	if over.Token.Issuer != "" {
		out.Token.Issuer = over.Token.Issuer
	}
	if over.Token.Leeway != 0 {
		out.Token.Leeway = over.Token.Leeway
	}
	if over.Token.AccessTTL != 0 {
		out.Token.AccessTTL = over.Token.AccessTTL
	}
	if over.Token.RefreshTTL != 0 {
		out.Token.RefreshTTL = over.Token.RefreshTTL
	}
	if over.Token.SingleUseTTL != 0 {
		out.Token.SingleUseTTL = over.Token.SingleUseTTL
	}
	if over.Token.DownloadTTL != 0 {
		out.Token.DownloadTTL = over.Token.DownloadTTL
	}
	if over.MFA.Issuer != "" {
		out.MFA.Issuer = over.MFA.Issuer
	}
	if over.MFA.Digits != 0 {
		out.MFA.Digits = over.MFA.Digits
	}
	if over.MFA.Period != 0 {
		out.MFA.Period = over.MFA.Period
	}
	if over.MFA.Skew != 0 {
		out.MFA.Skew = over.MFA.Skew
	}
	if over.MFA.Algorithm != "" {
		out.MFA.Algorithm = over.MFA.Algorithm
	}
	if over.MFA.GatePermission != "" {
		out.MFA.GatePermission = over.MFA.GatePermission
	}
	if over.MFA.ProvisionTTL != 0 {
		out.MFA.ProvisionTTL = over.MFA.ProvisionTTL
	}
	if over.MFA.ChallengeTTL != 0 {
		out.MFA.ChallengeTTL = over.MFA.ChallengeTTL
	}
	if over.MFA.MaxAttempts != 0 {
		out.MFA.MaxAttempts = over.MFA.MaxAttempts
	}
	if over.MFA.Lockout != 0 {
		out.MFA.Lockout = over.MFA.Lockout
	}
	if over.Cache.TTL != 0 {
		out.Cache.TTL = over.Cache.TTL
	}
	if over.Password != (PasswordConfig{}) {
		out.Password = over.Password
	}
	if over.Resend.MaxAttempts != 0 {
		out.Resend.MaxAttempts = over.Resend.MaxAttempts
	}
	if over.Resend.Window != 0 {
		out.Resend.Window = over.Resend.Window
	}
	if over.Permission.Defaults != nil {
		out.Permission.Defaults = over.Permission.Defaults
	}
	if over.Audit.Enabled {
		out.Audit.Enabled = true
	}
	if over.Audit.BufferSize != 0 {
		out.Audit.BufferSize = over.Audit.BufferSize
	}
	if over.Metrics.Disabled {
		out.Metrics.Disabled = true
	}
	return out
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Permission.Defaults = append([]string(nil), cfg.Permission.Defaults...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Environment) == "" {
		return errors.New("Environment required")
	}
	if len(c.Token.Secret) < 16 {
		return errors.New("Token secret must be at least 16 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("Token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Refresh TTL must exceed access TTL")
	}
	if c.Token.SingleUseTTL <= 0 || c.Token.DownloadTTL <= 0 {
		return errors.New("single-use and download TTLs must be positive")
	}
	if c.MFA.Digits < 6 || c.MFA.Digits > 8 {
		return errors.New("MFA digits must be 6-8")
	}
	if c.MFA.Period <= 0 {
		return errors.New("MFA period must be positive")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("MFA skew must be 0-2")
	}
	switch strings.ToUpper(c.MFA.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported MFA algorithm")
	}
	if c.MFA.ProvisionTTL <= 0 || c.MFA.ChallengeTTL <= 0 {
		return errors.New("MFA TTLs must be positive")
	}
	if c.MFA.MaxAttempts <= 0 || c.MFA.Lockout <= 0 {
		return errors.New("MFA lockout thresholds must be positive")
	}
	if len(c.Permission.Defaults) == 0 {
		return errors.New("Permission defaults cannot be empty")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit buffer size must be positive")
	}
	return nil
}
