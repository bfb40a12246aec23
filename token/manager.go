package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates what a signed token may be used for. Verification
// rejects a token whose declared type differs from the caller's expected
// type even when the signature is valid.
type Type string

const (
	// TypeAccess authorizes API calls for the lifetime of a session.
	TypeAccess Type = "access"
	// TypeRefresh mints new access tokens; tracked server-side by hash.
	TypeRefresh Type = "refresh"
	// TypeVerifyEmail proves control of an email address.
	TypeVerifyEmail Type = "verify-email"
	// TypeUpdatePassword authorizes a password reset or update.
	TypeUpdatePassword Type = "update-password"
	// TypeMFAChallenge proves password correctness while withholding full
	// session issuance pending OTP verification.
	TypeMFAChallenge Type = "mfa-challenge"
	// TypeOrganisationInvite carries a pending membership to its invitee.
	TypeOrganisationInvite Type = "organisation-invite"
	// TypeResendVerification caps verification-mail resends.
	TypeResendVerification Type = "resend-verification"
	// TypeResendPasswordReset caps reset-mail resends.
	TypeResendPasswordReset Type = "resend-password-reset"
	// TypeDownload grants narrowly scoped access to a single artifact.
	TypeDownload Type = "download"
)

var (
	// ErrInvalid is returned for malformed tokens and bad signatures.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when the token is past exp and the caller did
	// not opt into expiry bypass.
	ErrExpired = errors.New("token expired")
	// ErrTypeMismatch is returned when a structurally valid token declares
	// a different type than the operation requires.
	ErrTypeMismatch = errors.New("token type mismatch")
	// ErrEnvironmentMismatch is returned when the token's env tag differs
	// from the verifying process's environment.
	ErrEnvironmentMismatch = errors.New("token environment mismatch")
)

// OrganisationClaim pins a token to one organisation context.
type OrganisationClaim struct {
	ID string `json:"id"`
}

// Claims is the signed payload shared by every token type. Type-specific
// data rides in the optional fields; absent fields are omitted from the
// encoded payload.
type Claims struct {
	Env          string             `json:"env"`
	TokenType    Type               `json:"tokenType"`
	UserType     string             `json:"userType,omitempty"`
	Organisation *OrganisationClaim `json:"organisation,omitempty"`
	Resource     string             `json:"resource,omitempty"`
	jwt.RegisteredClaims
}

// OrganisationID returns the organisation-membership id carried by the
// token, or "" when the token is not organisation-scoped.
func (c *Claims) OrganisationID() string {
	if c == nil || c.Organisation == nil {
		return ""
	}
	return c.Organisation.ID
}

// Extra carries the optional claims a caller may attach at issuance.
type Extra struct {
	TokenID        string // jti; required for refresh tokens
	UserType       string
	OrganisationID string
	Resource       string // download tokens only
}

// Config holds the shared-secret signing parameters. Every service
// verifying tokens must use the same Secret and Environment.
type Config struct {
	Secret      []byte
	Environment string
	Issuer      string
	Leeway      time.Duration
}

// Manager signs and verifies typed tokens with a single HS256 secret.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	if cfg.Environment == "" {
		return nil, errors.New("token environment required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Environment returns the env discriminator stamped into every token.
func (m *Manager) Environment() string {
	return m.config.Environment
}

// Issue signs a token of the given type for subject with the supplied TTL.
func (m *Manager) Issue(subject string, typ Type, extra Extra, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject required")
	}
	if typ == "" {
		return "", errors.New("token type required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := time.Now()
	claims := Claims{
		Env:       m.config.Environment,
		TokenType: typ,
		UserType:  extra.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        extra.TokenID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if extra.OrganisationID != "" {
		claims.Organisation = &OrganisationClaim{ID: extra.OrganisationID}
	}
	claims.Resource = extra.Resource

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// VerifyOption adjusts a single Verify call.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	allowExpired bool
}

// AllowExpired skips the expiry check. Used by identify-without-trusting-
// freshness flows such as logout, where the bearer only needs to be
// identified, not trusted as fresh.
func AllowExpired() VerifyOption {
	return func(o *verifyOptions) { o.allowExpired = true }
}

// Verify checks signature, expiry (unless bypassed), declared type, and
// environment tag. The type and environment checks run even for expired-
// bypass verification: a wrong-type token is never acceptable.
func (m *Manager) Verify(tokenStr string, expected Type, opts ...VerifyOption) (*Claims, error) {
	var o verifyOptions
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(m.config.Leeway))
	}
	if o.allowExpired {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	} else if m.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(parserOpts...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != expected {
		return nil, ErrTypeMismatch
	}
	if claims.Env != m.config.Environment {
		return nil, ErrEnvironmentMismatch
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
