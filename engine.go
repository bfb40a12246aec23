package tenantauth

import (
	"context"
	"errors"
	"log"

	"github.com/luminalhq/tenantauth/cache"
	"github.com/luminalhq/tenantauth/internal"
	"github.com/luminalhq/tenantauth/internal/limiters"
	"github.com/luminalhq/tenantauth/internal/stores"
	"github.com/luminalhq/tenantauth/password"
	"github.com/luminalhq/tenantauth/permission"
	"github.com/luminalhq/tenantauth/token"
)

// Engine is the authentication and authorization core. Build one through
// [Builder.Build]; it is safe for concurrent use afterwards.
type Engine struct {
	config Config

	tokens   *token.Manager
	catalog  *permission.Catalog
	resolver *permission.Resolver

	cacheStore     *cache.Store
	refreshStore   *stores.RefreshStore
	provisionStore *stores.TOTPProvisionStore
	otpLimiter     *limiters.OTPLimiter
	verifyResends  *limiters.ResendLimiter
	resetResends   *limiters.ResendLimiter

	passwordHash *password.Hasher
	totp         *totpManager

	store     CredentialStore
	plans     SubscriptionService
	mailer    Mailer
	verifiers map[string]IdentityVerifier

	audit   *auditDispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Resolver exposes the permission resolution engine for callers that
// invalidate caches after group or group-permission mutations.
func (e *Engine) Resolver() *permission.Resolver {
	return e.resolver
}

func (e *Engine) mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		e.metricInc(MetricTokenRejected)
		return ErrInvalidToken
	}
}

// selectMembership picks the organisation context for a fresh session:
// the last-used valid membership, then the membership of the organisation
// the user created, then the first valid membership in scan order.
func (e *Engine) selectMembership(ctx context.Context, user User, memberships []Membership) (Membership, error) {
	valid := memberships[:0:0]
	for _, m := range memberships {
		if m.Valid() {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return Membership{}, ErrNoActiveOrganisation
	}

	if user.DefaultOrganisationID != "" {
		for _, m := range valid {
			if m.OrganisationID == user.DefaultOrganisationID {
				return m, nil
			}
		}
	}

	for _, m := range valid {
		org, err := e.store.GetOrganisation(ctx, m.OrganisationID)
		if err != nil {
			continue
		}
		if org.CreatedByID == user.ID {
			return m, nil
		}
	}

	return valid[0], nil
}

// mfaGateRequired asks the permission resolution engine whether the
// membership's organisation mandates MFA.
func (e *Engine) mfaGateRequired(ctx context.Context, membershipID string) (bool, error) {
	if e.config.MFA.GatePermission == "" {
		return false, nil
	}
	required, err := e.resolver.Has(ctx, membershipID, e.config.MFA.GatePermission)
	if err != nil {
		if errors.Is(err, permission.ErrUnknown) {
			return false, errors.Join(ErrConfiguration, err)
		}
		if errors.Is(err, permission.ErrMembershipInactive) {
			return false, ErrMembershipInactive
		}
		return false, err
	}
	return required, nil
}

// issueSessionTokens mints the final access and refresh pair. The refresh
// record is persisted before the pair is returned; a persistence failure
// fails the whole flow so no unlinked-but-valid refresh token escapes.
func (e *Engine) issueSessionTokens(ctx context.Context, user User, membership Membership) (*TokenPair, error) {
	access, err := e.tokens.Issue(user.ID, token.TypeAccess, token.Extra{
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshID := internal.NewTokenID()
	refresh, err := e.tokens.Issue(user.ID, token.TypeRefresh, token.Extra{
		TokenID:        refreshID,
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	if err := e.refreshStore.Add(ctx, refreshID, internal.HashToken(refresh), e.config.Token.RefreshTTL); err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// rememberOrganisation records the membership's organisation as the
// user's last-used one. Best effort; never fails the flow.
func (e *Engine) rememberOrganisation(ctx context.Context, userID, organisationID string) {
	if err := e.store.SetDefaultOrganisation(ctx, userID, organisationID); err != nil {
		log.Print("tenantauth: last-used organisation update failed")
	}
}

// sendMail hands mail to the mail collaborator fire-and-forget.
func (e *Engine) sendMail(ctx context.Context, mail Mail) {
	if e.mailer == nil {
		return
	}
	if err := e.mailer.Send(ctx, mail); err != nil {
		log.Print("tenantauth: mail send failed")
	}
}
