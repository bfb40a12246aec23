package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// sessionCodes parameterizes session establishment so login and
// organisation switching report their own status codes.
type sessionCodes struct {
	success       StatusCode
	mfaRequired   StatusCode
	mfaSetup      StatusCode
	successMetric MetricID
	successEvent  string
}

var loginCodes = sessionCodes{
	success:       StatusLoginSuccess,
	mfaRequired:   StatusLoginMFARequired,
	mfaSetup:      StatusLoginMFASetupRequired,
	successMetric: MetricLoginSuccess,
	successEvent:  auditEventLoginSuccess,
}

// Login authenticates an email and password pair and establishes a
// session in the user's selected organisation. When that organisation
// gates on MFA the result carries a challenge instead of tokens.
//
// Unknown emails, soft-deleted users, password mismatches, and users
// without a local password all fail with [ErrInvalidCredentials]; the
// caller learns nothing about which.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil || user.Deleted || user.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(auditEventLoginFailure, false, "", "", ErrInvalidCredentials, map[string]string{"reason": "unknown-user"})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil {
		log.Print("tenantauth: stored password hash unreadable")
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, map[string]string{"reason": "password-mismatch"})
		return nil, ErrInvalidCredentials
	}

	return e.establishSession(ctx, user, loginCodes)
}

// LoginWithProvider exchanges an external IdP assertion for a session.
// The identity must already exist in the credential store; no account is
// provisioned on the fly.
func (e *Engine) LoginWithProvider(ctx context.Context, provider, assertion string) (*LoginResult, error) {
	verifier, ok := e.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	identity, err := verifier.Verify(ctx, assertion)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(auditEventLoginFailure, false, "", "", err, map[string]string{"provider": provider})
		return nil, errors.Join(ErrUnauthenticated, err)
	}

	user, err := e.store.GetUserByEmail(ctx, identity.Email)
	if err != nil || user.Deleted {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(auditEventLoginFailure, false, "", "", ErrInvalidCredentials, map[string]string{"provider": provider, "reason": "unknown-user"})
		return nil, ErrInvalidCredentials
	}

	return e.establishSession(ctx, user, loginCodes)
}

// establishSession selects the organisation context, applies the MFA
// gate, and either issues the final token pair or returns a challenge.
func (e *Engine) establishSession(ctx context.Context, user User, codes sessionCodes) (*LoginResult, error) {
	memberships, err := e.store.GetMembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	membership, err := e.selectMembership(ctx, user, memberships)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(auditEventLoginFailure, false, user.ID, "", err, nil)
		return nil, err
	}

	return e.sessionForMembership(ctx, user, membership, codes)
}

// sessionForMembership finishes session establishment against one
// already-selected membership.
func (e *Engine) sessionForMembership(ctx context.Context, user User, membership Membership, codes sessionCodes) (*LoginResult, error) {
	required, err := e.mfaGateRequired(ctx, membership.ID)
	if err != nil {
		return nil, err
	}
	if required {
		return e.challengeMFA(ctx, user, membership, codes)
	}

	tokens, err := e.issueSessionTokens(ctx, user, membership)
	if err != nil {
		return nil, err
	}
	e.rememberOrganisation(ctx, user.ID, membership.OrganisationID)
	e.metricInc(codes.successMetric)
	e.emitAudit(codes.successEvent, true, user.ID, membership.OrganisationID, nil, nil)

	return &LoginResult{
		Code:           codes.success,
		UserID:         user.ID,
		MembershipID:   membership.ID,
		OrganisationID: membership.OrganisationID,
		Tokens:         tokens,
	}, nil
}
