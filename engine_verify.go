package tenantauth

import (
	"context"
	"errors"

	"github.com/luminalhq/tenantauth/permission"
	"github.com/luminalhq/tenantauth/token"
)

// Session is the decoded identity of an access-token bearer.
type Session struct {
	UserID       string
	UserType     UserType
	MembershipID string
}

// VerifyAccessToken checks an access token's signature, expiry, type, and
// environment tag and returns the session it carries. No store reads
// happen here; membership status is enforced at permission-check time.
func (e *Engine) VerifyAccessToken(accessToken string) (Session, error) {
	claims, err := e.tokens.Verify(accessToken, token.TypeAccess)
	if err != nil {
		return Session{}, e.mapTokenError(err)
	}
	return Session{
		UserID:       claims.Subject,
		UserType:     UserType(claims.UserType),
		MembershipID: claims.OrganisationID(),
	}, nil
}

// Authorize verifies the access token and checks the required permission
// names against the bearer's effective set. On denial the error is
// [ErrUnauthorized]; the result still reports any tracked permissions
// found.
func (e *Engine) Authorize(
	ctx context.Context,
	accessToken string,
	required []string,
	op permission.Operation,
	tracked []string,
) (Session, permission.Result, error) {
	session, err := e.VerifyAccessToken(accessToken)
	if err != nil {
		return Session{}, permission.Result{}, err
	}
	if session.MembershipID == "" {
		return Session{}, permission.Result{}, ErrInvalidToken
	}

	result, err := e.resolver.Verify(ctx, session.MembershipID, required, op, tracked)
	if err != nil {
		switch {
		case errors.Is(err, permission.ErrUnknown):
			return session, permission.Result{}, errors.Join(ErrConfiguration, err)
		case errors.Is(err, permission.ErrMembershipInactive):
			e.metricInc(MetricPermissionDenied)
			e.emitAudit(auditEventPermissionDenied, false, session.UserID, "", ErrMembershipInactive, nil)
			return session, permission.Result{}, ErrMembershipInactive
		default:
			return session, permission.Result{}, err
		}
	}

	if !result.Authorized {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(auditEventPermissionDenied, false, session.UserID, "", ErrUnauthorized, map[string]string{"membership": session.MembershipID})
		return session, result, ErrUnauthorized
	}

	e.metricInc(MetricPermissionAllowed)
	return session, result, nil
}

// HasPermission reports whether the access-token bearer's effective set
// carries the single named permission.
func (e *Engine) HasPermission(ctx context.Context, accessToken, name string) (bool, error) {
	_, _, err := e.Authorize(ctx, accessToken, []string{name}, permission.OpAND, nil)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
