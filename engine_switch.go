package tenantauth

import (
	"context"

	"github.com/luminalhq/tenantauth/token"
)

var switchCodes = sessionCodes{
	success:       StatusSwitchSuccess,
	mfaRequired:   StatusSwitchMFARequired,
	mfaSetup:      StatusSwitchMFASetupRequired,
	successMetric: MetricSwitchSuccess,
	successEvent:  auditEventSwitchSuccess,
}

// SwitchOrganisation re-establishes the caller's session in another
// organisation they hold a valid membership in. The target organisation's
// MFA gate applies in full: a fresh challenge is required even when the
// current session already passed one elsewhere.
func (e *Engine) SwitchOrganisation(ctx context.Context, accessToken, organisationID string) (*LoginResult, error) {
	claims, err := e.tokens.Verify(accessToken, token.TypeAccess)
	if err != nil {
		return nil, e.mapTokenError(err)
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil || user.Deleted {
		return nil, ErrUnauthenticated
	}

	memberships, err := e.store.GetMembershipsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	for _, m := range memberships {
		if m.OrganisationID == organisationID && m.Valid() {
			return e.sessionForMembership(ctx, user, m, switchCodes)
		}
	}
	return nil, ErrNoActiveOrganisation
}
