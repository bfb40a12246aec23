package tenantauth

import (
	"context"
	"errors"

	"github.com/luminalhq/tenantauth/token"
)

// Logout retires the presented refresh token's server-side record.
// Expired tokens are accepted; the bearer only needs to be identified.
// Logging out an already-retired token is a no-op.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	claims, err := e.tokens.Verify(refreshToken, token.TypeRefresh, token.AllowExpired())
	if err != nil {
		return e.mapTokenError(err)
	}
	if claims.ID == "" {
		return nil
	}

	if _, err := e.refreshStore.Delete(ctx, claims.ID); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	e.emitAudit(auditEventLogout, true, claims.Subject, claims.OrganisationID(), nil, nil)
	return nil
}
