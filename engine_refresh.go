package tenantauth

import (
	"context"
	"errors"

	"github.com/luminalhq/tenantauth/internal"
	"github.com/luminalhq/tenantauth/internal/stores"
	"github.com/luminalhq/tenantauth/token"
)

// Refresh rotates a refresh token: the presented token is retired and a
// new pair is issued in one atomic step. Presenting an already-rotated
// token fails with [ErrRefreshReuse]; of any set of concurrent calls
// holding the same token, exactly one obtains the new pair.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := e.tokens.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, e.mapTokenError(err)
	}
	if claims.ID == "" {
		e.metricInc(MetricTokenRejected)
		return nil, ErrInvalidToken
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil || user.Deleted {
		return nil, ErrUnauthenticated
	}
	membership, err := e.store.GetMembership(ctx, claims.OrganisationID())
	if err != nil || membership.UserID != user.ID || !membership.Valid() {
		return nil, ErrUnauthenticated
	}

	newID := internal.NewTokenID()
	newRefresh, err := e.tokens.Issue(user.ID, token.TypeRefresh, token.Extra{
		TokenID:        newID,
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}

	err = e.refreshStore.Rotate(
		ctx,
		claims.ID,
		internal.HashToken(refreshToken),
		newID,
		internal.HashToken(newRefresh),
		e.config.Token.RefreshTTL,
	)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrRefreshNotFound):
		e.metricInc(MetricRefreshReuse)
		e.emitAudit(auditEventRefreshReuse, false, user.ID, membership.OrganisationID, err, nil)
		return nil, ErrRefreshReuse
	case errors.Is(err, stores.ErrRefreshHashMismatch):
		e.metricInc(MetricTokenRejected)
		return nil, ErrInvalidToken
	default:
		return nil, errors.Join(ErrBackendUnavailable, err)
	}

	access, err := e.tokens.Issue(user.ID, token.TypeAccess, token.Extra{
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(auditEventRefreshSuccess, true, user.ID, membership.OrganisationID, nil, nil)
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}
