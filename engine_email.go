package tenantauth

import (
	"context"
	"errors"

	"github.com/luminalhq/tenantauth/internal/limiters"
	"github.com/luminalhq/tenantauth/token"
)

const (
	mailTemplateVerifyEmail   = "email-verification"
	mailTemplatePasswordReset = "password-reset"
	mailTemplateInvite        = "organisation-invite"
)

// SendEmailVerification mails a verification token to the address.
// Unknown or already-verified addresses return nil so the caller cannot
// probe for account existence. Resends are capped per user per window.
func (e *Engine) SendEmailVerification(ctx context.Context, email string) error {
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil || user.Deleted || user.EmailVerified {
		return nil
	}

	if err := e.verifyResends.Record(ctx, user.ID); err != nil {
		if errors.Is(err, limiters.ErrResendRateLimited) {
			e.metricInc(MetricResendRateLimited)
			return ErrRateLimited
		}
		return errors.Join(ErrBackendUnavailable, err)
	}

	tok, err := e.tokens.Issue(user.ID, token.TypeVerifyEmail, token.Extra{
		UserType: string(user.UserType),
	}, e.config.Token.SingleUseTTL)
	if err != nil {
		return err
	}

	e.sendMail(ctx, Mail{
		To:       user.Email,
		Template: mailTemplateVerifyEmail,
		Data:     map[string]string{"token": tok},
	})
	return nil
}

// ConfirmEmailVerification marks the token's subject as email-verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verifyToken string) error {
	claims, err := e.tokens.Verify(verifyToken, token.TypeVerifyEmail)
	if err != nil {
		return e.mapTokenError(err)
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil || user.Deleted {
		return ErrUnauthenticated
	}
	if user.EmailVerified {
		return nil
	}

	if err := e.store.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	e.emitAudit(auditEventEmailVerified, true, user.ID, "", nil, nil)
	return nil
}

// RequestPasswordReset mails a reset token to the address. Unknown
// addresses return nil. Resends are capped per user per window.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil || user.Deleted {
		return nil
	}

	if err := e.resetResends.Record(ctx, user.ID); err != nil {
		if errors.Is(err, limiters.ErrResendRateLimited) {
			e.metricInc(MetricResendRateLimited)
			return ErrRateLimited
		}
		return errors.Join(ErrBackendUnavailable, err)
	}

	tok, err := e.tokens.Issue(user.ID, token.TypeUpdatePassword, token.Extra{
		UserType: string(user.UserType),
	}, e.config.Token.SingleUseTTL)
	if err != nil {
		return err
	}

	e.sendMail(ctx, Mail{
		To:       user.Email,
		Template: mailTemplatePasswordReset,
		Data:     map[string]string{"token": tok},
	})
	return nil
}

// ResetPassword replaces the subject's password hash using a valid
// update-password token.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, plaintext string) error {
	claims, err := e.tokens.Verify(resetToken, token.TypeUpdatePassword)
	if err != nil {
		return e.mapTokenError(err)
	}
	if len(plaintext) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil || user.Deleted {
		return ErrUnauthenticated
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	e.emitAudit(auditEventPasswordReset, true, user.ID, "", nil, nil)
	return nil
}

// InviteToOrganisation mails an invite token for a pending membership.
// The membership row must already exist with its invite unaccepted.
func (e *Engine) InviteToOrganisation(ctx context.Context, membershipID string) error {
	membership, err := e.store.GetMembership(ctx, membershipID)
	if err != nil {
		return errors.Join(ErrNotFound, err)
	}
	if membership.Deleted || membership.InviteStatus != InviteInvited {
		return ErrNotFound
	}

	user, err := e.store.GetUserByID(ctx, membership.UserID)
	if err != nil || user.Deleted {
		return errors.Join(ErrNotFound, err)
	}

	tok, err := e.tokens.Issue(user.ID, token.TypeOrganisationInvite, token.Extra{
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.Token.SingleUseTTL)
	if err != nil {
		return err
	}

	e.sendMail(ctx, Mail{
		To:       user.Email,
		Template: mailTemplateInvite,
		Data:     map[string]string{"token": tok},
	})
	return nil
}

// AcceptInvite flips the token's membership to accepted. Accepting an
// already-accepted invite is a no-op.
func (e *Engine) AcceptInvite(ctx context.Context, inviteToken string) error {
	claims, err := e.tokens.Verify(inviteToken, token.TypeOrganisationInvite)
	if err != nil {
		return e.mapTokenError(err)
	}

	membership, err := e.store.GetMembership(ctx, claims.OrganisationID())
	if err != nil || membership.Deleted || membership.UserID != claims.Subject {
		return ErrInvalidToken
	}
	if membership.InviteStatus == InviteAccepted {
		return nil
	}

	membership.InviteStatus = InviteAccepted
	if err := e.store.UpdateMembership(ctx, membership); err != nil {
		return err
	}
	if err := e.resolver.InvalidateMembership(ctx, membership.ID); err != nil {
		return err
	}
	e.emitAudit(auditEventInviteAccepted, true, membership.UserID, membership.OrganisationID, nil, nil)
	return nil
}

// IssueDownloadToken mints a short-lived token granting access to one
// named artifact, bound to the access-token bearer.
func (e *Engine) IssueDownloadToken(accessToken, resource string) (string, error) {
	session, err := e.VerifyAccessToken(accessToken)
	if err != nil {
		return "", err
	}
	if resource == "" {
		return "", errors.New("download resource required")
	}

	return e.tokens.Issue(session.UserID, token.TypeDownload, token.Extra{
		UserType:       string(session.UserType),
		OrganisationID: session.MembershipID,
		Resource:       resource,
	}, e.config.Token.DownloadTTL)
}

// VerifyDownloadToken checks a download token against the artifact being
// served. A valid token for a different artifact fails with
// [ErrUnauthorized].
func (e *Engine) VerifyDownloadToken(downloadToken, resource string) (Session, error) {
	claims, err := e.tokens.Verify(downloadToken, token.TypeDownload)
	if err != nil {
		return Session{}, e.mapTokenError(err)
	}
	if claims.Resource == "" || claims.Resource != resource {
		return Session{}, ErrUnauthorized
	}
	return Session{
		UserID:       claims.Subject,
		UserType:     UserType(claims.UserType),
		MembershipID: claims.OrganisationID(),
	}, nil
}
