package tenantauth

import (
	"context"
	"encoding/base32"
	"errors"
	"log"
	"time"

	"github.com/luminalhq/tenantauth/internal/limiters"
	"github.com/luminalhq/tenantauth/internal/stores"
	"github.com/luminalhq/tenantauth/token"
)

// challengeMFA issues an mfa-challenge token instead of a session. When
// the membership's organisation has no confirmed factor yet, a
// provisioning secret is cached and returned exactly once alongside the
// challenge.
func (e *Engine) challengeMFA(ctx context.Context, user User, membership Membership, codes sessionCodes) (*LoginResult, error) {
	challenge, err := e.tokens.Issue(user.ID, token.TypeMFAChallenge, token.Extra{
		UserType:       string(user.UserType),
		OrganisationID: membership.ID,
	}, e.config.MFA.ChallengeTTL)
	if err != nil {
		return nil, err
	}

	factor, err := e.store.GetMFAFactor(ctx, user.ID, membership.OrganisationID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginMFARequired)
	e.emitAudit(auditEventMFARequired, true, user.ID, membership.OrganisationID, nil, nil)

	if factor != nil && factor.Confirmed {
		return &LoginResult{
			Code:           codes.mfaRequired,
			UserID:         user.ID,
			MembershipID:   membership.ID,
			OrganisationID: membership.OrganisationID,
			MFA:            &MFAChallenge{ChallengeToken: challenge},
		}, nil
	}

	secret, err := e.provisionSecret(ctx, user.ID, membership.OrganisationID)
	if err != nil {
		return nil, err
	}
	secretBase32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret)

	return &LoginResult{
		Code:           codes.mfaSetup,
		UserID:         user.ID,
		MembershipID:   membership.ID,
		OrganisationID: membership.OrganisationID,
		MFA: &MFAChallenge{
			ChallengeToken:  challenge,
			SecretBase32:    secretBase32,
			ProvisioningURI: e.totp.ProvisionURI(secretBase32, user.Email),
		},
	}, nil
}

// provisionSecret returns the cached provisioning secret for the pair,
// minting and caching a fresh one when none exists. Reusing a live
// secret keeps an authenticator enrolled mid-setup valid across login
// retries.
func (e *Engine) provisionSecret(ctx context.Context, userID, organisationID string) ([]byte, error) {
	secret, err := e.provisionStore.Get(ctx, userID, organisationID)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, stores.ErrProvisionNotFound) {
		return nil, errors.Join(ErrMFAUnavailable, err)
	}

	secret, _, err = e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.provisionStore.Save(ctx, userID, organisationID, secret, e.config.MFA.ProvisionTTL); err != nil {
		return nil, errors.Join(ErrMFAUnavailable, err)
	}
	return secret, nil
}

// CompleteMFALogin exchanges a challenge token plus a valid OTP for the
// final token pair. The first valid OTP against a provisioning secret
// confirms the factor. Consecutive failures lock the pair out for the
// configured window.
func (e *Engine) CompleteMFALogin(ctx context.Context, challengeToken, otp string) (*LoginResult, error) {
	claims, err := e.tokens.Verify(challengeToken, token.TypeMFAChallenge)
	if err != nil {
		return nil, e.mapTokenError(err)
	}

	membership, err := e.store.GetMembership(ctx, claims.OrganisationID())
	if err != nil || membership.UserID != claims.Subject || !membership.Valid() {
		return nil, ErrInvalidToken
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil || user.Deleted {
		return nil, ErrUnauthenticated
	}

	if err := e.verifyOTP(ctx, user, membership, otp); err != nil {
		return nil, err
	}

	tokens, err := e.issueSessionTokens(ctx, user, membership)
	if err != nil {
		return nil, err
	}
	e.rememberOrganisation(ctx, user.ID, membership.OrganisationID)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(auditEventLoginSuccess, true, user.ID, membership.OrganisationID, nil, map[string]string{"mfa": "true"})

	return &LoginResult{
		Code:           StatusLoginSuccess,
		UserID:         user.ID,
		MembershipID:   membership.ID,
		OrganisationID: membership.OrganisationID,
		Tokens:         tokens,
	}, nil
}

// verifyOTP checks one OTP against the confirmed factor, or against the
// cached provisioning secret when setup is still pending. A pending
// secret survives failed attempts so the user can retry the same
// enrollment; it is consumed on success.
func (e *Engine) verifyOTP(ctx context.Context, user User, membership Membership, otp string) error {
	if err := e.otpLimiter.Check(ctx, user.ID, membership.OrganisationID); err != nil {
		if errors.Is(err, limiters.ErrOTPRateLimited) {
			e.metricInc(MetricMFARateLimited)
			e.emitAudit(auditEventMFARateLimited, false, user.ID, membership.OrganisationID, err, nil)
			return ErrRateLimited
		}
		return errors.Join(ErrMFAUnavailable, err)
	}

	secret, pending, err := e.factorSecret(ctx, user.ID, membership.OrganisationID)
	if err != nil {
		return err
	}

	ok, err := e.totp.VerifyCode(secret, otp, time.Now())
	if err != nil {
		ok = false
	}
	if !ok {
		if err := e.otpLimiter.RecordFailure(ctx, user.ID, membership.OrganisationID); err != nil {
			if errors.Is(err, limiters.ErrOTPRateLimited) {
				e.metricInc(MetricMFARateLimited)
				e.emitAudit(auditEventMFARateLimited, false, user.ID, membership.OrganisationID, err, nil)
				return ErrRateLimited
			}
			log.Print("tenantauth: otp failure count update failed")
		}
		e.metricInc(MetricMFAFailure)
		e.emitAudit(auditEventMFAFailure, false, user.ID, membership.OrganisationID, ErrMFACodeInvalid, nil)
		return ErrMFACodeInvalid
	}

	if pending {
		if err := e.store.SaveMFAFactor(ctx, MFAFactor{
			UserID:         user.ID,
			OrganisationID: membership.OrganisationID,
			Secret:         secret,
			Confirmed:      true,
		}); err != nil {
			return err
		}
		if err := e.provisionStore.Delete(ctx, user.ID, membership.OrganisationID); err != nil {
			log.Print("tenantauth: provisioning secret cleanup failed")
		}
	}

	if err := e.otpLimiter.Reset(ctx, user.ID, membership.OrganisationID); err != nil {
		log.Print("tenantauth: otp failure count reset failed")
	}
	e.metricInc(MetricMFASuccess)
	e.emitAudit(auditEventMFASuccess, true, user.ID, membership.OrganisationID, nil, nil)
	return nil
}

// factorSecret returns the TOTP secret to verify against and whether it
// is an unconfirmed provisioning secret.
func (e *Engine) factorSecret(ctx context.Context, userID, organisationID string) ([]byte, bool, error) {
	factor, err := e.store.GetMFAFactor(ctx, userID, organisationID)
	if err != nil {
		return nil, false, err
	}
	if factor != nil && factor.Confirmed {
		return factor.Secret, false, nil
	}

	secret, err := e.provisionStore.Get(ctx, userID, organisationID)
	if err != nil {
		if errors.Is(err, stores.ErrProvisionNotFound) {
			return nil, false, ErrMFANotProvisioned
		}
		return nil, false, errors.Join(ErrMFAUnavailable, err)
	}
	return secret, true, nil
}
