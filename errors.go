package tenantauth

import "errors"

var (
	// ErrInvalidToken is returned for bad signatures, wrong token types,
	// and wrong-environment tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is past exp and the flow
	// does not allow identifying-without-trusting-freshness.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnauthenticated is returned when no usable credential is
	// presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is returned when a credential is valid but the
	// effective permission set does not cover the operation. Never
	// conflated with ErrUnauthenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned by OTP lockout and resend caps.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound is returned when a referenced user, organisation, or
	// membership does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration is returned when a required permission name is
	// unknown to the catalog. A configuration error fails loudly instead
	// of silently denying.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidCredentials is returned for failed password checks.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoActiveOrganisation is returned when every membership of the
	// user is inactive; the flow never silently picks an inactive one.
	ErrNoActiveOrganisation = errors.New("no active organisation")
	// ErrMembershipInactive is returned when the organisation context of
	// an operation resolves to an inactive membership.
	ErrMembershipInactive = errors.New("organisation membership inactive")
	// ErrMFARequired is returned when an operation needs a completed MFA
	// step for the target organisation.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFACodeInvalid is returned for an OTP that does not verify.
	ErrMFACodeInvalid = errors.New("invalid mfa code")
	// ErrMFANotProvisioned is returned when an OTP arrives with neither a
	// persisted factor nor a cached provisioning secret.
	ErrMFANotProvisioned = errors.New("mfa factor not provisioned")
	// ErrMFAUnavailable is returned when the MFA backend is unreachable.
	ErrMFAUnavailable = errors.New("mfa backend unavailable")
	// ErrRefreshReuse is returned when a presented refresh token has
	// already been rotated away; exactly one of any set of concurrent
	// refresh calls wins.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrBackendUnavailable is returned when a required backend (store or
	// token tracking) is unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned when a dependency was never wired.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnknownProvider is returned for an identity provider name with
	// no registered verifier.
	ErrUnknownProvider = errors.New("unknown identity provider")
)
