package tenantauth

import "errors"

// StatusCode is the structured client-visible outcome of a flow. A single
// HTTP 200 covers several distinct outcomes (tokens issued, MFA required,
// MFA setup required), so results carry one of these codes.
type StatusCode string

const (
	// StatusLoginSuccess reports final access and refresh tokens issued.
	StatusLoginSuccess StatusCode = "LOGIN-001"
	// StatusLoginInvalidCredentials reports a failed credential check.
	StatusLoginInvalidCredentials StatusCode = "LOGIN-002"
	// StatusLoginMFARequired reports an MFA challenge against an already
	// provisioned factor.
	StatusLoginMFARequired StatusCode = "LOGIN-003"
	// StatusLoginMFASetupRequired reports an MFA challenge plus a fresh
	// provisioning secret: the organisation requires MFA and the user has
	// no factor yet.
	StatusLoginMFASetupRequired StatusCode = "LOGIN-004"
	// StatusLoginNoActiveOrganisation reports that every membership of
	// the user is inactive.
	StatusLoginNoActiveOrganisation StatusCode = "LOGIN-005"

	// StatusSwitchSuccess reports tokens re-issued for the target
	// organisation.
	StatusSwitchSuccess StatusCode = "SWITCH-001"
	// StatusSwitchMFARequired reports that the target organisation gates
	// on MFA; the switch completes through the MFA flow.
	StatusSwitchMFARequired StatusCode = "SWITCH-003"
	// StatusSwitchMFASetupRequired reports MFA setup needed for the
	// target organisation.
	StatusSwitchMFASetupRequired StatusCode = "SWITCH-004"
)

// StatusForError maps a login-flow error to its structured status code
// for transports that report these outcomes in a body instead of an
// error channel. The second return is false for errors with no code.
func StatusForError(err error) (StatusCode, bool) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return StatusLoginInvalidCredentials, true
	case errors.Is(err, ErrNoActiveOrganisation):
		return StatusLoginNoActiveOrganisation, true
	}
	return "", false
}
