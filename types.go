package tenantauth

import "context"

// UserType classifies the actor a credential belongs to. Cookie names and
// token claims are namespaced by it so customer, admin, and
// collaboration-guest tokens never leak across contexts.
type UserType string

const (
	// UserTypeCustomer is the default tenant-facing actor.
	UserTypeCustomer UserType = "customer"
	// UserTypeAdmin is a back-office operator.
	UserTypeAdmin UserType = "admin"
	// UserTypeGuest is a collaboration guest with scoped access.
	UserTypeGuest UserType = "guest"
)

// MembershipStatus is the activity state of one organisation membership.
type MembershipStatus uint8

const (
	// MembershipActive memberships participate in authorization.
	MembershipActive MembershipStatus = iota
	// MembershipInactive memberships are always denied, even when stale
	// cached group data for them exists.
	MembershipInactive
)

// InviteStatus tracks whether the invitee has accepted a membership.
type InviteStatus uint8

const (
	// InviteInvited memberships are pending acceptance.
	InviteInvited InviteStatus = iota
	// InviteAccepted memberships have been claimed by their user.
	InviteAccepted
)

// User is the identity record held by the credential store. PasswordHash
// is empty for external-IdP users. Users are soft-deleted, never removed
// while tokens or memberships reference them.
type User struct {
	ID                    string
	Email                 string
	Phone                 string
	PasswordHash          string
	EmailVerified         bool
	PhoneVerified         bool
	UserType              UserType
	DefaultOrganisationID string // last-used organisation
	Deleted               bool
}

// Organisation is the tenant boundary. Subscription state lives with the
// subscription collaborator, not here.
type Organisation struct {
	ID          string
	Name        string
	CreatedByID string
	Deleted     bool
}

// Membership joins a user to an organisation. Authorization always
// resolves against exactly one membership, carried in the token claims.
type Membership struct {
	ID             string
	UserID         string
	OrganisationID string
	Status         MembershipStatus
	InviteStatus   InviteStatus
	Deleted        bool
}

// Valid reports whether the membership may carry a session.
func (m Membership) Valid() bool {
	return !m.Deleted && m.Status == MembershipActive && m.InviteStatus == InviteAccepted
}

// Group is a named role scoped to a user type; it bundles permissions and
// is assigned per membership.
type Group struct {
	ID       string
	Name     string
	UserType UserType
}

// Permission is an atomic capability, independent of organisation.
type Permission struct {
	ID   string
	Name string
}

// MFAFactor is a persisted TOTP factor for one (user, organisation) pair.
// Confirmed is set by the first successful OTP against the provisioning
// secret.
type MFAFactor struct {
	UserID         string
	OrganisationID string
	Secret         []byte
	Confirmed      bool
}

// CredentialStore is the relational source of truth for identities,
// memberships, groups, and permission grants. It is an external
// collaborator; tenantauth never owns its persistence.
type CredentialStore interface {
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
	SetDefaultOrganisation(ctx context.Context, userID, organisationID string) error

	GetOrganisation(ctx context.Context, organisationID string) (Organisation, error)
	GetMembership(ctx context.Context, membershipID string) (Membership, error)
	GetMembershipsByUser(ctx context.Context, userID string) ([]Membership, error)
	UpdateMembership(ctx context.Context, membership Membership) error

	GetGroupIDs(ctx context.Context, membershipID string) ([]string, error)
	GetGroupPermissionIDs(ctx context.Context, groupID string) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	GetMFAFactor(ctx context.Context, userID, organisationID string) (*MFAFactor, error)
	SaveMFAFactor(ctx context.Context, factor MFAFactor) error
}

// SubscriptionService exposes the billing collaborator as an opaque
// active-plan-item list plus per-item permission grants. The collaborator
// handles its own caching.
type SubscriptionService interface {
	GetActivePlanItems(ctx context.Context, organisationID string) ([]string, error)
	GetPlanPermissions(ctx context.Context, planItemID string) ([]string, error)
}

// Mail is one outbound message handed to the mail collaborator.
type Mail struct {
	To       string
	Template string
	Data     map[string]string
}

// Mailer delivers mail fire-and-forget: a delivery failure is logged and
// never fails the primary operation.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// ExternalIdentity is a verified identity claim handed back by an
// external IdP verifier.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier validates an external-IdP assertion (Google, SingPass,
// …) and returns the verified identity. The engine converts it into a
// session exactly as it would a password login.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (ExternalIdentity, error)
}

// TokenPair carries a final access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// MFAChallenge is returned instead of tokens when the target organisation
// gates on MFA. SecretBase32 and ProvisioningURI are set only when the
// factor still needs setup.
type MFAChallenge struct {
	ChallengeToken  string
	SecretBase32    string
	ProvisioningURI string
}

// LoginResult is the outcome of login, MFA completion, and organisation
// switching. Exactly one of Tokens and MFA is set on success.
type LoginResult struct {
	Code           StatusCode
	UserID         string
	MembershipID   string
	OrganisationID string
	Tokens         *TokenPair
	MFA            *MFAChallenge
}
