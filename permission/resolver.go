package permission

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/luminalhq/tenantauth/cache"
)

// ErrMembershipInactive reports that the membership under resolution is
// not Active. Authorization against an inactive membership always fails,
// regardless of any cached group data.
var ErrMembershipInactive = errors.New("organisation membership inactive")

// Operation selects how required permissions combine during a check.
type Operation int

const (
	// OpAND requires every required permission to be present.
	OpAND Operation = iota
	// OpOR requires at least one required permission to be present.
	OpOR
)

// Membership is the resolver's view of one organisation membership.
type Membership struct {
	ID             string
	UserID         string
	OrganisationID string
	Active         bool
}

// MembershipSource reads membership, group assignment, and group
// permission rows from the authoritative store.
type MembershipSource interface {
	GetMembership(ctx context.Context, membershipID string) (Membership, error)
	GetGroupIDs(ctx context.Context, membershipID string) ([]string, error)
	GetGroupPermissionIDs(ctx context.Context, groupID string) ([]string, error)
}

// PlanSource exposes the subscription collaborator: the active plan items
// of an organisation and the permission grants each item carries.
type PlanSource interface {
	GetActivePlanItems(ctx context.Context, organisationID string) ([]string, error)
	GetPlanPermissionIDs(ctx context.Context, planItemID string) ([]string, error)
}

// Result is the verdict of one permission check.
type Result struct {
	Authorized bool
	// MatchedPermissions holds the tracked (non-gating) permission names
	// found in the effective set, for downstream business-limit logic.
	MatchedPermissions []string
}

// Resolver computes effective permission sets for organisation
// memberships: the union of group-granted permissions intersected with
// the plan-granted permissions, falling back to a fixed default set when
// the intersection is empty.
type Resolver struct {
	catalog     *Catalog
	cache       *cache.Store
	memberships MembershipSource
	plans       PlanSource
	defaultIDs  []string
}

// NewResolver wires a resolver. defaults names the minimal permission set
// granted when group and plan permissions do not overlap; every default
// must exist in the catalog.
func NewResolver(
	catalog *Catalog,
	cacheStore *cache.Store,
	memberships MembershipSource,
	plans PlanSource,
	defaults []string,
) (*Resolver, error) {
	if catalog == nil || memberships == nil || plans == nil {
		return nil, errors.New("catalog, membership source, and plan source required")
	}
	if len(defaults) == 0 {
		return nil, errors.New("default permission set cannot be empty")
	}
	defaultIDs, err := catalog.IDs(defaults)
	if err != nil {
		return nil, fmt.Errorf("default permission set: %w", err)
	}
	return &Resolver{
		catalog:     catalog,
		cache:       cacheStore,
		memberships: memberships,
		plans:       plans,
		defaultIDs:  defaultIDs,
	}, nil
}

// Verify checks required permission names against the membership's
// effective set using op, and independently reports which tracked names
// the effective set carries. A required or tracked name outside the
// catalog fails with [ErrUnknown].
func (r *Resolver) Verify(
	ctx context.Context,
	membershipID string,
	required []string,
	op Operation,
	tracked []string,
) (Result, error) {
	requiredIDs, err := r.catalog.IDs(required)
	if err != nil {
		return Result{}, err
	}
	trackedIDs, err := r.catalog.IDs(tracked)
	if err != nil {
		return Result{}, err
	}

	effective, err := r.Effective(ctx, membershipID)
	if err != nil {
		return Result{}, err
	}

	authorized := false
	switch op {
	case OpAND:
		authorized = true
		for _, id := range requiredIDs {
			if _, ok := effective[id]; !ok {
				authorized = false
				break
			}
		}
	case OpOR:
		for _, id := range requiredIDs {
			if _, ok := effective[id]; ok {
				authorized = true
				break
			}
		}
	default:
		return Result{}, errors.New("invalid permission operation")
	}

	var matched []string
	for i, id := range trackedIDs {
		if _, ok := effective[id]; ok {
			matched = append(matched, tracked[i])
		}
	}

	return Result{Authorized: authorized, MatchedPermissions: matched}, nil
}

// Has reports whether the membership's effective set carries the single
// named permission.
func (r *Resolver) Has(ctx context.Context, membershipID, name string) (bool, error) {
	res, err := r.Verify(ctx, membershipID, []string{name}, OpOR, nil)
	if err != nil {
		return false, err
	}
	return res.Authorized, nil
}

// Effective computes the effective permission-id set for one membership.
// Membership status is always re-read from the store; group and
// group-permission sets are cache-first with store fallback.
func (r *Resolver) Effective(ctx context.Context, membershipID string) (map[string]struct{}, error) {
	membership, err := r.memberships.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if !membership.Active {
		return nil, ErrMembershipInactive
	}

	groupIDs, err := r.groupIDs(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	groupPerms := make(map[string]struct{})
	for _, groupID := range groupIDs {
		permIDs, err := r.groupPermissionIDs(ctx, groupID)
		if err != nil {
			return nil, err
		}
		for _, id := range permIDs {
			groupPerms[id] = struct{}{}
		}
	}

	planPerms, err := r.planPermissionIDs(ctx, membership.OrganisationID)
	if err != nil {
		return nil, err
	}

	effective := make(map[string]struct{})
	for id := range groupPerms {
		if _, ok := planPerms[id]; ok {
			effective[id] = struct{}{}
		}
	}
	if len(effective) == 0 {
		// Deliberate policy: an empty intersection grants the fixed
		// baseline set instead of denying all access.
		for _, id := range r.defaultIDs {
			effective[id] = struct{}{}
		}
	}

	return effective, nil
}

func (r *Resolver) groupIDs(ctx context.Context, membershipID string) ([]string, error) {
	key := cache.UserGroupsKey(membershipID)
	if r.cache != nil {
		ids, hit, err := r.cache.GetIDs(ctx, key)
		if err != nil {
			log.Print("tenantauth: group cache read failed, falling back to store")
		} else if hit {
			return ids, nil
		}
	}

	ids, err := r.memberships.GetGroupIDs(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.SetIDs(ctx, key, ids); err != nil {
			log.Print("tenantauth: group cache write failed")
		}
	}
	return ids, nil
}

func (r *Resolver) groupPermissionIDs(ctx context.Context, groupID string) ([]string, error) {
	key := cache.GroupPermissionsKey(groupID)
	if r.cache != nil {
		ids, hit, err := r.cache.GetIDs(ctx, key)
		if err != nil {
			log.Print("tenantauth: group permission cache read failed, falling back to store")
		} else if hit {
			return ids, nil
		}
	}

	ids, err := r.memberships.GetGroupPermissionIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.SetIDs(ctx, key, ids); err != nil {
			log.Print("tenantauth: group permission cache write failed")
		}
	}
	return ids, nil
}

func (r *Resolver) planPermissionIDs(ctx context.Context, organisationID string) (map[string]struct{}, error) {
	items, err := r.plans.GetActivePlanItems(ctx, organisationID)
	if err != nil {
		return nil, err
	}

	perms := make(map[string]struct{})
	for _, item := range items {
		ids, err := r.plans.GetPlanPermissionIDs(ctx, item)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			perms[id] = struct{}{}
		}
	}
	return perms, nil
}

// InvalidateMembership drops the cached group set for one membership.
// Called after every group-assignment mutation.
func (r *Resolver) InvalidateMembership(ctx context.Context, membershipID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, cache.UserGroupsKey(membershipID))
}

// InvalidateGroup drops the cached permission set for one group. Called
// after every group-permission mutation.
func (r *Resolver) InvalidateGroup(ctx context.Context, groupID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, cache.GroupPermissionsKey(groupID))
}
