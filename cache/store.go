package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the cache backend is unreachable. Callers are
// expected to degrade to direct store reads rather than fail the request.
var ErrUnavailable = errors.New("cache backend unavailable")

// Key builders. The key formats are an operational contract shared with
// other services and tooling; they must not change shape.

// UserGroupsKey caches the group-id set assigned to one organisation
// membership. Keyed by the membership id because group assignment is
// scoped to (user, organisation).
func UserGroupsKey(membershipID string) string {
	return "USER:" + membershipID + ":GROUPS"
}

// GroupPermissionsKey caches the permission-id set carried by one group.
func GroupPermissionsKey(groupID string) string {
	return "GROUP:" + groupID + ":PERMISSIONS"
}

// OrganisationKey caches an organisation snapshot.
func OrganisationKey(organisationID string) string {
	return "ORG:" + organisationID
}

// Store is the shared key-value cache for derived authorization data.
// Every entry is advisory: the relational store stays authoritative and
// entries are invalidated on each mutation of the data they derive from.
type Store struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewStore creates a cache store. ttl bounds every entry written through
// SetIDs/SetJSON; zero falls back to one hour.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{redis: client, ttl: ttl}
}

// GetIDs loads a cached id set. The second return reports a hit; a cached
// empty set is a hit, a missing key is not.
func (s *Store) GetIDs(ctx context.Context, key string) ([]string, bool, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// Corrupt entry: treat as a miss so the caller repopulates it.
		_ = s.redis.Del(ctx, key).Err()
		return nil, false, nil
	}
	return ids, true, nil
}

// SetIDs writes an id set under key with the store TTL.
func (s *Store) SetIDs(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetJSON loads a cached snapshot into out. Returns false on miss.
func (s *Store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = s.redis.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON writes a snapshot under key with the store TTL.
func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Invalidate removes the given keys. Removal is unconditional; the next
// read recomputes from the authoritative store.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
