package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrProvisionNotFound reports a missing or expired provisioning
	// secret.
	ErrProvisionNotFound = errors.New("totp provisioning secret not found")
	// ErrProvisionBackend reports an unreachable provisioning backend.
	ErrProvisionBackend = errors.New("totp provisioning backend unavailable")
)

// TOTPProvisionStore caches not-yet-confirmed TOTP secrets. A secret
// lives here between setup and the first successful OTP, after which it
// is persisted as the membership's factor and removed from the cache.
type TOTPProvisionStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewTOTPProvisionStore creates a provisioning-secret store.
func NewTOTPProvisionStore(redisClient redis.UniversalClient, prefix string) *TOTPProvisionStore {
	if prefix == "" {
		prefix = "MFA:SETUP"
	}
	return &TOTPProvisionStore{redis: redisClient, prefix: prefix}
}

func (s *TOTPProvisionStore) key(userID, organisationID string) string {
	return s.prefix + ":" + userID + ":" + organisationID
}

// Save caches a provisioning secret, replacing any prior one.
func (s *TOTPProvisionStore) Save(ctx context.Context, userID, organisationID string, secret []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(userID, organisationID), secret, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionBackend, err)
	}
	return nil
}

// Get returns the cached secret. The secret stays cached on OTP failure
// so the user can retry within the TTL.
func (s *TOTPProvisionStore) Get(ctx context.Context, userID, organisationID string) ([]byte, error) {
	secret, err := s.redis.Get(ctx, s.key(userID, organisationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProvisionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProvisionBackend, err)
	}
	return secret, nil
}

// Delete removes the cached secret once the factor has been persisted.
func (s *TOTPProvisionStore) Delete(ctx context.Context, userID, organisationID string) error {
	if err := s.redis.Del(ctx, s.key(userID, organisationID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionBackend, err)
	}
	return nil
}
