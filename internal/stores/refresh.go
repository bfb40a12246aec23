package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshNotFound reports a refresh record that does not exist or
	// has already been rotated away.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshHashMismatch reports a presented token whose hash differs
	// from the tracked one.
	ErrRefreshHashMismatch = errors.New("refresh token hash mismatch")
	// ErrRefreshBackend reports an unreachable refresh backend.
	ErrRefreshBackend = errors.New("refresh backend unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// Rotation compares the stored hash against the presented one and, only
// on match, deletes the old record and inserts the new one. Running as a
// single script keeps rotation atomic per lineage: of two concurrent
// refresh calls holding the same token, the second finds the record gone.
const rotateRefreshScript = `
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
if stored ~= ARGV[1] then
  return 1
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RefreshStore tracks issued refresh tokens server-side in hashed form,
// keyed by token id. The signed token itself is never stored.
type RefreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshStore creates a refresh-token store.
func NewRefreshStore(redisClient redis.UniversalClient, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = "REFRESH"
	}
	return &RefreshStore{redis: redisClient, prefix: prefix}
}

func (s *RefreshStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Add records a freshly issued refresh token by id and hash.
func (s *RefreshStore) Add(ctx context.Context, tokenID string, hash [32]byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(tokenID), string(hash[:]), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshBackend, err)
	}
	return nil
}

// Verify checks that tokenID is tracked and carries the presented hash.
func (s *RefreshStore) Verify(ctx context.Context, tokenID string, hash [32]byte) error {
	stored, err := s.redis.Get(ctx, s.key(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrRefreshNotFound
		}
		return fmt.Errorf("%w: %v", ErrRefreshBackend, err)
	}
	if len(stored) != len(hash) || string(stored) != string(hash[:]) {
		return ErrRefreshHashMismatch
	}
	return nil
}

// Rotate atomically replaces the record for oldID with a record for
// newID, failing when oldID is gone or the presented hash does not match.
// At most one of any set of concurrent calls holding the same token
// succeeds.
func (s *RefreshStore) Rotate(
	ctx context.Context,
	oldID string,
	providedHash [32]byte,
	newID string,
	newHash [32]byte,
	ttl time.Duration,
) error {
	status, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(oldID), s.key(newID)},
		string(providedHash[:]),
		string(newHash[:]),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshBackend, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrRefreshNotFound
	case rotateStatusMismatch:
		return ErrRefreshHashMismatch
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrRefreshBackend, status)
	}
}

// Delete removes the record for tokenID, reporting whether it existed.
func (s *RefreshStore) Delete(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRefreshBackend, err)
	}
	return n > 0, nil
}
