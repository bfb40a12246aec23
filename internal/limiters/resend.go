package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrResendRateLimited reports that the resend cap has been reached
	// for the window.
	ErrResendRateLimited = errors.New("resend rate limited")
	// ErrResendBackend reports an unreachable resend-limiter backend.
	ErrResendBackend = errors.New("resend backend unavailable")
)

// ResendConfig holds thresholds for one resend limiter instance.
type ResendConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// ResendLimiter caps outbound mail resends (verification mails, password
// reset mails) per user within a fixed window.
type ResendLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	window      time.Duration
}

// NewResendLimiter creates a resend limiter with its own key prefix so
// verification and reset resends are counted independently.
func NewResendLimiter(redisClient redis.UniversalClient, prefix string, cfg ResendConfig) *ResendLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = 3
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	return &ResendLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: int64(max),
		window:      window,
	}
}

func (l *ResendLimiter) key(userID string) string {
	return l.prefix + ":" + userID
}

// Record counts one resend within the fixed window, failing with
// [ErrResendRateLimited] above the cap.
func (l *ResendLimiter) Record(ctx context.Context, userID string) error {
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResendBackend, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrResendBackend, err)
		}
	}
	if count > l.maxAttempts {
		return ErrResendRateLimited
	}
	return nil
}
