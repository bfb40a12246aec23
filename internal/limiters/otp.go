package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOTPMaxAttempts = 5
	defaultOTPLockout     = 10 * time.Minute
)

var (
	// ErrOTPRateLimited reports that the failed-attempt cap has been
	// reached for the lockout window.
	ErrOTPRateLimited = errors.New("otp attempts rate limited")
	// ErrOTPBackend reports an unreachable lockout backend.
	ErrOTPBackend = errors.New("otp lockout backend unavailable")
)

// OTPConfig holds thresholds for the OTP lockout limiter.
type OTPConfig struct {
	MaxAttempts int
	Lockout     time.Duration
}

// OTPLimiter bounds consecutive failed OTP verifications per
// (user, organisation). The counter is a TTL-bounded monotonic increment;
// once the cap is reached, verification fails fast until a success clears
// it or the TTL elapses.
type OTPLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	lockout     time.Duration
}

// NewOTPLimiter creates an OTP lockout limiter. Zero-value fields in cfg
// fall back to defaults (5 attempts / 10 minutes).
func NewOTPLimiter(redisClient redis.UniversalClient, cfg OTPConfig) *OTPLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultOTPMaxAttempts
	}
	lockout := cfg.Lockout
	if lockout <= 0 {
		lockout = defaultOTPLockout
	}
	return &OTPLimiter{redis: redisClient, maxAttempts: int64(max), lockout: lockout}
}

func (l *OTPLimiter) key(userID, organisationID string) string {
	return "MFA:ATTEMPTS:" + userID + ":" + organisationID
}

// Check fails fast with [ErrOTPRateLimited] once the cap is reached,
// regardless of whether the next OTP would be correct.
func (l *OTPLimiter) Check(ctx context.Context, userID, organisationID string) error {
	count, err := l.redis.Get(ctx, l.key(userID, organisationID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	if count >= l.maxAttempts {
		return ErrOTPRateLimited
	}
	return nil
}

// RecordFailure increments the counter, arming the TTL on first failure.
func (l *OTPLimiter) RecordFailure(ctx context.Context, userID, organisationID string) error {
	count, err := l.redis.Incr(ctx, l.key(userID, organisationID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID, organisationID), l.lockout).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrOTPBackend, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrOTPRateLimited
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *OTPLimiter) Reset(ctx context.Context, userID, organisationID string) error {
	if err := l.redis.Del(ctx, l.key(userID, organisationID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	return nil
}
