package lock

import (
	"context"
	"errors"
	"time"

	"rentkar/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// releaseScript deletes the lease only when the caller still owns it, so a
// lease that outlived its TTL cannot be destroyed out from under the next
// holder.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

var (
	// ErrLockBusy means the lease could not be acquired within the retry
	// schedule. Store errors during acquisition surface as ErrLockBusy too.
	ErrLockBusy = errors.New("unable to acquire lock: resource is busy")

	// ErrNotHeld means the lease expired (or was never held) before release.
	ErrNotHeld = errors.New("lock not held by caller")
)

// Client is the subset of redis commands the lock manager uses.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// Locker hands out short-lived mutual-exclusion leases keyed by logical
// resource name.
type Locker interface {
	Acquire(ctx context.Context, key string, lease time.Duration, maxAttempts int) (string, error)
	Release(ctx context.Context, key, token string) error
	WithLock(ctx context.Context, key string, lease time.Duration, fn func(ctx context.Context) error) error
	Info(ctx context.Context, key string) (Info, error)
}

// Info describes the current state of a lease key.
type Info struct {
	Locked bool          `json:"locked"`
	TTL    time.Duration `json:"ttl,omitempty"`
}

type RedisLocker struct {
	client       Client
	log          *logger.Logger
	retryBackoff time.Duration
	maxAttempts  int
}

func NewRedisLocker(client Client, log *logger.Logger, retryBackoff time.Duration, maxAttempts int) *RedisLocker {
	if retryBackoff <= 0 {
		retryBackoff = 100 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RedisLocker{
		client:       client,
		log:          log,
		retryBackoff: retryBackoff,
		maxAttempts:  maxAttempts,
	}
}

// Acquire attempts a conditional set-if-absent with a per-attempt unique
// owner token, retrying with linearly increasing backoff between attempts.
// It returns the owner token on success.
func (l *RedisLocker) Acquire(ctx context.Context, key string, lease time.Duration, maxAttempts int) (string, error) {
	token := uuid.NewString()
	lockKey := lockPrefix + key

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, lockKey, token, lease).Result()
		if err != nil {
			l.log.Warn("Lock store error during acquire", "key", key, "attempt", attempt, "error", err)
		} else if ok {
			l.log.Debug("Lock acquired", "key", key, "attempt", attempt)
			return token, nil
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.retryBackoff * time.Duration(attempt)):
			}
		}
	}

	l.log.Warn("Failed to acquire lock", "key", key, "attempts", maxAttempts)
	return "", ErrLockBusy
}

// Release destroys the lease via compare-and-delete on the owner token.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{lockPrefix + key}, token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	l.log.Debug("Lock released", "key", key)
	return nil
}

// WithLock acquires the lease, runs fn, and releases on every exit path.
// The release uses a context detached from cancellation so an aborted
// request still cleans up its lease.
func (l *RedisLocker) WithLock(ctx context.Context, key string, lease time.Duration, fn func(ctx context.Context) error) error {
	token, err := l.Acquire(ctx, key, lease, l.maxAttempts)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx, key, token); err != nil {
			l.log.Warn("Failed to release lock", "key", key, "error", err)
		}
	}()

	return fn(ctx)
}

func (l *RedisLocker) Info(ctx context.Context, key string) (Info, error) {
	lockKey := lockPrefix + key

	exists, err := l.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return Info{}, err
	}
	if exists == 0 {
		return Info{}, nil
	}

	ttl, err := l.client.PTTL(ctx, lockKey).Result()
	if err != nil {
		return Info{}, err
	}
	return Info{Locked: true, TTL: ttl}, nil
}
