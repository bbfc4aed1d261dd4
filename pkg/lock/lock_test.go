package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rentkar/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for the redis commands the locker
// uses, with real TTL expiry semantics.
type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	expiries map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   make(map[string]string),
		expiries: make(map[string]time.Time),
	}
}

func (s *fakeStore) purgeLocked(key string) {
	if exp, ok := s.expiries[key]; ok && time.Now().After(exp) {
		delete(s.values, key)
		delete(s.expiries, key)
	}
}

func (s *fakeStore) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	if _, exists := s.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	s.values[key] = value.(string)
	s.expiries[key] = time.Now().Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func (s *fakeStore) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(keys[0])

	if s.values[keys[0]] == args[0].(string) {
		delete(s.values, keys[0])
		delete(s.expiries, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (s *fakeStore) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(keys[0])

	if _, ok := s.values[keys[0]]; ok {
		return redis.NewIntResult(1, nil)
	}
	return redis.NewIntResult(0, nil)
}

func (s *fakeStore) PTTL(ctx context.Context, key string) *redis.DurationCmd {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiries[key]
	if !ok {
		return redis.NewDurationResult(-2*time.Millisecond, nil)
	}
	return redis.NewDurationResult(time.Until(exp), nil)
}

func (s *fakeStore) holder(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Service: "test"})
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 10*time.Millisecond, 3)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "booking:assign:b1", time.Second, 3)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, token, store.holder("lock:booking:assign:b1"))

	require.NoError(t, locker.Release(ctx, "booking:assign:b1", token))
	assert.Empty(t, store.holder("lock:booking:assign:b1"))
}

func TestAcquire_BusyAfterRetries(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 5*time.Millisecond, 3)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "booking:confirm:b1", time.Minute, 3)
	require.NoError(t, err)

	start := time.Now()
	_, err = locker.Acquire(ctx, "booking:confirm:b1", time.Minute, 3)
	assert.ErrorIs(t, err, ErrLockBusy)
	// Linear backoff: 5ms after attempt 1 plus 10ms after attempt 2.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestAcquire_SucceedsAfterExpiry(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 20*time.Millisecond, 3)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "k", 15*time.Millisecond, 1)
	require.NoError(t, err)

	// The first holder's lease expires during the retry schedule.
	token, err := locker.Acquire(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRelease_RequiresOwnership(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 10*time.Millisecond, 3)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "k", time.Minute, 1)
	require.NoError(t, err)

	// A stale token must not destroy the active lease.
	err = locker.Release(ctx, "k", "stale-token")
	assert.ErrorIs(t, err, ErrNotHeld)
	assert.Equal(t, token, store.holder("lock:k"))

	require.NoError(t, locker.Release(ctx, "k", token))
	assert.ErrorIs(t, locker.Release(ctx, "k", token), ErrNotHeld)
}

func TestWithLock_MutualExclusion(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 10*time.Millisecond, 5)
	ctx := context.Background()

	var inCritical atomic.Int32
	var maxConcurrent atomic.Int32
	var completed atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "booking:review:b1", time.Second, func(ctx context.Context) error {
				n := inCritical.Add(1)
				if n > maxConcurrent.Load() {
					maxConcurrent.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inCritical.Add(-1)
				return nil
			})
			if err == nil {
				completed.Add(1)
			} else if !errors.Is(err, ErrLockBusy) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent.Load(), "critical sections overlapped")
	assert.GreaterOrEqual(t, completed.Load(), int32(1))
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 10*time.Millisecond, 3)
	ctx := context.Background()

	boom := errors.New("boom")
	err := locker.WithLock(ctx, "k", time.Minute, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	info, err := locker.Info(ctx, "k")
	require.NoError(t, err)
	assert.False(t, info.Locked, "lease must be released when fn fails")
}

func TestInfo(t *testing.T) {
	store := newFakeStore()
	locker := NewRedisLocker(store, testLogger(), 10*time.Millisecond, 3)
	ctx := context.Background()

	info, err := locker.Info(ctx, "k")
	require.NoError(t, err)
	assert.False(t, info.Locked)

	_, err = locker.Acquire(ctx, "k", time.Minute, 1)
	require.NoError(t, err)

	info, err = locker.Info(ctx, "k")
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.Greater(t, info.TTL, 30*time.Second)
}
