package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides a named single-flight lock so a periodic job never overlaps
// with a previous run of itself, on this instance or another.
type Locker interface {
	// TryLock acquires name for at most ttl. It returns a release func, or
	// ok=false when the lock is already held.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]time.Time{}}
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.held[name]; ok && time.Now().Before(exp) {
		return nil, false, nil
	}
	l.held[name] = time.Now().Add(ttl)
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true, nil
}

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end; return 0`

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a RedisLocker storing keys under prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock implements Locker with SET NX plus a token-checked release.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(rctx, releaseScript, []string{key}, token).Err()
	}, true, nil
}

// FallbackLocker uses primary and falls back to secondary when primary errors,
// so a Redis outage degrades to per-instance locking instead of skipping jobs.
type FallbackLocker struct {
	Primary   Locker
	Secondary Locker
}

// TryLock implements Locker.
func (f FallbackLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	release, ok, err := f.Primary.TryLock(ctx, name, ttl)
	if err == nil {
		return release, ok, nil
	}
	return f.Secondary.TryLock(ctx, name, ttl)
}
