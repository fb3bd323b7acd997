package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compare-and-act scripts keyed on the ownership token.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisLock is a SET NX lease with a TTL. Each acquisition writes a fresh
// random token; release and extend only act while the key still holds it.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedisLock creates a lock on "lock:<key>".
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    "lock:" + key,
		ttl:    ttl,
	}
}

// TTL is the lease length.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

// Acquire tries to take the lease. Returns true if successful.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return false, nil
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

// Release deletes the key if we still own it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}

// Extend resets the lease to ttl. It returns ErrLockLost when the key has
// expired or been taken by another holder.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	l.mu.Lock()
	token := l.token
	l.mu.Unlock()
	if token == "" {
		return ErrLockLost
	}
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
