// Package distlock guards jobs that must not overlap across replicas, such
// as the hourly sequence tick.
package distlock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

// Sentinel errors.
var (
	// ErrNotAcquired is returned by Run when another holder owns the lock.
	ErrNotAcquired = errors.New("distlock: lock held elsewhere")
	// ErrLockLost is returned by Extend when the lease is no longer ours.
	ErrLockLost = errors.New("distlock: lock no longer owned")
)

// DistLock is the interface for distributed locking. A lock instance may be
// shared by concurrent callers; only one of them holds it at a time.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Renewer is implemented by locks whose lease expires unless extended.
type Renewer interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Run acquires lock, runs fn, and releases the lock. It returns
// ErrNotAcquired without calling fn when the lock is taken. A Renewer is
// extended every third of its TTL while fn runs. Release uses a fresh
// context so a cancelled ctx still frees the lock.
func Run(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) error {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("distlock: acquire: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			logger.Warn("distlock: release failed", "error", err.Error())
		}
	}()

	if r, ok := lock.(Renewer); ok && r.TTL() > 0 {
		stop := heartbeat(ctx, r)
		defer stop()
	}
	return fn(ctx)
}

// heartbeat extends r until the returned stop func is called.
func heartbeat(ctx context.Context, r Renewer) (stop func()) {
	ttl := r.TTL()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(ttl / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := r.Extend(ctx, ttl); err != nil && ctx.Err() == nil {
					logger.Warn("distlock: extend failed", "error", err.Error())
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// =============================================================================
// POSTGRES ADVISORY LOCK
// =============================================================================
// Advisory locks belong to a database session. The lock pins one pooled
// connection from Acquire until Release so the unlock runs on the session
// that took it and the pool cannot recycle that session mid-job.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries pg_try_advisory_lock on a dedicated connection. The
// connection is kept only when the lock was taken.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks on the session that acquired the lock and returns the
// connection to the pool. If the unlock fails the session is discarded,
// which frees the lock server-side.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil

	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	if err != nil {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	conn.Close()
	return err
}
