// Package distlock provides per-creator mutual exclusion across processes.
// Redis is preferred; PostgreSQL advisory locks are the fallback when no
// Redis client is configured.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing or extending a lock this instance
// does not own.
var ErrNotHeld = errors.New("lock not held")

// DistLock is a single named lock. An instance must not be shared between
// goroutines; create one per holder.
type DistLock interface {
	// Acquire tries to take the lock without blocking.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// CreatorKey names the lock guarding one operation for one creator.
func CreatorKey(op, creatorID string) string {
	return fmt.Sprintf("funnellens:%s:%s", op, creatorID)
}

// AdvisoryKey maps a lock name onto the int64 space of PostgreSQL advisory
// locks. The same name always yields the same key.
func AdvisoryKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// Factory creates locks on whichever backend is configured.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewFactory returns a factory preferring redisClient when it is non-nil.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, ttl: ttl}
}

// New returns a fresh lock for key.
func (f *Factory) New(key string) DistLock {
	return NewLock(f.redis, f.db, key, f.ttl)
}

// NewLock creates a lock on Redis when redisClient is set, otherwise on
// PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock with session-scoped advisory locks.
// The lock lives on one pooled connection, which is pinned from Acquire
// until Release and returned to the pool afterwards. A dropped connection
// releases the lock server-side.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates an advisory lock whose ID is derived from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: AdvisoryKey(key)}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d: already acquired by this instance", l.lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("try advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return ErrNotHeld
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID).Scan(&released); err != nil {
		return fmt.Errorf("advisory unlock %d: %w", l.lockID, err)
	}
	if !released {
		return ErrNotHeld
	}
	return nil
}
