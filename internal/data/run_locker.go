package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-bol-sync/internal/core"
)

// RedisRunLocker grants cross-instance locks on top of a CacheRepository. Each
// holder writes a unique token so release never removes a successor's lock.
type RedisRunLocker struct {
	cache    core.CacheRepository
	newToken func() string
}

var _ core.RunLocker = (*RedisRunLocker)(nil)

// NewRedisRunLocker creates a RedisRunLocker.
func NewRedisRunLocker(cache core.CacheRepository) *RedisRunLocker {
	return &RedisRunLocker{cache: cache, newToken: uuid.NewString}
}

// TryLock sets key for ttl when it is free. ok is false without error when
// another holder owns it.
func (l *RedisRunLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (core.ReleaseFunc, bool, error) {
	if l.cache == nil {
		return nil, false, errors.New("run locker has no cache")
	}
	token := []byte(l.newToken())
	ok, err := l.cache.SetIfNotExists(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if _, err := l.cache.DeleteIfValue(ctx, key, token); err != nil {
			return fmt.Errorf("release run lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// PgRunLocker grants locks with Postgres session advisory locks. It serves
// deployments without Redis. The ttl is not enforced: the lock lives until
// release or until the pinned connection dies.
type PgRunLocker struct {
	DB *sql.DB
}

var _ core.RunLocker = (*PgRunLocker)(nil)

// NewPgRunLocker creates a PgRunLocker.
func NewPgRunLocker(db *sql.DB) *PgRunLocker {
	return &PgRunLocker{DB: db}
}

// TryLock pins a connection and takes pg_try_advisory_lock on the hash of
// key. The connection is returned to the pool on release or when the lock
// is not granted.
func (l *PgRunLocker) TryLock(ctx context.Context, key string, _ time.Duration) (core.ReleaseFunc, bool, error) {
	if l.DB == nil {
		return nil, false, errors.New("run locker has no database")
	}
	conn, err := l.DB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", key, err)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&locked); err != nil {
		return nil, false, errors.Join(fmt.Errorf("acquire run lock %s: %w", key, err), conn.Close())
	}
	if !locked {
		return nil, false, conn.Close()
	}

	release := func(ctx context.Context) error {
		var unlocked bool
		err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key).Scan(&unlocked)
		if err == nil && !unlocked {
			err = errors.New("lock was not held")
		}
		if err != nil {
			err = fmt.Errorf("release run lock %s: %w", key, err)
		}
		return errors.Join(err, conn.Close())
	}
	return release, true, nil
}
