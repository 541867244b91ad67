// Package lock provides run-level locks so only one scheduler instance
// executes a retention batch at a time.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Advisory lock keys for the two batch jobs. Arbitrary but stable values
// scoped to this application's database.
const (
	KeyRetentionScan = 0x77617264 // "ward"
	KeyAnonymization = 0x77617265
)

// Locker acquires a named run lock. Acquire returns acquired=false without
// error when another runner holds the lock; release must be called only when
// acquired.
type Locker interface {
	Acquire(ctx context.Context, key int64) (acquired bool, release func(), err error)
}

// InMemoryLocker guards batch runs within a single process.
type InMemoryLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[int64]bool)}
}

func (l *InMemoryLocker) Acquire(_ context.Context, key int64) (bool, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return false, nil, nil
	}
	l.held[key] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return true, release, nil
}

// AdvisoryLocker serializes batch runs across processes using PostgreSQL
// session advisory locks. The lock is tied to one pinned connection so the
// release pairs with the same session that acquired it.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

func (l *AdvisoryLocker) Acquire(ctx context.Context, key int64) (bool, func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Close()
		return false, nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil, nil
	}

	release := func() {
		// Unlock on the same session, then return the connection to the pool.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Close()
	}
	return true, release, nil
}
