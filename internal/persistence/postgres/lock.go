package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the part of pgxpool.Pool and pgxpool.Conn the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type lockedConnKey struct{}

// db returns the connection holding the caller's user lock, or the pool outside a lock.
func (r *Repository) db(ctx context.Context) querier {
	if conn, ok := ctx.Value(lockedConnKey{}).(querier); ok {
		return conn
	}
	return r.pool
}

// WithUserLock implements domain.Locker with a session advisory lock keyed by the user id.
// The lock is held on one pooled connection, and every repository call made with the context
// passed to fn runs on that same connection, so a locked pipeline never needs a second one.
func (r *Repository) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, userID); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	defer func() {
		// Unlock on a fresh context so a cancelled caller still releases the lock.
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, userID)
	}()

	return fn(context.WithValue(ctx, lockedConnKey{}, querier(conn)))
}
