package database

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
)

// RunLock serializes detection runs at (tenant, module) granularity using a
// Postgres session advisory lock. Two runs for the same key cannot both pass
// the fingerprint-existence check before either commits; the later one fails
// fast and is retried by the caller.
type RunLock struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRunLock creates an advisory-lock based run locker
func NewRunLock(pool *pgxpool.Pool, logger *zap.Logger) *RunLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunLock{pool: pool, logger: logger}
}

// TryAcquire attempts the advisory lock without waiting. The returned release
// function must be called exactly once; it unlocks and returns the session
// connection to the pool.
func (l *RunLock) TryAcquire(ctx context.Context, tenantID string, module drift.Module) (func(context.Context) error, error) {
	key := LockKey(tenantID, module)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to acquire database connection").WithCause(err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, errors.NewInternalError("advisory lock query failed").WithCause(err)
	}
	if !acquired {
		conn.Release()
		return nil, errors.NewConcurrencyError("another run holds the lock for this tenant and module")
	}

	l.logger.Debug("run lock acquired",
		zap.String("tenant_id", tenantID),
		zap.String("module", string(module)),
		zap.Int64("key", key))

	release := func(ctx context.Context) error {
		defer conn.Release()
		_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
		return err
	}
	return release, nil
}

// LockKey derives the stable 64-bit advisory lock key for a tenant and module
func LockKey(tenantID string, module drift.Module) int64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID))
	h.Write([]byte{'|'})
	h.Write([]byte(module))
	return int64(h.Sum64())
}
