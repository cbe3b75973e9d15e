package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
)

// SuppressionLogRepository records withheld detections for audit. The table is
// append-only; nothing in the engine reads it back.
type SuppressionLogRepository struct {
	db *pgxpool.Pool
}

// NewSuppressionLogRepository creates a PostgreSQL suppression log
func NewSuppressionLogRepository(db *pgxpool.Pool) *SuppressionLogRepository {
	return &SuppressionLogRepository{db: db}
}

// RecordWithheld appends one audit row for a suppressed detection
func (r *SuppressionLogRepository) RecordWithheld(ctx context.Context, tenantID, entity string, module drift.Module, reason string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO suppression_log (id, tenant_id, entity, module, reason, withheld_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), tenantID, entity, string(module), reason, at,
	)
	if err != nil {
		return errors.NewInternalError("failed to record suppression").WithCause(err)
	}
	return nil
}
