package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// AggregateRepository persists per-entity, per-period summary rows. The
// primary key on (tenant_id, module, entity, period_start) makes rebuilds
// idempotent: the same period overwrites, never duplicates.
type AggregateRepository struct {
	db *pgxpool.Pool
}

// NewAggregateRepository creates a PostgreSQL aggregate repository
func NewAggregateRepository(db *pgxpool.Pool) *AggregateRepository {
	return &AggregateRepository{db: db}
}

const upsertAggregateQuery = `
	INSERT INTO aggregates (
		tenant_id, module, entity, period_start,
		sample_count, matched_count, rate, mean, sum_amount,
		completeness, low_sample, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (tenant_id, module, entity, period_start) DO UPDATE SET
		sample_count = EXCLUDED.sample_count,
		matched_count = EXCLUDED.matched_count,
		rate = EXCLUDED.rate,
		mean = EXCLUDED.mean,
		sum_amount = EXCLUDED.sum_amount,
		completeness = EXCLUDED.completeness,
		low_sample = EXCLUDED.low_sample,
		created_at = EXCLUDED.created_at`

// UpsertBatch writes aggregates with insert-or-replace semantics inside one
// transaction and returns the number of rows written.
func (r *AggregateRepository) UpsertBatch(ctx context.Context, aggregates []*drift.Aggregate) (int, error) {
	if len(aggregates) == 0 {
		return 0, nil
	}

	var written int
	err := Transaction(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range aggregates {
			batch.Queue(upsertAggregateQuery,
				a.TenantID,
				string(a.Module),
				a.Entity,
				a.Period.Start(),
				a.SampleCount,
				a.MatchedCount,
				a.Rate,
				a.Mean,
				a.Sum.Amount().String(),
				a.Completeness,
				a.LowSample,
				a.CreatedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range aggregates {
			if _, err := results.Exec(); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, errors.NewInternalError("failed to upsert aggregates").WithCause(err)
	}

	return written, nil
}

// ListWindow returns all aggregates for the tenant and module whose period
// start falls inside the half-open window.
func (r *AggregateRepository) ListWindow(ctx context.Context, tenantID string, module drift.Module, window values.Window) ([]*drift.Aggregate, error) {
	query := `
		SELECT tenant_id, module, entity, period_start,
		       sample_count, matched_count, rate, mean, sum_amount::text,
		       completeness, low_sample, created_at
		FROM aggregates
		WHERE tenant_id = $1 AND module = $2
		  AND period_start >= $3 AND period_start < $4
		ORDER BY entity, period_start`

	rows, err := r.db.Query(ctx, query, tenantID, string(module), window.Start, window.End)
	if err != nil {
		return nil, errors.NewInternalError("failed to query aggregates").WithCause(err)
	}
	defer rows.Close()

	var aggregates []*drift.Aggregate
	for rows.Next() {
		var (
			a           drift.Aggregate
			module      string
			periodStart time.Time
			sumRaw      string
		)
		if err := rows.Scan(
			&a.TenantID, &module, &a.Entity, &periodStart,
			&a.SampleCount, &a.MatchedCount, &a.Rate, &a.Mean, &sumRaw,
			&a.Completeness, &a.LowSample, &a.CreatedAt,
		); err != nil {
			return nil, errors.NewInternalError("failed to scan aggregate row").WithCause(err)
		}
		a.Module = drift.Module(module)
		a.Period = values.PeriodOf(periodStart)
		sum, err := values.NewMoneyFromString(sumRaw, values.USD)
		if err != nil {
			return nil, errors.NewInternalError("invalid sum amount in storage").WithCause(err)
		}
		a.Sum = sum
		aggregates = append(aggregates, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("aggregate row iteration failed").WithCause(err)
	}
	return aggregates, nil
}
