package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// ClaimRecordSource reads raw claim records loaded by the ingestion pipeline.
// The engine treats every field other than tenant and timestamp as optional;
// rows with missing fields are rejected downstream, not here.
type ClaimRecordSource struct {
	db *pgxpool.Pool
}

// NewClaimRecordSource creates a PostgreSQL claim record source
func NewClaimRecordSource(db *pgxpool.Pool) *ClaimRecordSource {
	return &ClaimRecordSource{db: db}
}

// FetchRecords returns all records for the tenant inside the half-open window
func (r *ClaimRecordSource) FetchRecords(ctx context.Context, tenantID string, window values.Window) ([]drift.RawRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tenant_id, entity, occurred_at, outcome, amount::text, days_to_payment
		FROM claim_records
		WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3`,
		tenantID, window.Start, window.End)
	if err != nil {
		return nil, errors.NewInternalError("failed to query claim records").WithCause(err)
	}
	defer rows.Close()

	var records []drift.RawRecord
	for rows.Next() {
		var (
			rec       drift.RawRecord
			entity    *string
			outcome   *string
			amountRaw *string
		)
		if err := rows.Scan(&rec.TenantID, &entity, &rec.OccurredAt, &outcome, &amountRaw, &rec.DaysToPayment); err != nil {
			return nil, errors.NewInternalError("failed to scan claim record").WithCause(err)
		}
		if entity != nil {
			rec.Entity = *entity
		}
		if outcome != nil {
			rec.Outcome = *outcome
		}
		if amountRaw != nil {
			amount, err := values.NewMoneyFromString(*amountRaw, values.USD)
			if err != nil {
				return nil, errors.NewInternalError("invalid amount in storage").WithCause(err)
			}
			rec.Amount = &amount
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("claim record iteration failed").WithCause(err)
	}
	return records, nil
}
