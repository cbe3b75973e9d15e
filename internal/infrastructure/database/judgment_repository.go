package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// JudgmentRepository stores the append-only operator judgment log and serves
// the reads the suppression projection is computed from.
type JudgmentRepository struct {
	db *pgxpool.Pool
}

// NewJudgmentRepository creates a PostgreSQL judgment repository
func NewJudgmentRepository(db *pgxpool.Pool) *JudgmentRepository {
	return &JudgmentRepository{db: db}
}

// Append inserts a judgment. Judgments are never updated or deleted.
func (r *JudgmentRepository) Append(ctx context.Context, judgment *drift.OperatorJudgment) error {
	var recovered interface{}
	if judgment.RecoveredAmount != nil {
		recovered = judgment.RecoveredAmount.Amount().String()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO operator_judgments (
			id, signal_id, tenant_id, entity, module,
			verdict, author, recovered_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		judgment.ID,
		judgment.SignalID,
		judgment.TenantID,
		judgment.Entity,
		string(judgment.Module),
		string(judgment.Verdict),
		judgment.Author,
		recovered,
		judgment.CreatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to append judgment").WithCause(err)
	}
	return nil
}

// LatestJudgment returns the most recent judgment for the entity and module,
// or nil when the entity has never been judged.
func (r *JudgmentRepository) LatestJudgment(ctx context.Context, tenantID, entity string, module drift.Module) (*drift.OperatorJudgment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, signal_id, tenant_id, entity, module,
		       verdict, author, recovered_amount::text, created_at
		FROM operator_judgments
		WHERE tenant_id = $1 AND entity = $2 AND module = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		tenantID, entity, string(module))

	var (
		j          drift.OperatorJudgment
		moduleRaw  string
		verdictRaw string
		recovered  *string
	)
	err := row.Scan(
		&j.ID, &j.SignalID, &j.TenantID, &j.Entity, &moduleRaw,
		&verdictRaw, &j.Author, &recovered, &j.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load latest judgment").WithCause(err)
	}

	j.Module = drift.Module(moduleRaw)
	j.Verdict = drift.Verdict(verdictRaw)
	if recovered != nil {
		amount, err := values.NewMoneyFromString(*recovered, values.USD)
		if err != nil {
			return nil, errors.NewInternalError("invalid recovered amount in storage").WithCause(err)
		}
		j.RecoveredAmount = &amount
	}
	return &j, nil
}

// CountNoiseSince counts noise verdicts for the entity and module at or after
// the given time.
func (r *JudgmentRepository) CountNoiseSince(ctx context.Context, tenantID, entity string, module drift.Module, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM operator_judgments
		WHERE tenant_id = $1 AND entity = $2 AND module = $3
		  AND verdict = $4 AND created_at >= $5`,
		tenantID, entity, string(module), string(drift.VerdictNoise), since,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count noise judgments").WithCause(err)
	}
	return count, nil
}
