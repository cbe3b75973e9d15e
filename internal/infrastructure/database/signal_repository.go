package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/service/detection"
)

const pgUniqueViolation = "23505"

// SignalRepository persists signals and their fanout events. The unique
// constraint on fingerprint is the idempotency guarantee: a concurrent or
// repeated publish for the same window collides instead of duplicating.
type SignalRepository struct {
	db *pgxpool.Pool
}

// NewSignalRepository creates a PostgreSQL signal repository
func NewSignalRepository(db *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{db: db}
}

// FingerprintExists reports whether a signal with the fingerprint exists
func (r *SignalRepository) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM signals WHERE fingerprint = $1)`,
		fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, errors.NewInternalError("fingerprint lookup failed").WithCause(err)
	}
	return exists, nil
}

// CreateWithEvent inserts the signal and its event in a single transaction.
// Both rows commit or neither does: a signal must never exist without its
// event. A fingerprint collision surfaces as a conflict error, which callers
// treat as the normal duplicate-skip outcome.
func (r *SignalRepository) CreateWithEvent(ctx context.Context, signal *drift.Signal, event *drift.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.NewInternalError("failed to marshal event payload").WithCause(err)
	}

	err = Transaction(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO signals (
				id, tenant_id, entity, module, metric,
				baseline_value, current_value, absolute_delta, relative_delta,
				confidence, severity, baseline_samples, current_samples,
				fingerprint, badge, status, window_start, window_end, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19
			)`,
			signal.ID,
			signal.TenantID,
			signal.Entity,
			string(signal.Module),
			string(signal.Metric),
			signal.BaselineValue,
			signal.CurrentValue,
			signal.AbsoluteDelta,
			signal.RelativeDelta,
			signal.Confidence,
			string(signal.Severity),
			signal.BaselineSamples,
			signal.CurrentSamples,
			signal.Fingerprint,
			signal.Badge,
			string(signal.Status),
			signal.WindowStart,
			signal.WindowEnd,
			signal.CreatedAt,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO events (
				id, tenant_id, event_type, signal_id, correlation_id, payload, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			event.ID,
			event.TenantID,
			event.Type,
			event.SignalID,
			event.CorrelationID,
			payload,
			event.CreatedAt,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.NewConflictError("DUPLICATE_FINGERPRINT", "signal fingerprint already exists").WithCause(err)
		}
		return errors.NewInternalError("failed to publish signal").WithCause(err)
	}
	return nil
}

// GetByID returns a signal by id, or nil when it does not exist
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*drift.Signal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, entity, module, metric,
		       baseline_value, current_value, absolute_delta, relative_delta,
		       confidence, severity, baseline_samples, current_samples,
		       fingerprint, badge, status, window_start, window_end, created_at
		FROM signals WHERE id = $1`, id)

	signal, err := scanSignal(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load signal").WithCause(err)
	}
	return signal, nil
}

// UpdateStatus sets the denormalized display status of a signal
func (r *SignalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status drift.SignalStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE signals SET status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return errors.NewInternalError("failed to update signal status").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("signal")
	}
	return nil
}

// List returns signals matching the filter, newest first
func (r *SignalRepository) List(ctx context.Context, filter detection.SignalFilter) ([]*drift.Signal, error) {
	query := `
		SELECT id, tenant_id, entity, module, metric,
		       baseline_value, current_value, absolute_delta, relative_delta,
		       confidence, severity, baseline_samples, current_samples,
		       fingerprint, badge, status, window_start, window_end, created_at
		FROM signals
		WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.Module != "" {
		args = append(args, string(filter.Module))
		query += fmt.Sprintf(" AND module = $%d", len(args))
	}
	if filter.MinSeverity != "" {
		// Filtered in SQL so LIMIT applies after the severity cut.
		levels := make([]string, 0, 4)
		for _, s := range drift.SeveritiesAtOrAbove(filter.MinSeverity) {
			levels = append(levels, string(s))
		}
		args = append(args, levels)
		query += fmt.Sprintf(" AND severity = ANY($%d)", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to query signals").WithCause(err)
	}
	defer rows.Close()

	var signals []*drift.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan signal row").WithCause(err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("signal row iteration failed").WithCause(err)
	}
	return signals, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*drift.Signal, error) {
	var (
		s              drift.Signal
		module, metric string
		severity       string
		status         string
	)
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.Entity, &module, &metric,
		&s.BaselineValue, &s.CurrentValue, &s.AbsoluteDelta, &s.RelativeDelta,
		&s.Confidence, &severity, &s.BaselineSamples, &s.CurrentSamples,
		&s.Fingerprint, &s.Badge, &status, &s.WindowStart, &s.WindowEnd, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Module = drift.Module(module)
	s.Metric = drift.MetricKind(metric)
	s.Severity = drift.Severity(severity)
	s.Status = drift.SignalStatus(status)
	return &s, nil
}
