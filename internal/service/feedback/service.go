package feedback

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
	"github.com/davidleathers/claimsignal/internal/domain/values"
)

// SignalStore is the slice of the signal repository the feedback loop needs
type SignalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*drift.Signal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status drift.SignalStatus) error
}

// JudgmentStore appends to the operator judgment log. History is never
// edited or deleted.
type JudgmentStore interface {
	Append(ctx context.Context, judgment *drift.OperatorJudgment) error
}

// SuppressionCache invalidates the cached suppression projection so the next
// batch run for the entity sees the new verdict.
type SuppressionCache interface {
	Invalidate(ctx context.Context, tenantID, entity string, module drift.Module) error
}

// JudgmentRequest is an inbound operator verdict, submitted by the external
// UI/API layer on behalf of a human.
type JudgmentRequest struct {
	SignalID        uuid.UUID     `validate:"required"`
	Verdict         drift.Verdict `validate:"required,oneof=noise confirmed needs_follow_up"`
	Author          string        `validate:"required"`
	RecoveredAmount *values.Money
}

// Service implements the operator feedback loop
type Service struct {
	signals   SignalStore
	judgments JudgmentStore
	cache     SuppressionCache
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the feedback service. cache may be nil.
func NewService(signals SignalStore, judgments JudgmentStore, cache SuppressionCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		signals:   signals,
		judgments: judgments,
		cache:     cache,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// RecordJudgment appends a judgment for a signal and updates the signal's
// denormalized display status. The suppression projection for the signal's
// (tenant, entity, module) is invalidated so the next run observes the
// verdict.
func (s *Service) RecordJudgment(ctx context.Context, req *JudgmentRequest) (*drift.OperatorJudgment, error) {
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "judgment request cannot be nil")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "judgment request failed validation").WithCause(err)
	}

	signal, err := s.signals.GetByID(ctx, req.SignalID)
	if err != nil {
		return nil, err
	}
	if signal == nil {
		return nil, errors.NewNotFoundError("signal")
	}

	judgment := &drift.OperatorJudgment{
		ID:              uuid.New(),
		SignalID:        signal.ID,
		TenantID:        signal.TenantID,
		Entity:          signal.Entity,
		Module:          signal.Module,
		Verdict:         req.Verdict,
		Author:          req.Author,
		RecoveredAmount: req.RecoveredAmount,
		CreatedAt:       s.now(),
	}

	if err := s.judgments.Append(ctx, judgment); err != nil {
		return nil, errors.NewInternalError("failed to store judgment").WithCause(err)
	}

	// Display convenience only; suppression decisions read the judgment log.
	if err := s.signals.UpdateStatus(ctx, signal.ID, drift.StatusForVerdict(req.Verdict)); err != nil {
		s.logger.Warn("failed to update signal status",
			zap.String("signal_id", signal.ID.String()),
			zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, signal.TenantID, signal.Entity, signal.Module); err != nil {
			s.logger.Warn("failed to invalidate suppression cache",
				zap.String("tenant_id", signal.TenantID),
				zap.String("entity", signal.Entity),
				zap.Error(err))
		}
	}

	s.logger.Info("operator judgment recorded",
		zap.String("signal_id", signal.ID.String()),
		zap.String("tenant_id", signal.TenantID),
		zap.String("entity", signal.Entity),
		zap.String("module", string(signal.Module)),
		zap.String("verdict", string(req.Verdict)),
		zap.String("author", req.Author))

	return judgment, nil
}
