package detection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/claimsignal/internal/domain/drift"
	"github.com/davidleathers/claimsignal/internal/domain/errors"
)

// Noise-history badge lookback
const noiseHistoryWindow = 60 * 24 * time.Hour

// SuppressionEngine decides whether a candidate signal is created, created
// with a context badge, or withheld. State is a projection over the
// append-only judgment log, scoped to (tenant, entity, module) rather than a
// specific fingerprint so a recurring problem with shifted window boundaries
// still benefits from prior judgments.
type SuppressionEngine struct {
	judgments JudgmentRepository
	cache     SuppressionCache
	log       SuppressionLog
	logger    *zap.Logger
}

// NewSuppressionEngine creates a suppression engine. cache may be nil.
func NewSuppressionEngine(judgments JudgmentRepository, cache SuppressionCache, log SuppressionLog, logger *zap.Logger) *SuppressionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuppressionEngine{
		judgments: judgments,
		cache:     cache,
		log:       log,
		logger:    logger,
	}
}

// Decide evaluates the suppression state machine for one candidate. Withheld
// decisions are recorded in the audit log before returning.
func (e *SuppressionEngine) Decide(ctx context.Context, tenantID, entity string, cfg drift.ModuleConfig, now time.Time) (SuppressionDecision, error) {
	state, err := e.stateFor(ctx, tenantID, entity, cfg, now)
	if err != nil {
		return SuppressionDecision{}, err
	}
	if state == nil {
		return SuppressionDecision{Action: ActionCreate}, nil
	}

	switch state.LastVerdict {
	case drift.VerdictNoise:
		if state.Active(now) {
			decision := SuppressionDecision{
				Action: ActionWithhold,
				Reason: fmt.Sprintf("noise judgment on %s, suppressed until %s",
					state.JudgedAt.Format("2006-01-02"), state.SuppressedUntil.Format("2006-01-02")),
			}
			e.logger.Info("signal withheld",
				zap.String("tenant_id", tenantID),
				zap.String("entity", entity),
				zap.String("module", string(cfg.Module)),
				zap.String("reason", decision.Reason))
			if e.log != nil {
				if err := e.log.RecordWithheld(ctx, tenantID, entity, cfg.Module, decision.Reason, now); err != nil {
					return SuppressionDecision{}, errors.NewInternalError("failed to record withheld decision").WithCause(err)
				}
			}
			return decision, nil
		}
		// TTL expired: create normally, but carry the noise history forward
		// so the operator sees the pattern.
		if state.NoiseCount60d > 0 {
			return SuppressionDecision{
				Action: ActionCreateBadged,
				Badge:  fmt.Sprintf("marked noise %d time(s) in the last 60 days", state.NoiseCount60d),
			}, nil
		}
		return SuppressionDecision{Action: ActionCreate}, nil

	case drift.VerdictConfirmed:
		return SuppressionDecision{
			Action: ActionCreateBadged,
			Badge: withNoiseHistory(
				fmt.Sprintf("similar alert confirmed %s ago", ageText(now.Sub(state.JudgedAt))),
				state.NoiseCount60d),
		}, nil

	case drift.VerdictNeedsFollowUp:
		return SuppressionDecision{
			Action: ActionCreateBadged,
			Badge: withNoiseHistory(
				fmt.Sprintf("follow-up pending since %s", state.JudgedAt.Format("2006-01-02")),
				state.NoiseCount60d),
		}, nil
	}

	return SuppressionDecision{Action: ActionCreate}, nil
}

// stateFor builds the suppression projection, consulting the cache first.
// Returns nil when the entity has no judgment history.
func (e *SuppressionEngine) stateFor(ctx context.Context, tenantID, entity string, cfg drift.ModuleConfig, now time.Time) (*drift.SuppressionState, error) {
	if e.cache != nil {
		if state, ok, err := e.cache.Get(ctx, tenantID, entity, cfg.Module); err != nil {
			// Cache trouble must not block a run; fall through to storage.
			e.logger.Warn("suppression cache read failed",
				zap.String("tenant_id", tenantID),
				zap.String("entity", entity),
				zap.Error(err))
		} else if ok {
			return state, nil
		}
	}

	latest, err := e.judgments.LatestJudgment(ctx, tenantID, entity, cfg.Module)
	if err != nil {
		return nil, errors.NewInternalError("failed to load judgment history").WithCause(err)
	}
	if latest == nil {
		return nil, nil
	}

	noiseCount, err := e.judgments.CountNoiseSince(ctx, tenantID, entity, cfg.Module, now.Add(-noiseHistoryWindow))
	if err != nil {
		return nil, errors.NewInternalError("failed to count noise judgments").WithCause(err)
	}

	state := &drift.SuppressionState{
		LastVerdict:   latest.Verdict,
		JudgedAt:      latest.CreatedAt,
		NoiseCount60d: noiseCount,
	}
	if latest.Verdict == drift.VerdictNoise {
		state.SuppressedUntil = latest.CreatedAt.Add(cfg.SuppressionTTL)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, tenantID, entity, cfg.Module, state); err != nil {
			e.logger.Warn("suppression cache write failed",
				zap.String("tenant_id", tenantID),
				zap.String("entity", entity),
				zap.Error(err))
		}
	}

	return state, nil
}

// withNoiseHistory appends the recent noise count to a badge so operators see
// a flapping entity even when the latest verdict was not noise.
func withNoiseHistory(badge string, noiseCount int) string {
	if noiseCount == 0 {
		return badge
	}
	return fmt.Sprintf("%s; marked noise %d time(s) in the last 60 days", badge, noiseCount)
}

func ageText(age time.Duration) string {
	days := int(age.Hours() / 24)
	if days <= 0 {
		return "less than a day"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
