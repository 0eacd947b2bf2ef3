package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/metrics"
)

// UnlockThreshold is the number of correct answers needed to unlock the next tier.
const UnlockThreshold = 3

// ProgressStore persists progress rows and the phase history.
type ProgressStore interface {
	AppendPhaseResult(ctx context.Context, result domain.PhaseResult) error
	// GetProgress returns domain.ErrProgressNotFound when the user has no row.
	GetProgress(ctx context.Context, userID string) (domain.UserProgress, error)
	// UpdateProgress atomically reads the user's row (DefaultProgress when
	// absent), applies fn and upserts the result. fn may run more than once.
	UpdateProgress(ctx context.Context, userID string, fn func(domain.UserProgress) domain.UserProgress) error
}

// ProgressNotifier signals that a user's progress row changed.
type ProgressNotifier interface {
	ProgressChanged(ctx context.Context, userID string) error
}

// EventPublisher forwards completed phases to downstream consumers.
type EventPublisher interface {
	PublishPhaseCompleted(ctx context.Context, event domain.PhaseCompleted) error
}

// Reconciler merges finished sessions into UserProgress and decides unlocks.
type Reconciler struct {
	store     ProgressStore
	notifier  ProgressNotifier
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// ReconcilerOption customises a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithNotifier(n ProgressNotifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = n }
}

func WithPublisher(p EventPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(store ProgressStore, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile appends a PhaseResult row and upserts the user's progress.
// Store failures are wrapped in domain.ErrPersistenceUnavailable.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, results domain.Results) (domain.Reconciliation, error) {
	if userID == "" {
		return domain.Reconciliation{}, domain.ErrNotAuthenticated
	}
	if !results.Tier.Valid() {
		return domain.Reconciliation{}, domain.ErrInvalidTier
	}
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	now := r.now()
	row := domain.PhaseResult{
		UserID:         userID,
		Tier:           results.Tier,
		CorrectAnswers: results.CorrectAnswers,
		PointsEarned:   results.Score,
		CompletedAt:    now,
	}
	if err := r.store.AppendPhaseResult(ctx, row); err != nil {
		return domain.Reconciliation{}, fmt.Errorf("%w: append phase result: %w", domain.ErrPersistenceUnavailable, err)
	}

	var outcome domain.Reconciliation
	err := r.store.UpdateProgress(ctx, userID, func(current domain.UserProgress) domain.UserProgress {
		previous := current.MaxTier
		if !previous.Valid() {
			previous = domain.TierFacil
		}
		next := NextMaxTier(previous, results.Tier, results.CorrectAnswers)
		outcome = domain.Reconciliation{NewMaxTier: next, UnlockedNewTier: next > previous}
		return domain.UserProgress{
			UserID:       userID,
			MaxTier:      next,
			TotalCorrect: current.TotalCorrect + results.CorrectAnswers,
			TotalPoints:  current.TotalPoints + results.Score,
			UpdatedAt:    now,
		}
	})
	if err != nil {
		return domain.Reconciliation{}, fmt.Errorf("%w: upsert progress: %w", domain.ErrPersistenceUnavailable, err)
	}

	if outcome.UnlockedNewTier {
		metrics.TierUnlocks.WithLabelValues(outcome.NewMaxTier.String()).Inc()
		r.logger.Info("tier unlocked", zap.String("user_id", userID), zap.Stringer("tier", outcome.NewMaxTier))
	}
	r.announce(ctx, domain.PhaseCompleted{PhaseResult: row, Reconciliation: outcome})
	return outcome, nil
}

// announce is best-effort; subscribers only use it for freshness.
func (r *Reconciler) announce(ctx context.Context, event domain.PhaseCompleted) {
	if r.notifier != nil {
		if err := r.notifier.ProgressChanged(ctx, event.UserID); err != nil {
			r.logger.Warn("progress notification failed", zap.String("user_id", event.UserID), zap.Error(err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishPhaseCompleted(ctx, event); err != nil {
			r.logger.Warn("phase event publish failed", zap.String("user_id", event.UserID), zap.Error(err))
		}
	}
}

// NextMaxTier applies the unlock rule. The result is never below current.
func NextMaxTier(current, played domain.Tier, correctAnswers int) domain.Tier {
	if correctAnswers < UnlockThreshold || played < current {
		return current
	}
	next := played + 1
	if next > domain.HighestTier {
		next = domain.HighestTier
	}
	if next < current {
		return current
	}
	return next
}
