package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
)

// ProgressReader reads a single progress row.
type ProgressReader interface {
	GetProgress(ctx context.Context, userID string) (domain.UserProgress, error)
}

// ProgressService answers read-side progress questions with safe defaults.
type ProgressService struct {
	store  ProgressReader
	logger *zap.Logger
}

func NewProgressService(store ProgressReader, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{store: store, logger: logger}
}

// Progress returns the user's row, or DefaultProgress when it is missing or unreadable.
func (s *ProgressService) Progress(ctx context.Context, userID string) domain.UserProgress {
	progress, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProgressNotFound) {
			s.logger.Warn("read progress failed", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.DefaultProgress(userID)
	}
	if !progress.MaxTier.Valid() {
		progress.MaxTier = domain.TierFacil
	}
	return progress
}

// MaxTier is the highest tier the user may enter.
func (s *ProgressService) MaxTier(ctx context.Context, userID string) domain.Tier {
	return s.Progress(ctx, userID).MaxTier
}

// CanPlay reports whether tier is unlocked for the user.
func (s *ProgressService) CanPlay(ctx context.Context, userID string, tier domain.Tier) (bool, domain.Tier) {
	maxTier := s.MaxTier(ctx, userID)
	return tier.Valid() && tier <= maxTier, maxTier
}
