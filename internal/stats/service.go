package stats

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mathfly-quiz-service/internal/domain"
)

const (
	DefaultRankingLimit = 20
	DefaultRecentLimit  = 10
	anonymousName       = "Anonymous"
	// questionsPerGame is the divisor used for historical accuracy.
	questionsPerGame = 5
)

// Store is the read side of the progress store.
type Store interface {
	GetProgress(ctx context.Context, userID string) (domain.UserProgress, error)
	PhaseResults(ctx context.Context, userID string, limit int) ([]domain.PhaseResult, error)
	CountPhaseResults(ctx context.Context, userID string) (int, error)
	Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
}

// Dashboard bundles everything the stats screen renders.
type Dashboard struct {
	Stats   domain.UserStats      `json:"stats"`
	Ranking []domain.RankingEntry `json:"ranking"`
	Recent  []domain.Performance  `json:"recent"`
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// UserStats aggregates the user's progress row and history count.
func (s *Service) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	progress, err := s.store.GetProgress(ctx, userID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		progress, err = domain.DefaultProgress(userID), nil
	}
	if err != nil {
		return domain.UserStats{MaxTier: domain.TierFacil}, err
	}
	games, err := s.store.CountPhaseResults(ctx, userID)
	if err != nil {
		return domain.UserStats{MaxTier: domain.TierFacil}, err
	}

	var accuracy float64
	if games > 0 {
		accuracy = float64(progress.TotalCorrect) / float64(games*questionsPerGame) * 100
	}
	maxTier := progress.MaxTier
	if !maxTier.Valid() {
		maxTier = domain.TierFacil
	}
	return domain.UserStats{
		TotalScore:      progress.TotalPoints,
		TotalGames:      games,
		AverageAccuracy: accuracy,
		MaxTier:         maxTier,
		LastPlayed:      progress.UpdatedAt,
	}, nil
}

// Ranking returns the top users by cumulative points.
func (s *Service) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	entries, err := s.store.Ranking(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = anonymousName
		}
	}
	return entries, nil
}

// RecentResults returns the user's latest sessions, newest first.
func (s *Service) RecentResults(ctx context.Context, userID string, limit int) ([]domain.Performance, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	results, err := s.store.PhaseResults(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Performance, 0, len(results))
	for _, r := range results {
		out = append(out, domain.Performance{
			PhaseResult: r,
			Accuracy:    float64(r.CorrectAnswers) / questionsPerGame * 100,
		})
	}
	return out, nil
}

// Dashboard loads stats, ranking and recent results concurrently. A failing
// part is logged and left at its empty value.
func (s *Service) Dashboard(ctx context.Context, userID string) Dashboard {
	var (
		userStats = domain.UserStats{MaxTier: domain.TierFacil}
		ranking   = []domain.RankingEntry{}
		recent    = []domain.Performance{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.UserStats(gctx, userID)
		if err != nil {
			s.logger.Warn("load user stats failed", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		userStats = st
		return nil
	})
	g.Go(func() error {
		r, err := s.Ranking(gctx, DefaultRankingLimit)
		if err != nil {
			s.logger.Warn("load ranking failed", zap.Error(err))
			return nil
		}
		ranking = r
		return nil
	})
	g.Go(func() error {
		r, err := s.RecentResults(gctx, userID, DefaultRecentLimit)
		if err != nil {
			s.logger.Warn("load recent results failed", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		recent = r
		return nil
	})
	_ = g.Wait()

	return Dashboard{Stats: userStats, Ranking: ranking, Recent: recent}
}
