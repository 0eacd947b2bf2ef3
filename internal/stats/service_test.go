package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/infra/memory"
)

func seed(t *testing.T, store *memory.ProgressStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	plays := []domain.PhaseResult{
		{UserID: "u1", Tier: domain.TierFacil, CorrectAnswers: 4, PointsEarned: 60, CompletedAt: base},
		{UserID: "u1", Tier: domain.TierMedio, CorrectAnswers: 2, PointsEarned: 45, CompletedAt: base.Add(time.Hour)},
		{UserID: "u2", Tier: domain.TierFacil, CorrectAnswers: 5, PointsEarned: 200, CompletedAt: base},
	}
	for _, p := range plays {
		if err := store.AppendPhaseResult(ctx, p); err != nil {
			t.Fatalf("append: %v", err)
		}
		p := p
		err := store.UpdateProgress(ctx, p.UserID, func(cur domain.UserProgress) domain.UserProgress {
			cur.TotalCorrect += p.CorrectAnswers
			cur.TotalPoints += p.PointsEarned
			cur.UpdatedAt = p.CompletedAt
			return cur
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if err := store.RememberUser(ctx, domain.Identity{UserID: "u1", Name: "Alice"}); err != nil {
		t.Fatalf("remember: %v", err)
	}
}

func TestUserStats(t *testing.T) {
	store := memory.NewProgressStore()
	seed(t, store)
	svc := NewService(store, nil)

	st, err := svc.UserStats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if st.TotalGames != 2 || st.TotalScore != 105 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.AverageAccuracy != 60 {
		t.Fatalf("expected 60%% accuracy, got %v", st.AverageAccuracy)
	}
	if st.MaxTier != domain.TierFacil {
		t.Fatalf("expected tier 1, got %v", st.MaxTier)
	}
}

func TestUserStatsWithoutHistory(t *testing.T) {
	svc := NewService(memory.NewProgressStore(), nil)
	st, err := svc.UserStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if st.TotalGames != 0 || st.AverageAccuracy != 0 || st.MaxTier != domain.TierFacil {
		t.Fatalf("expected defaults, got %+v", st)
	}
}

func TestRankingNamesAnonymous(t *testing.T) {
	store := memory.NewProgressStore()
	seed(t, store)
	svc := NewService(store, nil)

	ranking, err := svc.Ranking(context.Background(), 0)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(ranking) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ranking))
	}
	if ranking[0].Name != "Anonymous" || ranking[0].Points != 200 {
		t.Fatalf("unexpected leader %+v", ranking[0])
	}
	if ranking[1].Name != "Alice" {
		t.Fatalf("unexpected second %+v", ranking[1])
	}
}

func TestRecentResultsNewestFirst(t *testing.T) {
	store := memory.NewProgressStore()
	seed(t, store)
	svc := NewService(store, nil)

	recent, err := svc.RecentResults(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Tier != domain.TierMedio {
		t.Fatalf("unexpected recent %+v", recent)
	}
	if recent[0].Accuracy != 40 || recent[1].Accuracy != 80 {
		t.Fatalf("unexpected accuracy %v/%v", recent[0].Accuracy, recent[1].Accuracy)
	}
}

type failingRanking struct {
	*memory.ProgressStore
}

func (failingRanking) Ranking(context.Context, int) ([]domain.RankingEntry, error) {
	return nil, errors.New("db down")
}

func TestDashboardDegradesFailingPart(t *testing.T) {
	store := memory.NewProgressStore()
	seed(t, store)
	svc := NewService(failingRanking{store}, nil)

	d := svc.Dashboard(context.Background(), "u1")
	if d.Stats.TotalGames != 2 {
		t.Fatalf("expected stats to load, got %+v", d.Stats)
	}
	if d.Ranking == nil || len(d.Ranking) != 0 {
		t.Fatalf("expected empty ranking, got %+v", d.Ranking)
	}
	if len(d.Recent) != 2 {
		t.Fatalf("expected recent results, got %d", len(d.Recent))
	}
}
