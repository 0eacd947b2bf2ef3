package app

import (
	"context"
	"errors"
	"testing"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/infra/memory"
)

func TestNextMaxTier(t *testing.T) {
	cases := []struct {
		current, played domain.Tier
		correct         int
		want            domain.Tier
	}{
		{domain.TierFacil, domain.TierFacil, 3, domain.TierMedio},
		{domain.TierFacil, domain.TierFacil, 2, domain.TierFacil},
		{domain.TierDificil, domain.TierFacil, 5, domain.TierDificil},
		{domain.TierMedio, domain.TierMedio, 5, domain.TierDificil},
		{domain.TierExpert, domain.TierExpert, 5, domain.TierExpert},
	}
	for _, tc := range cases {
		if got := NextMaxTier(tc.current, tc.played, tc.correct); got != tc.want {
			t.Fatalf("NextMaxTier(%v, %v, %d) = %v, want %v", tc.current, tc.played, tc.correct, got, tc.want)
		}
	}
}

func TestReconcileUnlocksAndAccumulates(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewProgressStore()
	r := NewReconciler(store, nil, WithReconcilerClock(clock.Now))

	out, err := r.Reconcile(ctx, "u1", domain.Results{Score: 45, CorrectAnswers: 3, TotalQuestions: 5, Tier: domain.TierFacil})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.NewMaxTier != domain.TierMedio || !out.UnlockedNewTier {
		t.Fatalf("expected unlock to tier 2, got %+v", out)
	}

	progress, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.TotalCorrect != 3 || progress.TotalPoints != 45 || !progress.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected progress %+v", progress)
	}
	history, _ := store.PhaseResults(ctx, "u1", 0)
	if len(history) != 1 || history[0].PointsEarned != 45 {
		t.Fatalf("expected one history row, got %+v", history)
	}
}

func TestReconcileWithoutUnlock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProgressStore()
	r := NewReconciler(store, nil)

	out, err := r.Reconcile(ctx, "u1", domain.Results{Score: 30, CorrectAnswers: 2, TotalQuestions: 5, Tier: domain.TierFacil})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.UnlockedNewTier || out.NewMaxTier != domain.TierFacil {
		t.Fatalf("expected no unlock, got %+v", out)
	}
}

func TestReconcileMaxTierNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProgressStore()
	r := NewReconciler(store, nil)

	plays := []struct {
		tier    domain.Tier
		correct int
	}{
		{domain.TierFacil, 5}, {domain.TierMedio, 4}, {domain.TierFacil, 5},
		{domain.TierFacil, 0}, {domain.TierDificil, 2}, {domain.TierDificil, 3},
		{domain.TierExpert, 5}, {domain.TierMedio, 5}, {domain.TierExpert, 5},
	}
	previous := domain.TierFacil
	for i, p := range plays {
		out, err := r.Reconcile(ctx, "u1", domain.Results{CorrectAnswers: p.correct, TotalQuestions: 5, Tier: p.tier})
		if err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
		if out.NewMaxTier < previous {
			t.Fatalf("play %d: max tier dropped from %v to %v", i, previous, out.NewMaxTier)
		}
		wantUnlock := p.correct >= UnlockThreshold && p.tier >= previous && previous < domain.HighestTier
		if out.UnlockedNewTier != wantUnlock {
			t.Fatalf("play %d: unlocked=%v, want %v", i, out.UnlockedNewTier, wantUnlock)
		}
		previous = out.NewMaxTier
	}
	if previous != domain.TierExpert {
		t.Fatalf("expected to end at expert, got %v", previous)
	}
}

type brokenProgressStore struct {
	*memory.ProgressStore
	appendErr error
	updateErr error
}

func (s brokenProgressStore) AppendPhaseResult(ctx context.Context, r domain.PhaseResult) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.ProgressStore.AppendPhaseResult(ctx, r)
}

func (s brokenProgressStore) UpdateProgress(ctx context.Context, userID string, fn func(domain.UserProgress) domain.UserProgress) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.ProgressStore.UpdateProgress(ctx, userID, fn)
}

func TestReconcileWrapsStoreErrors(t *testing.T) {
	ctx := context.Background()
	results := domain.Results{CorrectAnswers: 3, Tier: domain.TierFacil}

	for _, store := range []brokenProgressStore{
		{ProgressStore: memory.NewProgressStore(), appendErr: errStoreDown},
		{ProgressStore: memory.NewProgressStore(), updateErr: errStoreDown},
	} {
		_, err := NewReconciler(store, nil).Reconcile(ctx, "u1", results)
		if !errors.Is(err, domain.ErrPersistenceUnavailable) || !errors.Is(err, errStoreDown) {
			t.Fatalf("expected wrapped persistence error, got %v", err)
		}
	}

	if _, err := NewReconciler(memory.NewProgressStore(), nil).Reconcile(ctx, "", results); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

type recordingPublisher struct {
	events []domain.PhaseCompleted
	err    error
}

func (p *recordingPublisher) PublishPhaseCompleted(_ context.Context, e domain.PhaseCompleted) error {
	p.events = append(p.events, e)
	return p.err
}

func TestReconcileAnnouncesBestEffort(t *testing.T) {
	ctx := context.Background()
	notifier := memory.NewNotifier()
	updates, cancel, _ := notifier.Subscribe(ctx)
	defer cancel()
	publisher := &recordingPublisher{err: errors.New("broker down")}

	r := NewReconciler(memory.NewProgressStore(), nil, WithNotifier(notifier), WithPublisher(publisher))
	out, err := r.Reconcile(ctx, "u1", domain.Results{Score: 50, CorrectAnswers: 4, Tier: domain.TierFacil})
	if err != nil {
		t.Fatalf("publisher failure must not fail reconcile: %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].UserID != "u1" || publisher.events[0].NewMaxTier != out.NewMaxTier {
		t.Fatalf("unexpected events %+v", publisher.events)
	}
	select {
	case userID := <-updates:
		if userID != "u1" {
			t.Fatalf("unexpected notification %q", userID)
		}
	default:
		t.Fatalf("expected progress notification")
	}
}
