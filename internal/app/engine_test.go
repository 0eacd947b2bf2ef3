package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/infra/memory"
)

func newTestEngine(clock *fakeClock, provider QuestionProvider, recorder ResultRecorder, queue OfflineQueue) *Engine {
	return NewEngine(domain.Identity{UserID: "u1", Name: "Alice"}, EngineDeps{
		Questions: provider,
		Recorder:  recorder,
		Queue:     queue,
		Now:       clock.Now,
	})
}

func TestEngineEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewProgressStore()
	reconciler := NewReconciler(store, nil, WithReconcilerClock(clock.Now))
	engine := newTestEngine(clock, fixedProvider(makeQuestions(domain.TierFacil, 5, "f")), reconciler, memory.NewOfflineQueue())

	session, err := engine.Start(ctx, domain.TierFacil, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	start := session.StartedAt
	if engine.State() != StateActive {
		t.Fatalf("expected active state, got %v", engine.State())
	}

	steps := []struct {
		offset time.Duration
		key    string
		points int
	}{
		{0, domain.KeyA, 16},
		{30*time.Second + 5*time.Second, domain.KeyA, 15},
		{60*time.Second + 10*time.Second, domain.KeyA, 14},
		{100 * time.Second, domain.KeyB, 0},
		{130 * time.Second, domain.KeyC, 0},
	}
	for i, step := range steps {
		clock.Set(start, step.offset)
		outcome := engine.SubmitAnswer(step.key)
		if outcome == nil {
			t.Fatalf("answer %d rejected", i)
		}
		if outcome.PointsAwarded != step.points {
			t.Fatalf("answer %d: expected %d points, got %d", i, step.points, outcome.PointsAwarded)
		}
		if outcome.IsLastQuestion != (i == len(steps)-1) {
			t.Fatalf("answer %d: unexpected last flag", i)
		}
		if i < len(steps)-1 {
			if _, ok := engine.Advance(); !ok {
				t.Fatalf("advance %d failed", i)
			}
		}
	}
	if engine.State() != StateCompleting {
		t.Fatalf("expected completing state, got %v", engine.State())
	}

	clock.Set(start, 140*time.Second)
	out := engine.Finish(ctx)
	if out == nil {
		t.Fatalf("finish returned nil")
	}
	r := out.Results
	if r.Score != 45 || r.CorrectAnswers != 3 || r.TotalQuestions != 5 || r.Accuracy != 60 || r.Tier != domain.TierFacil {
		t.Fatalf("unexpected results %+v", r)
	}
	if r.TimeSpent != 140 {
		t.Fatalf("expected 140s spent, got %d", r.TimeSpent)
	}
	if !out.Synced || out.Progress.NewMaxTier != domain.TierMedio || !out.Progress.UnlockedNewTier {
		t.Fatalf("expected unlock to tier 2, got %+v", out)
	}
	if engine.State() != StateAbsent {
		t.Fatalf("expected absent after finish, got %v", engine.State())
	}
}

func TestTimeBonusBoundary(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		correct bool
		elapsed time.Duration
		want    int
	}{
		{"instant", true, 0, 16},
		{"late", true, 28 * time.Second, 10},
		{"over time", true, 45 * time.Second, 10},
		{"incorrect", false, 0, 0},
	}
	for _, tc := range cases {
		if got := questionPoints(domain.TierFacil, tc.correct, start, start.Add(tc.elapsed), 0); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
	// The third answer's window opens two full allotments after start.
	if got := questionPoints(domain.TierExpert, true, start, start.Add(360*time.Second), 2); got != 50+36 {
		t.Fatalf("expected 86 for instant expert answer, got %d", got)
	}
}

func TestSubmitAnswerCorrectness(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	questions := makeQuestions(domain.TierMedio, 1, "m")
	questions[0].Answer = domain.KeyC

	for _, key := range append(domain.OptionKeys(), domain.TimeoutAnswer) {
		engine := newTestEngine(clock, fixedProvider(questions), failingRecorder{}, nil)
		if _, err := engine.Start(ctx, domain.TierMedio, 1); err != nil {
			t.Fatalf("start: %v", err)
		}
		outcome := engine.SubmitAnswer(key)
		if outcome == nil {
			t.Fatalf("answer %q rejected", key)
		}
		if outcome.IsCorrect != (key == domain.KeyC) {
			t.Fatalf("key %q: isCorrect=%v", key, outcome.IsCorrect)
		}
		if outcome.CorrectAnswer != domain.KeyC {
			t.Fatalf("expected correct key c, got %q", outcome.CorrectAnswer)
		}
	}
}

func TestScoreNeverDecreases(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rnd := rand.New(rand.NewSource(7))
	keys := append(domain.OptionKeys(), domain.TimeoutAnswer)

	for round := 0; round < 20; round++ {
		engine := newTestEngine(clock, fixedProvider(makeQuestions(domain.TierDificil, 5, "d")), failingRecorder{}, nil)
		session, err := engine.Start(ctx, domain.TierDificil, 5)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		last := 0
		for i := 0; i < 5; i++ {
			clock.Set(session.StartedAt, time.Duration(rnd.Intn(700))*time.Second)
			outcome := engine.SubmitAnswer(keys[rnd.Intn(len(keys))])
			if outcome == nil {
				t.Fatalf("answer rejected")
			}
			if outcome.PointsAwarded < 0 || outcome.Score < last {
				t.Fatalf("score went from %d to %d", last, outcome.Score)
			}
			last = outcome.Score
			engine.Advance()
		}
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	engine := newTestEngine(clock, fixedProvider(makeQuestions(domain.TierFacil, 2, "f")), failingRecorder{}, nil)

	if engine.SubmitAnswer(domain.KeyA) != nil {
		t.Fatalf("expected nil without a session")
	}
	if _, err := engine.Start(ctx, domain.TierFacil, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := engine.Advance(); ok {
		t.Fatalf("advance before answering must fail")
	}
	if engine.Finish(ctx) != nil {
		t.Fatalf("finish before all answers must be nil")
	}
	if engine.SubmitAnswer(domain.KeyA) == nil {
		t.Fatalf("first answer rejected")
	}
	if engine.SubmitAnswer(domain.KeyB) != nil {
		t.Fatalf("double submit must be nil")
	}
	session, _ := engine.Session()
	if len(session.Answers) != 1 || session.Answers[0] != domain.KeyA {
		t.Fatalf("double submit changed answers: %v", session.Answers)
	}
}

func TestStartPreconditions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	anonymous := NewEngine(domain.Identity{}, EngineDeps{Questions: fixedProvider(makeQuestions(domain.TierFacil, 5, "f"))})
	if _, err := anonymous.Start(ctx, domain.TierFacil, 5); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if anonymous.State() != StateAbsent {
		t.Fatalf("no session must be created")
	}

	empty := newTestEngine(clock, fixedProvider(nil), failingRecorder{}, nil)
	if _, err := empty.Start(ctx, domain.TierFacil, 5); !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected no questions, got %v", err)
	}
	if !errors.Is(empty.Err(), domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected last error to be kept, got %v", empty.Err())
	}

	if _, err := empty.Start(ctx, domain.Tier(9), 5); !errors.Is(err, domain.ErrInvalidTier) {
		t.Fatalf("expected invalid tier, got %v", err)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	engine := newTestEngine(clock, fixedProvider(nil), failingRecorder{}, nil)
	_, _ = engine.Start(context.Background(), domain.TierFacil, 5)

	engine.Reset()
	engine.Reset()
	if engine.State() != StateAbsent || engine.Err() != nil {
		t.Fatalf("expected clean absent state, got %v / %v", engine.State(), engine.Err())
	}
}

func TestFinishQueuesWhenPersistenceFails(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	queue := memory.NewOfflineQueue()
	engine := newTestEngine(clock, fixedProvider(makeQuestions(domain.TierFacil, 3, "f")), failingRecorder{}, queue)

	if _, err := engine.Start(ctx, domain.TierFacil, 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		engine.SubmitAnswer(domain.KeyA)
		engine.Advance()
	}
	out := engine.Finish(ctx)
	if out == nil {
		t.Fatalf("results must be returned on persistence failure")
	}
	if out.Synced || out.Results.CorrectAnswers != 3 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	pending, _ := queue.Pending(ctx)
	if len(pending) != 1 || pending[0].UserID != "u1" || pending[0].Synced {
		t.Fatalf("expected one unsynced entry, got %+v", pending)
	}
	if pending[0].Results.Score != out.Results.Score {
		t.Fatalf("queued results differ from returned results")
	}
}

func TestFinishFlushesQueueAfterSuccess(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewProgressStore()
	queue := memory.NewOfflineQueue()
	reconciler := NewReconciler(store, nil, WithReconcilerClock(clock.Now))

	earlier := domain.Results{Score: 40, CorrectAnswers: 2, TotalQuestions: 5, Tier: domain.TierFacil}
	if err := queue.Enqueue(ctx, domain.PendingResult{UserID: "u1", Results: earlier, QueuedAt: clock.Now()}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	engine := NewEngine(domain.Identity{UserID: "u1"}, EngineDeps{
		Questions: fixedProvider(makeQuestions(domain.TierFacil, 1, "f")),
		Recorder:  reconciler,
		Queue:     queue,
		Resync:    NewResyncService(queue, reconciler, nil),
		Now:       clock.Now,
	})
	if _, err := engine.Start(ctx, domain.TierFacil, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.SubmitAnswer(domain.KeyA)
	out := engine.Finish(ctx)
	if out == nil || !out.Synced {
		t.Fatalf("expected synced finish, got %+v", out)
	}

	if pending, _ := queue.Pending(ctx); len(pending) != 0 {
		t.Fatalf("expected queue flushed, got %d entries", len(pending))
	}
	progress, _ := store.GetProgress(ctx, "u1")
	if progress.TotalPoints != 40+out.Results.Score || progress.TotalCorrect != 3 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}
