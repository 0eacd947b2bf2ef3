package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mathfly-quiz-service/internal/domain"
)

var errStoreDown = errors.New("store down")

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(start time.Time, d time.Duration) { c.now = start.Add(d) }

// fixedProvider serves questions in order without shuffling.
type fixedProvider []domain.Question

func (p fixedProvider) FetchQuestions(_ context.Context, tier domain.Tier, count int) []domain.Question {
	out := make([]domain.Question, 0, count)
	for _, q := range p {
		if q.Tier == tier && len(out) < count {
			out = append(out, q)
		}
	}
	return out
}

type staticStore struct {
	questions []domain.Question
	err       error
}

func (s staticStore) QuestionsByTier(_ context.Context, tier domain.Tier) ([]domain.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Question
	for _, q := range s.questions {
		if q.Tier == tier {
			out = append(out, q)
		}
	}
	return out, nil
}

type failingRecorder struct{}

func (failingRecorder) Reconcile(context.Context, string, domain.Results) (domain.Reconciliation, error) {
	return domain.Reconciliation{}, fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, errStoreDown)
}

func makeQuestions(tier domain.Tier, n int, prefix string) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Question{
			ID:      fmt.Sprintf("%s%d", prefix, i+1),
			Prompt:  fmt.Sprintf("%d + 1 = ?", i),
			Options: domain.Options{A: fmt.Sprint(i + 1), B: "x", C: "y", D: "z"},
			Answer:  domain.KeyA,
			Tier:    tier,
		})
	}
	return out
}
