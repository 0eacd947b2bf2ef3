package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/metrics"
)

// QuestionStore returns every question stored for a tier, in any order.
type QuestionStore interface {
	QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error)
}

// QuestionBank samples questions from the primary store, falling back to the
// bundled set when the store errors or has nothing for the tier.
type QuestionBank struct {
	primary  QuestionStore
	fallback QuestionStore
	logger   *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(primary, fallback QuestionStore, logger *zap.Logger) *QuestionBank {
	return NewQuestionBankWithRand(primary, fallback, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionBankWithRand allows deterministic shuffles in tests.
func NewQuestionBankWithRand(primary, fallback QuestionStore, logger *zap.Logger, rnd *rand.Rand) *QuestionBank {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionBank{primary: primary, fallback: fallback, logger: logger, rnd: rnd}
}

// FetchQuestions returns up to count distinct questions for tier. An empty
// result means neither source had anything usable.
func (b *QuestionBank) FetchQuestions(ctx context.Context, tier domain.Tier, count int) []domain.Question {
	if count <= 0 || !tier.Valid() {
		return nil
	}

	if b.primary != nil {
		questions, err := b.primary.QuestionsByTier(ctx, tier)
		switch {
		case err != nil:
			b.logger.Warn("question store failed, using bundled set", zap.Stringer("tier", tier), zap.Error(err))
			metrics.QuestionBankFallbacks.WithLabelValues(tier.String(), "error").Inc()
		case len(usable(questions, tier)) == 0:
			b.logger.Warn("question store empty, using bundled set", zap.Stringer("tier", tier))
			metrics.QuestionBankFallbacks.WithLabelValues(tier.String(), "empty").Inc()
		default:
			return b.sample(usable(questions, tier), count)
		}
	}

	if b.fallback == nil {
		return nil
	}
	questions, err := b.fallback.QuestionsByTier(ctx, tier)
	if err != nil {
		b.logger.Error("bundled question set failed", zap.Stringer("tier", tier), zap.Error(err))
		return nil
	}
	return b.sample(usable(questions, tier), count)
}

// sample shuffles with Fisher-Yates and keeps the first count entries.
func (b *QuestionBank) sample(questions []domain.Question, count int) []domain.Question {
	if len(questions) == 0 {
		return nil
	}
	shuffled := append([]domain.Question(nil), questions...)

	b.mu.Lock()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := b.rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	b.mu.Unlock()

	if count < len(shuffled) {
		shuffled = shuffled[:count]
	}
	return shuffled
}

// usable drops malformed rows, rows of another tier and duplicate ids.
func usable(questions []domain.Question, tier domain.Tier) []domain.Question {
	seen := make(map[string]struct{}, len(questions))
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Tier != tier || !q.Valid() {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}
