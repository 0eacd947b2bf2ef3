package memory

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"mathfly-quiz-service/internal/domain"
)

//go:embed fallback/questions.yaml
var bundledQuestions []byte

// StaticQuestionStore serves a fixed question set grouped by tier.
type StaticQuestionStore struct {
	byTier map[domain.Tier][]domain.Question
}

func NewStaticQuestionStore(questions []domain.Question) *StaticQuestionStore {
	byTier := make(map[domain.Tier][]domain.Question)
	for _, q := range questions {
		byTier[q.Tier] = append(byTier[q.Tier], q)
	}
	return &StaticQuestionStore{byTier: byTier}
}

// NewBundledQuestionStore loads the question set compiled into the binary.
func NewBundledQuestionStore() (*StaticQuestionStore, error) {
	questions, err := ParseQuestions(bundledQuestions)
	if err != nil {
		return nil, fmt.Errorf("load bundled questions: %w", err)
	}
	return NewStaticQuestionStore(questions), nil
}

// ParseQuestions decodes a YAML list of questions.
func ParseQuestions(data []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	for _, q := range questions {
		if !q.Valid() {
			return nil, fmt.Errorf("question %q: invalid answer %q or tier", q.ID, q.Answer)
		}
	}
	return questions, nil
}

func (s *StaticQuestionStore) QuestionsByTier(_ context.Context, tier domain.Tier) ([]domain.Question, error) {
	return append([]domain.Question(nil), s.byTier[tier]...), nil
}

// All returns every question in tier order.
func (s *StaticQuestionStore) All() []domain.Question {
	var out []domain.Question
	for _, tier := range domain.Tiers() {
		out = append(out, s.byTier[tier]...)
	}
	return out
}
