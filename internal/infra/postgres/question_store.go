package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"mathfly-quiz-service/internal/domain"
)

// QuestionStore reads the question bank from Postgres.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) QuestionsByTier(ctx context.Context, tier domain.Tier) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, prompt, option_a, option_b, option_c, option_d, answer
		FROM questions WHERE tier = $1`, int(tier))
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q := domain.Question{Tier: tier}
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options.A, &q.Options.B, &q.Options.C, &q.Options.D, &q.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// SeedQuestions upserts questions, replacing existing rows with the same id.
func (s *QuestionStore) SeedQuestions(ctx context.Context, questions []domain.Question) error {
	for _, q := range questions {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO questions (id, prompt, option_a, option_b, option_c, option_d, answer, tier)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				prompt = EXCLUDED.prompt,
				option_a = EXCLUDED.option_a,
				option_b = EXCLUDED.option_b,
				option_c = EXCLUDED.option_c,
				option_d = EXCLUDED.option_d,
				answer = EXCLUDED.answer,
				tier = EXCLUDED.tier`,
			q.ID, q.Prompt, q.Options.A, q.Options.B, q.Options.C, q.Options.D, q.Answer, int(q.Tier))
		if err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return nil
}
