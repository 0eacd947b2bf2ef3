package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mathfly-quiz-service/internal/domain"
)

// ProgressStore persists user_progress, phase_results and users in Postgres.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) AppendPhaseResult(ctx context.Context, result domain.PhaseResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO phase_results (user_id, tier, correct_answers, points_earned, completed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		result.UserID, int(result.Tier), result.CorrectAnswers, result.PointsEarned, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert phase result: %w", err)
	}
	return nil
}

func (s *ProgressStore) GetProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	progress, err := scanProgress(s.pool.QueryRow(ctx, `
		SELECT user_id, max_tier, total_correct, total_points, updated_at
		FROM user_progress WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProgress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("load progress: %w", err)
	}
	return progress, nil
}

// UpdateProgress locks the user's row for the read-modify-write. The row is
// created first so concurrent first-time finishers serialize on it too, and
// max_tier is written with GREATEST so it can never move down.
func (s *ProgressStore) UpdateProgress(ctx context.Context, userID string, fn func(domain.UserProgress) domain.UserProgress) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin progress tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, max_tier, total_correct, total_points, updated_at)
		VALUES ($1, 1, 0, 0, now())
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ensure progress row: %w", err)
	}

	current, err := scanProgress(tx.QueryRow(ctx, `
		SELECT user_id, max_tier, total_correct, total_points, updated_at
		FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}

	next := fn(current)
	if _, err := tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, max_tier, total_correct, total_points, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			max_tier = GREATEST(user_progress.max_tier, EXCLUDED.max_tier),
			total_correct = EXCLUDED.total_correct,
			total_points = EXCLUDED.total_points,
			updated_at = EXCLUDED.updated_at`,
		userID, int(next.MaxTier), next.TotalCorrect, next.TotalPoints, next.UpdatedAt); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

// PhaseResults returns the user's history newest first; limit <= 0 returns everything.
func (s *ProgressStore) PhaseResults(ctx context.Context, userID string, limit int) ([]domain.PhaseResult, error) {
	query := `
		SELECT user_id, tier, correct_answers, points_earned, completed_at
		FROM phase_results WHERE user_id = $1
		ORDER BY completed_at DESC, id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query phase results: %w", err)
	}
	defer rows.Close()

	var results []domain.PhaseResult
	for rows.Next() {
		var r domain.PhaseResult
		var tier int
		if err := rows.Scan(&r.UserID, &tier, &r.CorrectAnswers, &r.PointsEarned, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan phase result: %w", err)
		}
		r.Tier = domain.Tier(tier)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *ProgressStore) CountPhaseResults(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM phase_results WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count phase results: %w", err)
	}
	return n, nil
}

// Ranking orders users by cumulative points.
func (s *ProgressStore) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(u.name, ''), p.total_points, p.updated_at
		FROM user_progress p
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.total_points DESC, p.user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		if err := rows.Scan(&e.Name, &e.Points, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RememberUser records the display name used in rankings.
func (s *ProgressStore) RememberUser(ctx context.Context, identity domain.Identity) error {
	if !identity.Authenticated() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		WHERE EXCLUDED.name <> ''`, identity.UserID, identity.Name)
	if err != nil {
		return fmt.Errorf("remember user: %w", err)
	}
	return nil
}

func scanProgress(row pgx.Row) (domain.UserProgress, error) {
	var p domain.UserProgress
	var tier int
	if err := row.Scan(&p.UserID, &tier, &p.TotalCorrect, &p.TotalPoints, &p.UpdatedAt); err != nil {
		return domain.UserProgress{}, err
	}
	p.MaxTier = domain.Tier(tier)
	return p, nil
}
