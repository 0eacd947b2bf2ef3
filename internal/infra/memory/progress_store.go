package memory

import (
	"context"
	"sort"
	"sync"

	"mathfly-quiz-service/internal/domain"
)

// ProgressStore keeps progress rows, phase history and user names in memory.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[string]domain.UserProgress
	history  []domain.PhaseResult
	names    map[string]string
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[string]domain.UserProgress),
		names:    make(map[string]string),
	}
}

func (s *ProgressStore) AppendPhaseResult(_ context.Context, result domain.PhaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, result)
	return nil
}

func (s *ProgressStore) GetProgress(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress, ok := s.progress[userID]
	if !ok {
		return domain.UserProgress{}, domain.ErrProgressNotFound
	}
	return progress, nil
}

// UpdateProgress holds the store lock for the whole read-modify-write.
func (s *ProgressStore) UpdateProgress(_ context.Context, userID string, fn func(domain.UserProgress) domain.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.progress[userID]
	if !ok {
		current = domain.DefaultProgress(userID)
	}
	next := fn(current)
	next.UserID = userID
	s.progress[userID] = next
	return nil
}

// PhaseResults returns the user's history newest first; limit <= 0 returns everything.
func (s *ProgressStore) PhaseResults(_ context.Context, userID string, limit int) ([]domain.PhaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PhaseResult, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UserID != userID {
			continue
		}
		out = append(out, s.history[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out, nil
}

func (s *ProgressStore) CountPhaseResults(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.history {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Ranking orders users by cumulative points.
func (s *ProgressStore) Ranking(_ context.Context, limit int) ([]domain.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]domain.UserProgress, 0, len(s.progress))
	for _, p := range s.progress {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	entries := make([]domain.RankingEntry, 0, len(rows))
	for _, p := range rows {
		entries = append(entries, domain.RankingEntry{
			Name:      s.names[p.UserID],
			Points:    p.TotalPoints,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return entries, nil
}

// RememberUser records the display name used in rankings.
func (s *ProgressStore) RememberUser(_ context.Context, identity domain.Identity) error {
	if !identity.Authenticated() || identity.Name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[identity.UserID] = identity.Name
	return nil
}
