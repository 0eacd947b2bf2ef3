package memory

import (
	"context"
	"sync"

	"mathfly-quiz-service/internal/domain"
)

// OfflineQueue is a process-local queue; it does not survive restarts.
type OfflineQueue struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.PendingResult
}

func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{}
}

func (q *OfflineQueue) Enqueue(_ context.Context, entry domain.PendingResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	entry.ID = q.nextID
	entry.Synced = false
	q.entries = append(q.entries, entry)
	return nil
}

func (q *OfflineQueue) Pending(_ context.Context) ([]domain.PendingResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.PendingResult, 0)
	for _, e := range q.entries {
		if !e.Synced {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *OfflineQueue) MarkSynced(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].Synced = true
		}
	}
	return nil
}
