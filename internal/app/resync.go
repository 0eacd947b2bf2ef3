package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/metrics"
)

// ResyncService replays locally queued results through the reconciler.
type ResyncService struct {
	queue    OfflineQueue
	recorder ResultRecorder
	logger   *zap.Logger

	mu sync.Mutex
}

func NewResyncService(queue OfflineQueue, recorder ResultRecorder, logger *zap.Logger) *ResyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResyncService{queue: queue, recorder: recorder, logger: logger}
}

// Flush replays pending entries in queue order and stops at the first failure.
// It returns how many entries were synced. Delivery is at-least-once: an entry
// whose MarkSynced fails is replayed again on the next flush.
func (s *ResyncService) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if _, err := s.recorder.Reconcile(ctx, entry.UserID, entry.Results); err != nil {
			metrics.OfflineReplays.WithLabelValues("failed").Inc()
			return synced, err
		}
		if err := s.queue.MarkSynced(ctx, entry.ID); err != nil {
			return synced, err
		}
		metrics.OfflineReplays.WithLabelValues("synced").Inc()
		synced++
	}
	if synced > 0 {
		s.logger.Info("offline results synced", zap.Int("count", synced))
	}
	return synced, nil
}
