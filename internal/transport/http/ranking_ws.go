package http

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
)

// Ranker loads the global ranking.
type Ranker interface {
	Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
}

// ProgressSubscriber streams ids of users whose progress changed.
type ProgressSubscriber interface {
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// RankingHandler pushes a fresh ranking whenever any user's progress changes.
type RankingHandler struct {
	ranker     Ranker
	subscriber ProgressSubscriber
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

func NewRankingHandler(ranker Ranker, subscriber ProgressSubscriber, logger *zap.Logger) *RankingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingHandler{
		ranker:     ranker,
		subscriber: subscriber,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type rankingMessage struct {
	Type    string                `json:"type"`
	Payload []domain.RankingEntry `json:"payload"`
}

func (h *RankingHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(errorEvent(err))
		return
	}
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if !h.push(ctx, conn) {
			return
		}
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return
				}
				if !h.push(ctx, conn) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-writerDone
}

func (h *RankingHandler) push(ctx context.Context, conn *websocket.Conn) bool {
	ranking, err := h.ranker.Ranking(ctx, 0)
	if err != nil {
		h.logger.Warn("load ranking failed", zap.Error(err))
		return true
	}
	if err := conn.WriteJSON(rankingMessage{Type: "ranking", Payload: ranking}); err != nil {
		h.logger.Debug("ws write error", zap.Error(err))
		return false
	}
	return true
}
