package http

import (
	"net/http"

	"mathfly-quiz-service/internal/metrics"
)

// NewMux mounts every endpoint the service exposes.
func NewMux(api *API, quiz *QuizHandler, ranking *RankingHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/progress", api.Progress)
	mux.HandleFunc("GET /api/stats", api.Stats)
	mux.HandleFunc("GET /api/ranking", api.Ranking)
	mux.HandleFunc("GET /ws/quiz", quiz.ServeWS)
	mux.HandleFunc("GET /ws/ranking", ranking.ServeWS)
	return mux
}
