package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"mathfly-quiz-service/internal/domain"
	"mathfly-quiz-service/internal/stats"
)

// ProgressReader answers progress lookups with defaults for new users.
type ProgressReader interface {
	Progress(ctx context.Context, userID string) domain.UserProgress
}

// StatsReader serves the dashboard and ranking.
type StatsReader interface {
	Ranker
	Dashboard(ctx context.Context, userID string) stats.Dashboard
}

// API serves the read-only JSON endpoints.
type API struct {
	auth     Authenticator
	progress ProgressReader
	stats    StatsReader
	logger   *zap.Logger
}

func NewAPI(auth Authenticator, progress ProgressReader, stats StatsReader, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{auth: auth, progress: progress, stats: stats, logger: logger}
}

func (a *API) Progress(w http.ResponseWriter, r *http.Request) {
	identity, err := a.auth.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	a.writeJSON(w, http.StatusOK, a.progress.Progress(r.Context(), identity.UserID))
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	identity, err := a.auth.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	a.writeJSON(w, http.StatusOK, a.stats.Dashboard(r.Context(), identity.UserID))
}

func (a *API) Ranking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	ranking, err := a.stats.Ranking(r.Context(), limit)
	if err != nil {
		a.logger.Warn("load ranking failed", zap.Error(err))
		http.Error(w, domain.ErrPersistenceUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}
	a.writeJSON(w, http.StatusOK, ranking)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("write response failed", zap.Error(err))
	}
}
